package models

import (
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// CollectionLine представляет линию сбора — именованный канал выдачи и обслуживания займов.
// AccessUserIDs — явный список пользователей, допущенных к работе с линией;
// пустой список означает запрет для всех.
type CollectionLine struct {
	gorm.Model
	TenantID      uint          `gorm:"column:tenant_id;not null;index"`
	Tenant        Tenant        `gorm:"foreignKey:TenantID"`
	Name          string        `gorm:"column:name;not null;size:100"`
	LoanProductID uint          `gorm:"column:loan_product_id;not null"`
	LoanProduct   LoanProduct   `gorm:"foreignKey:LoanProductID"`
	AccessUserIDs pq.Int64Array `gorm:"column:access_user_ids;type:bigint[]"`
	Loans         []Loan        `gorm:"foreignKey:LineID"`
}

// TableName возвращает имя таблицы для модели CollectionLine
func (CollectionLine) TableName() string {
	return "collection_lines"
}

// HasAccessUser проверяет членство пользователя в списке доступа линии
func (l *CollectionLine) HasAccessUser(userID uint) bool {
	for _, id := range l.AccessUserIDs {
		if id == int64(userID) {
			return true
		}
	}
	return false
}
