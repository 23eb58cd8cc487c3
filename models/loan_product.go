package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CollectionCadence представляет периодичность сбора платежей
type CollectionCadence string

const (
	CadenceDaily   CollectionCadence = "DAILY"   // Ежедневный сбор
	CadenceWeekly  CollectionCadence = "WEEKLY"  // Еженедельный сбор
	CadenceMonthly CollectionCadence = "MONTHLY" // Ежемесячный сбор
)

// LoanProduct представляет кредитный продукт арендатора
type LoanProduct struct {
	gorm.Model
	TenantID                uint              `gorm:"column:tenant_id;not null;index"`
	Tenant                  Tenant            `gorm:"foreignKey:TenantID"`
	Name                    string            `gorm:"column:name;not null;size:100"`
	CollectionCadence       CollectionCadence `gorm:"column:collection_cadence;type:varchar(20);not null"`
	PeriodCount             int               `gorm:"column:period_count;not null"` // Число взносов и срок займа в единицах периодичности
	InterestPercent         decimal.Decimal   `gorm:"column:interest_percent;type:decimal(8,2);not null"`
	InitialDeductionPercent decimal.Decimal   `gorm:"column:initial_deduction_percent;type:decimal(8,2);not null;default:0"`
	InterestPrepaid         bool              `gorm:"column:interest_prepaid;not null;default:false"` // Проценты удерживаются при выдаче
}

// TableName возвращает имя таблицы для модели LoanProduct
func (LoanProduct) TableName() string {
	return "loan_products"
}
