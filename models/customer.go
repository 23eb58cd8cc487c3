package models

import (
	"time"
)

// Customer представляет заемщика, привязанного к арендатору
type Customer struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	TenantID  uint      `gorm:"column:tenant_id;not null;index"`
	Tenant    Tenant    `gorm:"foreignKey:TenantID;references:ID"`
	FullName  string    `gorm:"column:full_name;not null;size:100"`
	Phone     string    `gorm:"column:phone;size:20"`
	Address   string    `gorm:"column:address;size:255"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"column:updated_at;default:CURRENT_TIMESTAMP"`
}

func (Customer) TableName() string {
	return "customers"
}
