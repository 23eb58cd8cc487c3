package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LoanStatus представляет статус займа
type LoanStatus string

const (
	LoanStatusOngoing   LoanStatus = "ONGOING"   // Действующий займ
	LoanStatusCompleted LoanStatus = "COMPLETED" // Полностью погашенный займ
	LoanStatusPending   LoanStatus = "PENDING"   // Займ в ожидании выдачи
	LoanStatusNil       LoanStatus = "NIL"       // Статус не назначен
)

// Loan представляет займ
type Loan struct {
	gorm.Model
	TenantID               uint            `gorm:"column:tenant_id;not null;index"`
	Tenant                 Tenant          `gorm:"foreignKey:TenantID"`
	CustomerID             uint            `gorm:"column:customer_id;not null;index"`
	Customer               Customer        `gorm:"foreignKey:CustomerID"`
	LineID                 uint            `gorm:"column:line_id;not null;index"`
	Line                   CollectionLine  `gorm:"foreignKey:LineID"`
	Principal              decimal.Decimal `gorm:"column:principal;type:decimal(20,2);not null"`
	InterestAmount         decimal.Decimal `gorm:"column:interest_amount;type:decimal(20,2);not null"`
	DisbursedAmount        decimal.Decimal `gorm:"column:disbursed_amount;type:decimal(20,2);not null"`
	TotalPayable           decimal.Decimal `gorm:"column:total_payable;type:decimal(20,2);not null"`
	OutstandingBalance     decimal.Decimal `gorm:"column:outstanding_balance;type:decimal(20,2);not null"`
	InstallmentAmount      decimal.Decimal `gorm:"column:installment_amount;type:decimal(20,2);not null"`
	InitialDeductionAmount decimal.Decimal `gorm:"column:initial_deduction_amount;type:decimal(20,2);not null;default:0"`
	TotalInstallments      int             `gorm:"column:total_installments;not null"`
	StartDate              time.Time       `gorm:"column:start_date;not null"`
	EndDate                time.Time       `gorm:"column:end_date;not null"`
	Status                 LoanStatus      `gorm:"column:status;type:varchar(20);not null;default:'ONGOING'"`
	IsActive               bool            `gorm:"column:is_active;not null;default:true"`
	CreatedBy              uint            `gorm:"column:created_by;not null"`
	Installments           []Installment   `gorm:"foreignKey:LoanID"`
}

// TableName возвращает имя таблицы для модели Loan
func (Loan) TableName() string {
	return "loans"
}
