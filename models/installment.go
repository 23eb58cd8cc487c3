package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InstallmentStatus представляет статус взноса
type InstallmentStatus string

const (
	InstallmentStatusPaid      InstallmentStatus = "PAID"      // Взнос оплачен полностью
	InstallmentStatusPartially InstallmentStatus = "PARTIALLY" // Взнос оплачен частично
	InstallmentStatusMissed    InstallmentStatus = "MISSED"    // Взнос пропущен
)

// Installment представляет дневной взнос по займу.
// Уникальный индекс (loan_id, due_date) гарантирует не более одной записи
// на займ за календарную дату.
type Installment struct {
	gorm.Model
	TenantID        uint              `gorm:"column:tenant_id;not null;index"`
	Tenant          Tenant            `gorm:"foreignKey:TenantID"`
	LoanID          uint              `gorm:"column:loan_id;not null;uniqueIndex:ux_installments_loan_due"`
	Loan            Loan              `gorm:"foreignKey:LoanID"`
	DueDate         time.Time         `gorm:"column:due_date;type:date;not null;uniqueIndex:ux_installments_loan_due"`
	Amount          decimal.Decimal   `gorm:"column:amount;type:decimal(20,2);not null"`
	CashAmount      decimal.Decimal   `gorm:"column:cash_amount;type:decimal(20,2);not null;default:0"`   // Наличная часть платежа
	OnlineAmount    decimal.Decimal   `gorm:"column:online_amount;type:decimal(20,2);not null;default:0"` // Безналичная часть платежа
	RemainingAmount decimal.Decimal   `gorm:"column:remaining_amount;type:decimal(20,2);not null;default:0"`
	Status          InstallmentStatus `gorm:"column:status;type:varchar(20);not null"`
	CollectedBy     uint              `gorm:"column:collected_by;not null"`
	NextDueAt       time.Time         `gorm:"column:next_due_at;not null"`
}

// TableName возвращает имя таблицы для модели Installment
func (Installment) TableName() string {
	return "installments"
}

// Paid возвращает фактически внесенную сумму по обоим каналам
func (i *Installment) Paid() decimal.Decimal {
	return i.CashAmount.Add(i.OnlineAmount)
}
