package services

import (
	"github.com/shopspring/decimal"

	"microloans/models"
)

var hundred = decimal.NewFromInt(100)

// Origination содержит финансовые параметры займа, рассчитанные при выдаче
type Origination struct {
	InterestAmount         decimal.Decimal
	InitialDeductionAmount decimal.Decimal
	DisbursedAmount        decimal.Decimal
	InstallmentAmount      decimal.Decimal
	TotalPayable           decimal.Decimal
	TotalInstallments      int
}

// CalculateOrigination рассчитывает параметры займа из суммы и кредитного продукта.
// Все суммы округляются до двух знаков вверх от половины (round half up).
// Отрицательная сумма к выдаче отклоняется как ошибка валидации.
func CalculateOrigination(principal decimal.Decimal, product *models.LoanProduct) (*Origination, error) {
	if principal.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidPrincipal
	}
	if product.PeriodCount <= 0 {
		return nil, ErrDivisionByZero
	}

	periods := decimal.NewFromInt(int64(product.PeriodCount))

	// Проценты и первоначальное удержание считаются от суммы займа один раз при выдаче
	interest := principal.Mul(product.InterestPercent).Div(hundred).Round(2)
	deduction := principal.Mul(product.InitialDeductionPercent).Div(hundred).Round(2)

	result := &Origination{
		InterestAmount:         interest,
		InitialDeductionAmount: deduction,
		TotalInstallments:      product.PeriodCount,
	}

	if product.InterestPrepaid {
		// Проценты удерживаются из выдачи, к возврату только тело займа
		result.DisbursedAmount = principal.Sub(interest).Sub(deduction)
		result.InstallmentAmount = principal.Div(periods).Round(2)
		result.TotalPayable = principal
	} else {
		// Проценты добавляются к сумме возврата
		result.DisbursedAmount = principal.Sub(deduction)
		result.InstallmentAmount = principal.Add(interest).Div(periods).Round(2)
		result.TotalPayable = principal.Add(interest)
	}

	if result.DisbursedAmount.IsNegative() {
		return nil, ErrNegativeDisbursement
	}

	return result, nil
}
