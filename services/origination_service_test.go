package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microloans/models"
)

func testProduct(prepaid bool) *models.LoanProduct {
	return &models.LoanProduct{
		Name:                    "Ежедневный 100",
		CollectionCadence:       models.CadenceDaily,
		PeriodCount:             100,
		InterestPercent:         decimal.NewFromInt(10),
		InitialDeductionPercent: decimal.NewFromInt(5),
		InterestPrepaid:         prepaid,
	}
}

func TestCalculateOriginationInterestPrepaid(t *testing.T) {
	// Займ 10000 на 100 периодов, 10% процентов, 5% первоначальное удержание,
	// проценты удерживаются при выдаче
	result, err := CalculateOrigination(decimal.NewFromInt(10000), testProduct(true))
	require.NoError(t, err)

	assert.Equal(t, "1000.00", result.InterestAmount.StringFixed(2))
	assert.Equal(t, "500.00", result.InitialDeductionAmount.StringFixed(2))
	assert.Equal(t, "8500.00", result.DisbursedAmount.StringFixed(2))
	assert.Equal(t, "10000.00", result.TotalPayable.StringFixed(2))
	assert.Equal(t, "100.00", result.InstallmentAmount.StringFixed(2))
	assert.Equal(t, 100, result.TotalInstallments)
}

func TestCalculateOriginationInterestCollected(t *testing.T) {
	// Тот же займ, но проценты добавляются к сумме возврата
	result, err := CalculateOrigination(decimal.NewFromInt(10000), testProduct(false))
	require.NoError(t, err)

	assert.Equal(t, "1000.00", result.InterestAmount.StringFixed(2))
	assert.Equal(t, "500.00", result.InitialDeductionAmount.StringFixed(2))
	assert.Equal(t, "9500.00", result.DisbursedAmount.StringFixed(2))
	assert.Equal(t, "11000.00", result.TotalPayable.StringFixed(2))
	assert.Equal(t, "110.00", result.InstallmentAmount.StringFixed(2))
}

func TestCalculateOriginationRoundsHalfUp(t *testing.T) {
	product := testProduct(false)
	product.PeriodCount = 3
	product.InterestPercent = decimal.NewFromFloat(0.125)
	product.InitialDeductionPercent = decimal.Zero

	result, err := CalculateOrigination(decimal.NewFromInt(100), product)
	require.NoError(t, err)

	// 100 * 0.125% = 0.125, половина округляется вверх
	assert.Equal(t, "0.13", result.InterestAmount.StringFixed(2))
	// (100 + 0.13) / 3 = 33.376...
	assert.Equal(t, "33.38", result.InstallmentAmount.StringFixed(2))
}

func TestCalculateOriginationInvalidPrincipal(t *testing.T) {
	_, err := CalculateOrigination(decimal.Zero, testProduct(true))
	assert.ErrorIs(t, err, ErrInvalidPrincipal)

	_, err = CalculateOrigination(decimal.NewFromInt(-500), testProduct(true))
	assert.ErrorIs(t, err, ErrInvalidPrincipal)
}

func TestCalculateOriginationZeroPeriods(t *testing.T) {
	product := testProduct(true)
	product.PeriodCount = 0

	_, err := CalculateOrigination(decimal.NewFromInt(10000), product)
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestCalculateOriginationNegativeDisbursement(t *testing.T) {
	// Удержания и проценты в сумме превышают 100% от суммы займа
	product := testProduct(true)
	product.InterestPercent = decimal.NewFromInt(60)
	product.InitialDeductionPercent = decimal.NewFromInt(50)

	_, err := CalculateOrigination(decimal.NewFromInt(10000), product)
	assert.ErrorIs(t, err, ErrNegativeDisbursement)
}
