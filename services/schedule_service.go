package services

import (
	"time"

	"microloans/models"
)

// DateLayout задает формат календарных дат во входных данных
const DateLayout = "2006-01-02"

// AddCollectionPeriods сдвигает дату на units единиц периодичности сбора.
// Для месячной периодичности используется календарная арифметика, а не блоки по 30 дней.
func AddCollectionPeriods(cadence models.CollectionCadence, units int, from time.Time) (time.Time, error) {
	switch cadence {
	case models.CadenceDaily:
		return from.AddDate(0, 0, units), nil
	case models.CadenceWeekly:
		return from.AddDate(0, 0, units*7), nil
	case models.CadenceMonthly:
		return from.AddDate(0, units, 0), nil
	default:
		return time.Time{}, ErrInvalidCadence
	}
}

// LoanEndDate вычисляет дату окончания займа от даты выдачи
func LoanEndDate(product *models.LoanProduct, startDate time.Time) (time.Time, error) {
	return AddCollectionPeriods(product.CollectionCadence, product.PeriodCount, startDate)
}

// NextDueAt вычисляет срок следующего платежа от опорной даты (обычно «сегодня»).
// Смещение задается числом единиц периодичности продукта и пересчитывается
// при каждой записи взноса, результат не кешируется.
func NextDueAt(product *models.LoanProduct, reference time.Time) (time.Time, error) {
	return AddCollectionPeriods(product.CollectionCadence, product.PeriodCount, reference)
}

// ParseLoanDate разбирает календарную дату из запроса
func ParseLoanDate(value string) (time.Time, error) {
	date, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return date, nil
}

// DateOnly отбрасывает время, оставляя календарную дату в UTC
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
