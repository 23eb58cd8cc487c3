package services

import (
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"microloans/models"
)

var testDay = time.Date(2024, time.May, 10, 15, 30, 0, 0, time.UTC)

func newLedger(t *testing.T) (*InstallmentService, *fixture) {
	t.Helper()
	db := setupTestDB(t)
	f := newFixture(t, db, defaultFixtureOptions())

	service := NewInstallmentService(db, nil)
	service.SetClock(fixedClock(testDay))
	return service, f
}

func paymentDTO(f *fixture, amount, cash, online float64) RecordPaymentDTO {
	return RecordPaymentDTO{
		LoanID:       f.loan.ID,
		Amount:       amount,
		CashAmount:   cash,
		OnlineAmount: online,
		UserID:       f.collector.ID,
		TenantID:     f.tenant.ID,
	}
}

func TestRecordPaymentFullAmountMarksPaid(t *testing.T) {
	service, f := newLedger(t)

	installment, err := service.RecordPayment(paymentDTO(f, 100, 60, 40))
	require.NoError(t, err)

	assert.Equal(t, models.InstallmentStatusPaid, installment.Status)
	assert.Equal(t, "0.00", installment.RemainingAmount.StringFixed(2))
	assert.Equal(t, "60.00", installment.CashAmount.StringFixed(2))
	assert.Equal(t, "40.00", installment.OnlineAmount.StringFixed(2))
	assert.Equal(t, f.collector.ID, installment.CollectedBy)

	// Дата взноса назначается сервером как сегодняшняя календарная дата
	assert.True(t, installment.DueDate.Equal(date(2024, time.May, 10)))
	// Срок следующего платежа считается от сегодня на число периодов продукта
	assert.True(t, installment.NextDueAt.Equal(date(2024, time.August, 18)))

	loan := reloadLoan(t, service.db, f.loan.ID)
	assert.Equal(t, "9900.00", loan.OutstandingBalance.StringFixed(2))
	assert.Equal(t, models.LoanStatusOngoing, loan.Status)
}

func TestRecordPaymentPartialAmount(t *testing.T) {
	service, f := newLedger(t)

	installment, err := service.RecordPayment(paymentDTO(f, 40, 40, 0))
	require.NoError(t, err)

	assert.Equal(t, models.InstallmentStatusPartially, installment.Status)
	assert.Equal(t, "60.00", installment.RemainingAmount.StringFixed(2))

	loan := reloadLoan(t, service.db, f.loan.ID)
	assert.Equal(t, "9960.00", loan.OutstandingBalance.StringFixed(2))
}

func TestRecordPaymentZeroAmountMarksMissed(t *testing.T) {
	service, f := newLedger(t)

	installment, err := service.RecordPayment(paymentDTO(f, 0, 0, 0))
	require.NoError(t, err)

	assert.Equal(t, models.InstallmentStatusMissed, installment.Status)
	assert.Equal(t, "100.00", installment.RemainingAmount.StringFixed(2))

	// Нулевой платеж не меняет остаток долга
	loan := reloadLoan(t, service.db, f.loan.ID)
	assert.Equal(t, "10000.00", loan.OutstandingBalance.StringFixed(2))
}

func TestRecordPaymentSameDayUpdatesExistingRow(t *testing.T) {
	service, f := newLedger(t)

	_, err := service.RecordPayment(paymentDTO(f, 40, 40, 0))
	require.NoError(t, err)

	// Повторная запись за тот же день обновляет строку, а не создает вторую
	installment, err := service.RecordPayment(paymentDTO(f, 100, 100, 0))
	require.NoError(t, err)

	assert.Equal(t, models.InstallmentStatusPaid, installment.Status)
	assert.EqualValues(t, 1, countInstallments(t, service.db, f.loan.ID))

	// Остаток считается по замененной строке, без двойного учета
	loan := reloadLoan(t, service.db, f.loan.ID)
	assert.Equal(t, "9900.00", loan.OutstandingBalance.StringFixed(2))
}

func TestRecordPaymentLostInsertRaceRetriesAsUpdate(t *testing.T) {
	service, f := newLedger(t)
	today := DateOnly(testDay)

	// Эмулируем проигрыш гонки за строку дня: после того как поиск записи
	// за сегодня вернул пустой результат, конкурентная запись появляется в
	// обход сервиса, и Create упирается в уникальный индекс (loan_id, due_date)
	raced := false
	err := service.db.Callback().Query().After("gorm:query").Register("lost_race_insert", func(tx *gorm.DB) {
		if raced || tx.Statement.Table != "installments" || !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			return
		}
		raced = true
		_, execErr := tx.Statement.ConnPool.ExecContext(tx.Statement.Context,
			`INSERT INTO installments
			 (tenant_id, loan_id, due_date, amount, cash_amount, online_amount,
			  remaining_amount, status, collected_by, next_due_at, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.tenant.ID, f.loan.ID, today, 100, 40, 0, 60,
			string(models.InstallmentStatusPartially), f.collector.ID, today, testDay, testDay)
		require.NoError(t, execErr)
	})
	require.NoError(t, err)

	installment, err := service.RecordPayment(paymentDTO(f, 100, 100, 0))
	require.NoError(t, err)
	assert.True(t, raced)

	// Проигравший повторяет запись как обновление чужой строки, без дубликата
	assert.Equal(t, models.InstallmentStatusPaid, installment.Status)
	assert.Equal(t, "100.00", installment.CashAmount.StringFixed(2))
	assert.EqualValues(t, 1, countInstallments(t, service.db, f.loan.ID))

	loan := reloadLoan(t, service.db, f.loan.ID)
	assert.Equal(t, "9900.00", loan.OutstandingBalance.StringFixed(2))
}

func TestRecordPaymentAcrossDaysAggregates(t *testing.T) {
	service, f := newLedger(t)

	_, err := service.RecordPayment(paymentDTO(f, 100, 100, 0))
	require.NoError(t, err)

	service.SetClock(fixedClock(testDay.AddDate(0, 0, 1)))
	_, err = service.RecordPayment(paymentDTO(f, 40, 0, 40))
	require.NoError(t, err)

	assert.EqualValues(t, 2, countInstallments(t, service.db, f.loan.ID))

	loan := reloadLoan(t, service.db, f.loan.ID)
	assert.Equal(t, "9860.00", loan.OutstandingBalance.StringFixed(2))
}

func TestRecordPaymentAmountMismatch(t *testing.T) {
	service, f := newLedger(t)

	_, err := service.RecordPayment(paymentDTO(f, 100, 60, 30))
	assert.ErrorIs(t, err, ErrAmountMismatch)

	assert.EqualValues(t, 0, countInstallments(t, service.db, f.loan.ID))
}

func TestRecordPaymentLoanNotFound(t *testing.T) {
	service, f := newLedger(t)

	dto := paymentDTO(f, 100, 100, 0)
	dto.LoanID = 9999

	_, err := service.RecordPayment(dto)
	assert.ErrorIs(t, err, ErrLoanNotFound)
}

func TestRecordPaymentTenantMismatch(t *testing.T) {
	service, f := newLedger(t)

	dto := paymentDTO(f, 100, 100, 0)
	dto.TenantID = f.tenant.ID + 1

	_, err := service.RecordPayment(dto)
	assert.ErrorIs(t, err, ErrTenantMismatch)
}

func TestRecordPaymentUserNotInAccessList(t *testing.T) {
	service, f := newLedger(t)

	dto := paymentDTO(f, 100, 100, 0)
	dto.UserID = f.outsider.ID

	_, err := service.RecordPayment(dto)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	assert.EqualValues(t, 0, countInstallments(t, service.db, f.loan.ID))
}

func TestRecordPaymentEmptyAccessListDeniesAll(t *testing.T) {
	db := setupTestDB(t)
	opts := defaultFixtureOptions()
	opts.accessUserIDs = func(uint) pq.Int64Array { return pq.Int64Array{} }
	f := newFixture(t, db, opts)

	service := NewInstallmentService(db, nil)
	service.SetClock(fixedClock(testDay))

	_, err := service.RecordPayment(paymentDTO(f, 100, 100, 0))
	assert.ErrorIs(t, err, ErrNoAccessAssignment)
}

func TestRecordPaymentCompletesLoan(t *testing.T) {
	service, f := newLedger(t)

	// Сводим долг к одному взносу
	require.NoError(t, service.db.Model(&models.Loan{}).
		Where("id = ?", f.loan.ID).
		Updates(map[string]interface{}{
			"total_payable":       decimal.NewFromInt(100),
			"outstanding_balance": decimal.NewFromInt(100),
		}).Error)

	_, err := service.RecordPayment(paymentDTO(f, 100, 100, 0))
	require.NoError(t, err)

	loan := reloadLoan(t, service.db, f.loan.ID)
	assert.Equal(t, "0.00", loan.OutstandingBalance.StringFixed(2))
	assert.Equal(t, models.LoanStatusCompleted, loan.Status)
	assert.False(t, loan.IsActive)
}

func TestRecordPaymentOverpaymentFloorsBalanceAtZero(t *testing.T) {
	service, f := newLedger(t)

	require.NoError(t, service.db.Model(&models.Loan{}).
		Where("id = ?", f.loan.ID).
		Updates(map[string]interface{}{
			"total_payable":       decimal.NewFromInt(100),
			"outstanding_balance": decimal.NewFromInt(100),
		}).Error)

	_, err := service.RecordPayment(paymentDTO(f, 150, 150, 0))
	require.NoError(t, err)

	// Переплата не уводит остаток в минус
	loan := reloadLoan(t, service.db, f.loan.ID)
	assert.Equal(t, "0.00", loan.OutstandingBalance.StringFixed(2))
}

func TestMarkFullyPaid(t *testing.T) {
	service, f := newLedger(t)

	created, err := service.RecordPayment(paymentDTO(f, 40, 40, 0))
	require.NoError(t, err)

	installment, err := service.MarkFullyPaid(MarkPaidDTO{
		InstallmentID: created.ID,
		CashAmount:    70,
		OnlineAmount:  30,
		UserID:        f.collector.ID,
		TenantID:      f.tenant.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, models.InstallmentStatusPaid, installment.Status)
	assert.Equal(t, "0.00", installment.RemainingAmount.StringFixed(2))

	// Прежний частичный платеж замещается, а не суммируется
	loan := reloadLoan(t, service.db, f.loan.ID)
	assert.Equal(t, "9900.00", loan.OutstandingBalance.StringFixed(2))
}

func TestMarkFullyPaidAlreadyPaid(t *testing.T) {
	service, f := newLedger(t)

	created, err := service.RecordPayment(paymentDTO(f, 100, 100, 0))
	require.NoError(t, err)

	_, err = service.MarkFullyPaid(MarkPaidDTO{
		InstallmentID: created.ID,
		CashAmount:    100,
		UserID:        f.collector.ID,
		TenantID:      f.tenant.ID,
	})
	assert.ErrorIs(t, err, ErrAlreadyPaid)

	// Состояние не изменилось
	loan := reloadLoan(t, service.db, f.loan.ID)
	assert.Equal(t, "9900.00", loan.OutstandingBalance.StringFixed(2))
}

func TestMarkPartiallyPaid(t *testing.T) {
	service, f := newLedger(t)

	created, err := service.RecordPayment(paymentDTO(f, 60, 60, 0))
	require.NoError(t, err)

	installment, err := service.MarkPartiallyPaid(MarkPaidDTO{
		InstallmentID: created.ID,
		CashAmount:    25,
		UserID:        f.collector.ID,
		TenantID:      f.tenant.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, models.InstallmentStatusPartially, installment.Status)
	// Недоплата считается от заявленной суммы взноса
	assert.Equal(t, "35.00", installment.RemainingAmount.StringFixed(2))

	loan := reloadLoan(t, service.db, f.loan.ID)
	assert.Equal(t, "9975.00", loan.OutstandingBalance.StringFixed(2))
}

func TestMarkPartiallyPaidOverpayment(t *testing.T) {
	service, f := newLedger(t)

	created, err := service.RecordPayment(paymentDTO(f, 60, 60, 0))
	require.NoError(t, err)

	_, err = service.MarkPartiallyPaid(MarkPaidDTO{
		InstallmentID: created.ID,
		CashAmount:    60,
		UserID:        f.collector.ID,
		TenantID:      f.tenant.ID,
	})
	assert.ErrorIs(t, err, ErrOverpaymentUseFullPaid)

	// Отклоненная операция не трогает ни взнос, ни остаток
	loan := reloadLoan(t, service.db, f.loan.ID)
	assert.Equal(t, "9940.00", loan.OutstandingBalance.StringFixed(2))
}

func TestMarkMissed(t *testing.T) {
	service, f := newLedger(t)

	installment, err := service.MarkMissed(MarkMissedDTO{
		LoanID:   f.loan.ID,
		UserID:   f.collector.ID,
		TenantID: f.tenant.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, models.InstallmentStatusMissed, installment.Status)
	assert.Equal(t, "100.00", installment.RemainingAmount.StringFixed(2))
	assert.Equal(t, "0.00", installment.Paid().StringFixed(2))

	loan := reloadLoan(t, service.db, f.loan.ID)
	assert.Equal(t, "10000.00", loan.OutstandingBalance.StringFixed(2))
}

func TestGetByLoanID(t *testing.T) {
	service, f := newLedger(t)

	_, err := service.RecordPayment(paymentDTO(f, 100, 100, 0))
	require.NoError(t, err)

	service.SetClock(fixedClock(testDay.AddDate(0, 0, 1)))
	_, err = service.RecordPayment(paymentDTO(f, 40, 40, 0))
	require.NoError(t, err)

	installments, err := service.GetByLoanID(f.loan.ID, f.tenant.ID)
	require.NoError(t, err)
	require.Len(t, installments, 2)

	// История отсортирована по дате взноса
	assert.True(t, installments[0].DueDate.Before(installments[1].DueDate))

	_, err = service.GetByLoanID(f.loan.ID, f.tenant.ID+1)
	assert.ErrorIs(t, err, ErrTenantMismatch)
}

func TestCloseCollectionDayCreatesMissedRows(t *testing.T) {
	service, f := newLedger(t)

	require.NoError(t, service.CloseCollectionDay(testDay))

	installments, err := service.GetByLoanID(f.loan.ID, f.tenant.ID)
	require.NoError(t, err)
	require.Len(t, installments, 1)
	assert.Equal(t, models.InstallmentStatusMissed, installments[0].Status)
	assert.Equal(t, "100.00", installments[0].RemainingAmount.StringFixed(2))

	// Повторное закрытие того же дня не создает дубликатов
	require.NoError(t, service.CloseCollectionDay(testDay))
	assert.EqualValues(t, 1, countInstallments(t, service.db, f.loan.ID))
}

func TestCloseCollectionDaySkipsServicedLoans(t *testing.T) {
	service, f := newLedger(t)

	_, err := service.RecordPayment(paymentDTO(f, 100, 100, 0))
	require.NoError(t, err)

	require.NoError(t, service.CloseCollectionDay(testDay))

	// Обслуженный займ сохраняет свою запись
	installments, err := service.GetByLoanID(f.loan.ID, f.tenant.ID)
	require.NoError(t, err)
	require.Len(t, installments, 1)
	assert.Equal(t, models.InstallmentStatusPaid, installments[0].Status)
}

func TestCloseCollectionDaySkipsFutureLoans(t *testing.T) {
	service, f := newLedger(t)

	// Займ выдан позже даты закрытия
	require.NoError(t, service.db.Model(&models.Loan{}).
		Where("id = ?", f.loan.ID).
		Update("start_date", date(2024, time.June, 1)).Error)

	require.NoError(t, service.CloseCollectionDay(testDay))
	assert.EqualValues(t, 0, countInstallments(t, service.db, f.loan.ID))
}

func TestCloseCollectionDaySkipsNonDailyLoans(t *testing.T) {
	db := setupTestDB(t)
	opts := defaultFixtureOptions()
	opts.cadence = models.CadenceWeekly
	f := newFixture(t, db, opts)

	service := NewInstallmentService(db, nil)
	service.SetClock(fixedClock(testDay))

	require.NoError(t, service.CloseCollectionDay(testDay))
	assert.EqualValues(t, 0, countInstallments(t, db, f.loan.ID))
}
