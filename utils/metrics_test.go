package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newMetrics() *Metrics {
	return &Metrics{ErrorTypes: make(map[string]int64)}
}

func TestRecordInstallmentCountsByStatus(t *testing.T) {
	m := newMetrics()

	m.RecordInstallment("PAID", nil)
	m.RecordInstallment("PAID", nil)
	m.RecordInstallment("PARTIALLY", nil)
	m.RecordInstallment("MISSED", nil)

	assert.EqualValues(t, 2, m.PaymentsRecorded)
	assert.EqualValues(t, 1, m.PartialPayments)
	assert.EqualValues(t, 1, m.MissedInstallments)
	assert.EqualValues(t, 0, m.ErrorCount)
}

func TestRecordInstallmentErrorDoesNotCountAsSuccess(t *testing.T) {
	m := newMetrics()

	// Ошибка операции попадает только в счетчики ошибок,
	// счетчики статусов остаются нетронутыми
	m.RecordInstallment("PAID", errors.New("ошибка при обновлении взноса"))

	assert.EqualValues(t, 0, m.PaymentsRecorded)
	assert.EqualValues(t, 1, m.ErrorCount)
	assert.EqualValues(t, 1, m.ErrorTypes["ошибка при обновлении взноса"])
	assert.False(t, m.LastErrorTime.IsZero())
}

func TestRecordLoanOperationCountsByKind(t *testing.T) {
	m := newMetrics()

	m.RecordLoanOperation("create", nil)
	m.RecordLoanOperation("update", nil)
	m.RecordLoanOperation("status", nil)
	m.RecordLoanOperation("create", errors.New("ошибка при создании займа"))

	assert.EqualValues(t, 1, m.LoansCreated)
	assert.EqualValues(t, 1, m.LoansUpdated)
	assert.EqualValues(t, 1, m.StatusTransitions)
	assert.EqualValues(t, 1, m.ErrorCount)
}

func TestRecordRequestTracksAverageLatency(t *testing.T) {
	m := newMetrics()

	m.RecordRequest(100*time.Millisecond, false)
	m.RecordRequest(300*time.Millisecond, true)

	assert.EqualValues(t, 2, m.TotalRequests)
	assert.EqualValues(t, 1, m.FailedRequests)
	assert.Equal(t, 200*time.Millisecond, m.AverageLatency)
}

func TestResetMetricsClearsCounters(t *testing.T) {
	m := newMetrics()
	m.RecordInstallment("PAID", nil)
	m.RecordError(errors.New("ошибка"))

	m.ResetMetrics()

	snapshot := m.GetMetricsSnapshot()
	assert.EqualValues(t, 0, snapshot["payments_recorded"])
	assert.EqualValues(t, 0, snapshot["error_count"])
	assert.Empty(t, m.ErrorTypes)
}
