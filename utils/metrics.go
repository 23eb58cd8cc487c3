package utils

import (
	"sync"
	"time"
)

// Metrics содержит метрики приложения
type Metrics struct {
	mu sync.RWMutex

	// Метрики запросов
	TotalRequests   int64
	FailedRequests  int64
	RequestLatency  time.Duration
	AverageLatency  time.Duration
	LastRequestTime time.Time

	// Метрики займов
	LoansCreated      int64
	LoansUpdated      int64
	StatusTransitions int64
	LastLoanOperation time.Time

	// Метрики взносов
	PaymentsRecorded   int64
	PartialPayments    int64
	MissedInstallments int64
	LastCollectionTime time.Time

	// Метрики ошибок
	ErrorCount    int64
	LastErrorTime time.Time
	ErrorTypes    map[string]int64
}

var (
	metrics     *Metrics
	metricsOnce sync.Once
)

// GetMetrics возвращает экземпляр метрик
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			ErrorTypes: make(map[string]int64),
		}
	})
	return metrics
}

// RecordRequest записывает метрики запроса
func (m *Metrics) RecordRequest(duration time.Duration, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRequests++
	m.RequestLatency += duration
	m.AverageLatency = m.RequestLatency / time.Duration(m.TotalRequests)
	m.LastRequestTime = time.Now()

	if failed {
		m.FailedRequests++
	}
}

// RecordLoanOperation записывает метрики операции с займом
func (m *Metrics) RecordLoanOperation(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastLoanOperation = time.Now()

	if err != nil {
		m.recordErrorLocked(err)
		return
	}

	switch operation {
	case "create":
		m.LoansCreated++
	case "update":
		m.LoansUpdated++
	case "status":
		m.StatusTransitions++
	}
}

// RecordInstallment записывает метрики операции со взносом
func (m *Metrics) RecordInstallment(status string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastCollectionTime = time.Now()

	if err != nil {
		m.recordErrorLocked(err)
		return
	}

	switch status {
	case "PAID":
		m.PaymentsRecorded++
	case "PARTIALLY":
		m.PartialPayments++
	case "MISSED":
		m.MissedInstallments++
	}
}

// RecordError записывает метрики ошибки
func (m *Metrics) RecordError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordErrorLocked(err)
}

func (m *Metrics) recordErrorLocked(err error) {
	m.ErrorCount++
	m.LastErrorTime = time.Now()

	errorType := "unknown"
	if err != nil {
		errorType = err.Error()
	}

	m.ErrorTypes[errorType]++
}

// GetMetricsSnapshot возвращает снимок текущих метрик
func (m *Metrics) GetMetricsSnapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"total_requests":      m.TotalRequests,
		"failed_requests":     m.FailedRequests,
		"average_latency":     m.AverageLatency,
		"loans_created":       m.LoansCreated,
		"loans_updated":       m.LoansUpdated,
		"status_transitions":  m.StatusTransitions,
		"payments_recorded":   m.PaymentsRecorded,
		"partial_payments":    m.PartialPayments,
		"missed_installments": m.MissedInstallments,
		"error_count":         m.ErrorCount,
		"last_error_time":     m.LastErrorTime,
		"error_types":         m.ErrorTypes,
	}
}

// ResetMetrics сбрасывает все метрики
func (m *Metrics) ResetMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalRequests = 0
	m.FailedRequests = 0
	m.RequestLatency = 0
	m.AverageLatency = 0
	m.LoansCreated = 0
	m.LoansUpdated = 0
	m.StatusTransitions = 0
	m.PaymentsRecorded = 0
	m.PartialPayments = 0
	m.MissedInstallments = 0
	m.ErrorCount = 0
	m.ErrorTypes = make(map[string]int64)
}
