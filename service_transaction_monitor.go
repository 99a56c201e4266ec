package gatekit

import (
	"sync"
	"time"
)

// TransactionMetrics provides transaction performance and failure
// statistics.
type TransactionMetrics struct {
	TotalTransactions      int64         `json:"total_transactions"`
	SuccessfulTransactions int64         `json:"successful_transactions"`
	FailedTransactions     int64         `json:"failed_transactions"`
	AverageDuration        time.Duration `json:"average_duration"`
	MaxDuration            time.Duration `json:"max_duration"`
	MinDuration            time.Duration `json:"min_duration"`
	LastReset              time.Time     `json:"last_reset"`
}

// transactionMonitor holds the internal transaction monitoring state.
type transactionMonitor struct {
	mu            sync.Mutex
	totalCount    int64
	successCount  int64
	failureCount  int64
	totalDuration time.Duration
	maxDuration   time.Duration
	minDuration   time.Duration
	lastReset     time.Time
}

func newTransactionMonitor() *transactionMonitor {
	return &transactionMonitor{
		lastReset: time.Now(),
	}
}

func (tm *transactionMonitor) record(duration time.Duration, success bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.totalCount++
	tm.totalDuration += duration
	if success {
		tm.successCount++
	} else {
		tm.failureCount++
	}

	if duration > tm.maxDuration {
		tm.maxDuration = duration
	}
	if tm.minDuration == 0 || duration < tm.minDuration {
		tm.minDuration = duration
	}
}

func (tm *transactionMonitor) metrics() TransactionMetrics {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	m := TransactionMetrics{
		TotalTransactions:      tm.totalCount,
		SuccessfulTransactions: tm.successCount,
		FailedTransactions:     tm.failureCount,
		MaxDuration:            tm.maxDuration,
		MinDuration:            tm.minDuration,
		LastReset:              tm.lastReset,
	}
	if tm.totalCount > 0 {
		m.AverageDuration = tm.totalDuration / time.Duration(tm.totalCount)
	}
	return m
}

func (tm *transactionMonitor) reset() {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.totalCount = 0
	tm.successCount = 0
	tm.failureCount = 0
	tm.totalDuration = 0
	tm.maxDuration = 0
	tm.minDuration = 0
	tm.lastReset = time.Now()
}

// GetTransactionMetrics returns the current transaction performance
// metrics.
func (s *Service) GetTransactionMetrics() TransactionMetrics {
	return s.txMonitor.metrics()
}

// ResetTransactionMetrics resets all transaction metrics.
func (s *Service) ResetTransactionMetrics() {
	s.txMonitor.reset()
}

// IsTransactionHealthy checks if transaction performance is within
// acceptable thresholds: failure rate under 5% and average duration under
// one second, once enough transactions have been observed.
func (s *Service) IsTransactionHealthy() bool {
	m := s.txMonitor.metrics()

	if m.TotalTransactions < 10 {
		return true
	}

	failureRate := float64(m.FailedTransactions) / float64(m.TotalTransactions)
	if failureRate > 0.05 {
		return false
	}

	return m.AverageDuration <= time.Second
}
