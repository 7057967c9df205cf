package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	listingsCreated  atomic.Uint64
	bidsAccepted     atomic.Uint64
	bidsRejected     atomic.Uint64
	settlements      atomic.Uint64
	withdrawals      atomic.Uint64
	transferFailures atomic.Uint64

	// Gauges
	activeConnections atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordListingCreated records a new auction entering escrow.
func (m *Metrics) RecordListingCreated() {
	m.listingsCreated.Add(1)
}

// RecordBidAccepted records an accepted bid.
func (m *Metrics) RecordBidAccepted() {
	m.bidsAccepted.Add(1)
}

// RecordBidRejected records a rejected bid.
func (m *Metrics) RecordBidRejected() {
	m.bidsRejected.Add(1)
}

// RecordSettlement records a completed auction.
func (m *Metrics) RecordSettlement() {
	m.settlements.Add(1)
}

// RecordWithdrawal records a refunded losing bid.
func (m *Metrics) RecordWithdrawal() {
	m.withdrawals.Add(1)
}

// RecordTransferFailure records a custody interaction that failed and was
// rolled back.
func (m *Metrics) RecordTransferFailure() {
	m.transferFailures.Add(1)
}

// IncrementConnections increments active feed connections by 1.
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Add(1)
}

// DecrementConnections decrements active feed connections by 1.
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	ListingsCreated   uint64
	BidsAccepted      uint64
	BidsRejected      uint64
	Settlements       uint64
	Withdrawals       uint64
	TransferFailures  uint64
	ActiveConnections int32
	Timestamp         time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		ListingsCreated:   m.listingsCreated.Load(),
		BidsAccepted:      m.bidsAccepted.Load(),
		BidsRejected:      m.bidsRejected.Load(),
		Settlements:       m.settlements.Load(),
		Withdrawals:       m.withdrawals.Load(),
		TransferFailures:  m.transferFailures.Load(),
		ActiveConnections: m.activeConnections.Load(),
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.listingsCreated.Store(0)
	m.bidsAccepted.Store(0)
	m.bidsRejected.Store(0)
	m.settlements.Store(0)
	m.withdrawals.Store(0)
	m.transferFailures.Store(0)
	m.activeConnections.Store(0)
}
