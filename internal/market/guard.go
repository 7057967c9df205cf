package market

import "sync/atomic"

// reentryGuard marks a transaction in flight. It is held for the entire
// operation, including outbound transfers, so that a recipient running code
// mid-transfer cannot re-invoke any guarded operation before the transaction
// commits. enter/exit pair on every path.
type reentryGuard struct {
	busy atomic.Bool
}

// enter marks the guard held. Returns false if a transaction is already in
// flight (reentrant or colliding call).
func (g *reentryGuard) enter() bool {
	return g.busy.CompareAndSwap(false, true)
}

// exit releases the guard.
func (g *reentryGuard) exit() {
	g.busy.Store(false)
}
