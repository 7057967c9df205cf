// Package bank is an in-memory value ledger. It is the value transfer
// collaborator of the market engine: Collect moves a bidder's funds into the
// engine's escrow account, Send pays value back out. Recipient hooks let
// tests model hostile recipients that run code mid-transfer.
package bank

import (
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Galien-Dev/celo-sumbit/internal/domain"
)

var (
	// ErrInsufficientFunds is returned when a payer cannot cover a Collect.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUnknownAccount is returned for a Send to an account that was never
	// funded or created.
	ErrUnknownAccount = errors.New("unknown account")
)

// ReceiveHook runs on an account's behalf when it receives a Send, before the
// transfer is considered complete. Returning an error rejects the payment.
// This is the hostile-recipient seam used by reentrancy tests.
type ReceiveHook func(amount decimal.Decimal) error

// Ledger holds account balances and the escrow custody account.
type Ledger struct {
	mu       sync.Mutex
	escrow   domain.Account
	balances map[domain.Account]decimal.Decimal
	hooks    map[domain.Account]ReceiveHook
}

// NewLedger creates a ledger whose escrow custody belongs to the given
// account identity.
func NewLedger(escrow domain.Account) *Ledger {
	return &Ledger{
		escrow:   escrow,
		balances: map[domain.Account]decimal.Decimal{escrow: decimal.Zero},
		hooks:    make(map[domain.Account]ReceiveHook),
	}
}

// Deposit credits an account out of thin air. Test and demo seeding only.
func (l *Ledger) Deposit(acct domain.Account, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[acct] = l.balances[acct].Add(amount)
}

// BalanceOf returns the current balance of an account.
func (l *Ledger) BalanceOf(acct domain.Account) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[acct]
}

// EscrowBalance returns the value currently held in escrow custody.
func (l *Ledger) EscrowBalance() decimal.Decimal {
	return l.BalanceOf(l.escrow)
}

// Collect moves amount from the payer into escrow custody.
func (l *Ledger) Collect(from domain.Account, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[from].LessThan(amount) {
		return ErrInsufficientFunds
	}
	l.balances[from] = l.balances[from].Sub(amount)
	l.balances[l.escrow] = l.balances[l.escrow].Add(amount)
	return nil
}

// Send moves amount from escrow custody to the recipient. The recipient's
// hook, if any, runs outside the ledger lock and may call back into the
// system; a hook error rejects the payment and leaves balances unchanged.
func (l *Ledger) Send(to domain.Account, amount decimal.Decimal) error {
	l.mu.Lock()
	if l.balances[l.escrow].LessThan(amount) {
		l.mu.Unlock()
		return ErrInsufficientFunds
	}
	hook := l.hooks[to]
	l.mu.Unlock()

	if hook != nil {
		if err := hook(amount); err != nil {
			return err
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[l.escrow] = l.balances[l.escrow].Sub(amount)
	l.balances[to] = l.balances[to].Add(amount)
	return nil
}

// SetReceiveHook installs recipient code that runs during Send. Tests use
// this to simulate recipients that reject payment or re-enter the engine.
func (l *Ledger) SetReceiveHook(acct domain.Account, hook ReceiveHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if hook == nil {
		delete(l.hooks, acct)
		return
	}
	l.hooks[acct] = hook
}
