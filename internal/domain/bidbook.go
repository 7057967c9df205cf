package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BidBook is the bid ledger: cumulative locked value per (listing, bidder),
// plus one highest-bidder pointer per listing.
//
// Entries are monotonically non-decreasing while the auction is open; the
// only decrease allowed is zeroing, exactly once, on settlement or refund.
// The book is not goroutine-safe; the market engine is its sole mutator and
// serializes access.
type BidBook struct {
	entries map[ListingID]map[Account]decimal.Decimal
	leaders map[ListingID]Account
}

// NewBidBook creates an empty bid ledger.
func NewBidBook() *BidBook {
	return &BidBook{
		entries: make(map[ListingID]map[Account]decimal.Decimal),
		leaders: make(map[ListingID]Account),
	}
}

// Entry returns the cumulative locked value for (listing, bidder).
// A bidder with no entry has a zero cumulative bid.
func (b *BidBook) Entry(id ListingID, bidder Account) decimal.Decimal {
	return b.entries[id][bidder]
}

// Raise adds value to the bidder's cumulative entry and returns the new
// cumulative total. Panics on non-positive value: qualification checks
// belong to the engine and must happen before the ledger is touched.
func (b *BidBook) Raise(id ListingID, bidder Account, value decimal.Decimal) decimal.Decimal {
	if !value.IsPositive() {
		panic(fmt.Sprintf("BIDBOOK_RAISE_NON_POSITIVE: listing %d bidder %s value %s",
			id, bidder, value))
	}
	book, ok := b.entries[id]
	if !ok {
		book = make(map[Account]decimal.Decimal)
		b.entries[id] = book
	}
	total := book[bidder].Add(value)
	book[bidder] = total
	return total
}

// Clear zeroes the bidder's entry and returns the prior amount.
// The caller captures the returned amount for the outbound transfer and the
// emitted record; re-reading the entry after Clear always yields zero.
func (b *BidBook) Clear(id ListingID, bidder Account) decimal.Decimal {
	amount := b.entries[id][bidder]
	if book, ok := b.entries[id]; ok {
		delete(book, bidder)
	}
	return amount
}

// Restore reinstates an entry after a failed outbound transfer so that the
// whole operation rolls back atomically. Only the engine's rollback path
// calls this.
func (b *BidBook) Restore(id ListingID, bidder Account, amount decimal.Decimal) {
	if amount.IsNegative() {
		panic(fmt.Sprintf("BIDBOOK_RESTORE_NEGATIVE: listing %d bidder %s amount %s",
			id, bidder, amount))
	}
	if amount.IsZero() {
		return
	}
	book, ok := b.entries[id]
	if !ok {
		book = make(map[Account]decimal.Decimal)
		b.entries[id] = book
	}
	book[bidder] = amount
}

// Leader returns the current highest bidder for the listing, or (None, false)
// if no bid has ever been accepted.
func (b *BidBook) Leader(id ListingID) (Account, bool) {
	leader, ok := b.leaders[id]
	if !ok || leader == None {
		return None, false
	}
	return leader, true
}

// SetLeader records the highest-bidder pointer. At most one identity leads a
// listing at any time; a qualifying new bid overwrites the previous leader.
func (b *BidBook) SetLeader(id ListingID, bidder Account) {
	b.leaders[id] = bidder
}

// Total returns the sum of all live entries for the listing. Escrow
// conservation requires this to equal the value held in escrow for the
// listing at every observable point.
func (b *BidBook) Total(id ListingID) decimal.Decimal {
	total := decimal.Zero
	for _, amount := range b.entries[id] {
		total = total.Add(amount)
	}
	return total
}

// Bidders returns every account with a live entry for the listing.
func (b *BidBook) Bidders(id ListingID) []Account {
	book := b.entries[id]
	out := make([]Account, 0, len(book))
	for bidder := range book {
		out = append(out, bidder)
	}
	return out
}

// VerifyInvariant checks ledger integrity for one listing.
// Call after any state change; a violation means value was created or
// destroyed and the engine must halt.
func (b *BidBook) VerifyInvariant(id ListingID) {
	for bidder, amount := range b.entries[id] {
		if amount.IsNegative() {
			panic(fmt.Sprintf("BIDBOOK_INVARIANT_NEGATIVE_ENTRY: listing %d bidder %s = %s",
				id, bidder, amount))
		}
		if amount.IsZero() {
			panic(fmt.Sprintf("BIDBOOK_INVARIANT_ZERO_ENTRY_RETAINED: listing %d bidder %s",
				id, bidder))
		}
	}
}

// Snapshot returns a copy of all live entries for the listing (for state dump
// and persistence).
func (b *BidBook) Snapshot(id ListingID) map[Account]decimal.Decimal {
	book := b.entries[id]
	out := make(map[Account]decimal.Decimal, len(book))
	for bidder, amount := range book {
		out[bidder] = amount
	}
	return out
}
