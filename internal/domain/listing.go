package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ListingID is the monotonically increasing identifier assigned to a listing
// at creation. IDs start at 1 and are never reused.
type ListingID uint64

// AssetID identifies a unique asset tracked by the asset registry.
type AssetID uint64

// Account is the identity of a seller, bidder or escrow holder.
type Account string

// None is the zero Account, used where no identity applies
// (e.g. a listing that never received a bid).
const None Account = ""

// ListingStatus is the explicit listing state. A listing transitions
// Open -> Done exactly once and never reverses.
type ListingStatus uint8

const (
	StatusOpen ListingStatus = iota
	StatusDone
)

func (s ListingStatus) String() string {
	switch s {
	case StatusOpen:
		return "OPEN"
	case StatusDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Listing is one auction instance for one escrowed asset.
// All monetary values are decimal.Decimal in the quote currency.
type Listing struct {
	ID      ListingID `json:"id"`
	Seller  Account   `json:"seller"`
	AssetID AssetID   `json:"assetId"`

	// DisplayPrice is the current floor: the minimum cumulative bid the next
	// accepted bid must reach. It rises after every accepted bid.
	DisplayPrice decimal.Decimal `json:"displayPrice"`

	// NetPrice tracks the seller's ask baseline. It is initialized alongside
	// DisplayPrice and never mutated afterwards; it is reserved for future
	// fee/reserve-price logic.
	NetPrice decimal.Decimal `json:"netPrice"`

	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Status    ListingStatus `json:"status"`
}

// OpenAt reports whether the listing accepts bids at the given instant:
// status still Open and the deadline not yet reached.
func (l *Listing) OpenAt(now time.Time) bool {
	return l.Status == StatusOpen && now.Before(l.EndTime)
}

// ExpiredAt reports whether the deadline has passed, regardless of status.
// "Expired but still Open" is a valid transient state: nobody has called
// CompleteAuction yet. Settlement and withdrawal both tolerate it.
func (l *Listing) ExpiredAt(now time.Time) bool {
	return !now.Before(l.EndTime)
}
