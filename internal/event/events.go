package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Galien-Dev/celo-sumbit/internal/domain"
)

// Type identifies the kind of market event.
type Type string

const (
	TypeMinted           Type = "Minted"
	TypeAuctionCreated   Type = "AuctionCreated"
	TypeBidCreated       Type = "BidCreated"
	TypeAuctionCompleted Type = "AuctionCompleted"
	TypeWithdrawBid      Type = "WithdrawBid"
)

// Event is the common surface of all market events, consumed by off-system
// observers (indexers, UIs, the history recorder).
type Event interface {
	GetID() string
	GetType() Type
	GetTime() time.Time
}

// Meta carries the fields shared by every event.
type Meta struct {
	ID   string    `json:"id"`
	Time time.Time `json:"time"`
}

func (m Meta) GetID() string      { return m.ID }
func (m Meta) GetTime() time.Time { return m.Time }

func newMeta(now time.Time) Meta {
	return Meta{ID: uuid.NewString(), Time: now}
}

// Minted records a freshly minted asset.
type Minted struct {
	Meta
	AssetID domain.AssetID `json:"assetId"`
	URI     string         `json:"uri"`
	Owner   domain.Account `json:"owner"`
}

func (Minted) GetType() Type { return TypeMinted }

// AuctionCreated records a new listing entering escrow.
type AuctionCreated struct {
	Meta
	ListingID domain.ListingID `json:"listingId"`
	Seller    domain.Account   `json:"seller"`
	Price     decimal.Decimal  `json:"price"`
	AssetID   domain.AssetID   `json:"assetId"`
	StartTime time.Time        `json:"startTime"`
	EndTime   time.Time        `json:"endTime"`
}

func (AuctionCreated) GetType() Type { return TypeAuctionCreated }

// BidCreated records an accepted bid with the bidder's new cumulative total.
type BidCreated struct {
	Meta
	ListingID     domain.ListingID `json:"listingId"`
	Bidder        domain.Account   `json:"bidder"`
	CumulativeBid decimal.Decimal  `json:"cumulativeBid"`
}

func (BidCreated) GetType() Type { return TypeBidCreated }

// AuctionCompleted records settlement. Winner is domain.None for the no-bid
// fallback; SettledAmount is the amount captured before the winner's ledger
// entry was zeroed.
type AuctionCompleted struct {
	Meta
	ListingID     domain.ListingID `json:"listingId"`
	Seller        domain.Account   `json:"seller"`
	Winner        domain.Account   `json:"winner,omitempty"`
	SettledAmount decimal.Decimal  `json:"settledAmount"`
}

func (AuctionCompleted) GetType() Type { return TypeAuctionCompleted }

// WithdrawBid records a losing bidder reclaiming locked value.
type WithdrawBid struct {
	Meta
	ListingID domain.ListingID `json:"listingId"`
	Bidder    domain.Account   `json:"bidder"`
	Amount    decimal.Decimal  `json:"amount"`
}

func (WithdrawBid) GetType() Type { return TypeWithdrawBid }

// Constructors stamp the event with a fresh ID and the engine clock's time.

func NewMinted(now time.Time, assetID domain.AssetID, uri string, owner domain.Account) Minted {
	return Minted{Meta: newMeta(now), AssetID: assetID, URI: uri, Owner: owner}
}

func NewAuctionCreated(now time.Time, l domain.Listing) AuctionCreated {
	return AuctionCreated{
		Meta:      newMeta(now),
		ListingID: l.ID,
		Seller:    l.Seller,
		Price:     l.DisplayPrice,
		AssetID:   l.AssetID,
		StartTime: l.StartTime,
		EndTime:   l.EndTime,
	}
}

func NewBidCreated(now time.Time, id domain.ListingID, bidder domain.Account, cumulative decimal.Decimal) BidCreated {
	return BidCreated{Meta: newMeta(now), ListingID: id, Bidder: bidder, CumulativeBid: cumulative}
}

func NewAuctionCompleted(now time.Time, id domain.ListingID, seller, winner domain.Account, settled decimal.Decimal) AuctionCompleted {
	return AuctionCompleted{Meta: newMeta(now), ListingID: id, Seller: seller, Winner: winner, SettledAmount: settled}
}

func NewWithdrawBid(now time.Time, id domain.ListingID, bidder domain.Account, amount decimal.Decimal) WithdrawBid {
	return WithdrawBid{Meta: newMeta(now), ListingID: id, Bidder: bidder, Amount: amount}
}
