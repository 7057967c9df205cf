package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Galien-Dev/celo-sumbit/internal/domain"
	"github.com/Galien-Dev/celo-sumbit/internal/infra/storage"
	"github.com/Galien-Dev/celo-sumbit/internal/market"
)

// ListingView is the read-side projection of one auction for APIs and UIs.
type ListingView struct {
	ID           domain.ListingID `json:"id"`
	Seller       domain.Account   `json:"seller"`
	AssetID      domain.AssetID   `json:"assetId"`
	DisplayPrice decimal.Decimal  `json:"displayPrice"`
	StartTime    time.Time        `json:"startTime"`
	EndTime      time.Time        `json:"endTime"`
	Status       string           `json:"status"`
	Open         bool             `json:"open"`
	Expired      bool             `json:"expired"`
	Leader       domain.Account   `json:"leader,omitempty"`
	LeaderBid    decimal.Decimal  `json:"leaderBid"`
	LockedTotal  decimal.Decimal  `json:"lockedTotal"`
}

// MarketService is the query facade over the engine and the history store.
// It never mutates engine state.
type MarketService struct {
	mkt   *market.Market
	store *storage.Store
	now   func() time.Time
}

// NewMarketService creates the read-side facade. store may be nil when
// running without persistence; clock may be nil for time.Now.
func NewMarketService(mkt *market.Market, store *storage.Store, clock func() time.Time) *MarketService {
	if clock == nil {
		clock = time.Now
	}
	return &MarketService{mkt: mkt, store: store, now: clock}
}

// Listings returns views of all auctions ordered by ID.
func (s *MarketService) Listings() []ListingView {
	listings := s.mkt.Listings()
	out := make([]ListingView, 0, len(listings))
	for _, l := range listings {
		out = append(out, s.view(l))
	}
	return out
}

// Listing returns the view of one auction.
func (s *MarketService) Listing(id domain.ListingID) (ListingView, bool) {
	l, ok := s.mkt.GetListing(id)
	if !ok {
		return ListingView{}, false
	}
	return s.view(l), true
}

// History returns the persisted event log for a listing, newest first.
// Without a store it returns an empty history.
func (s *MarketService) History(id domain.ListingID, limit int) ([]storage.EventRecord, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.EventsForListing(id, limit)
}

func (s *MarketService) view(l domain.Listing) ListingView {
	now := s.now()
	v := ListingView{
		ID:           l.ID,
		Seller:       l.Seller,
		AssetID:      l.AssetID,
		DisplayPrice: l.DisplayPrice,
		StartTime:    l.StartTime,
		EndTime:      l.EndTime,
		Status:       l.Status.String(),
		Open:         l.OpenAt(now),
		Expired:      l.ExpiredAt(now),
		LeaderBid:    decimal.Zero,
		LockedTotal:  s.mkt.LockedTotal(l.ID),
	}
	if leader, bid, ok := s.mkt.Leader(l.ID); ok {
		v.Leader = leader
		v.LeaderBid = bid
	}
	return v
}
