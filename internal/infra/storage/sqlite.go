// Package storage persists the listing store, bid ledger and event history
// to SQLite (pure Go driver). The market engine writes through on every
// committed transaction; the daemon restores engine state from here at boot.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/Galien-Dev/celo-sumbit/internal/domain"
)

// ListingRecord is the persisted form of a listing, including the current
// highest-bidder pointer. Monetary columns are decimal strings.
type ListingRecord struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement:false"`
	Seller       string `gorm:"index"`
	AssetID      uint64
	DisplayPrice string
	NetPrice     string
	StartTime    time.Time
	EndTime      time.Time
	Status       string `gorm:"index"`
	Leader       string
	UpdatedAt    time.Time
}

// BidRecord mirrors one live bid-ledger entry. Cleared entries are deleted;
// settlement history lives in EventRecord.
type BidRecord struct {
	ListingID  uint64 `gorm:"primaryKey;autoIncrement:false"`
	Bidder     string `gorm:"primaryKey"`
	Cumulative string
	UpdatedAt  time.Time
}

// EventRecord is the append-only history of emitted market events.
type EventRecord struct {
	ID        string `gorm:"primaryKey"`
	Kind      string `gorm:"index"`
	ListingID uint64 `gorm:"index"`
	Account   string
	Amount    string
	Payload   string
	CreatedAt time.Time
}

// Store wraps the SQLite database.
type Store struct {
	db *gorm.DB
}

// Open connects to (or creates) the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&ListingRecord{}, &BidRecord{}, &EventRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// ======================================================================================
// Listing operations
// ======================================================================================

// SaveListing upserts the persisted form of a listing and its leader pointer.
func (s *Store) SaveListing(l domain.Listing, leader domain.Account) error {
	rec := ListingRecord{
		ID:           uint64(l.ID),
		Seller:       string(l.Seller),
		AssetID:      uint64(l.AssetID),
		DisplayPrice: l.DisplayPrice.String(),
		NetPrice:     l.NetPrice.String(),
		StartTime:    l.StartTime,
		EndTime:      l.EndTime,
		Status:       l.Status.String(),
		Leader:       string(leader),
	}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
}

// GetListing retrieves one listing record. Not found is (nil, nil).
func (s *Store) GetListing(id domain.ListingID) (*ListingRecord, error) {
	var rec ListingRecord
	err := s.db.First(&rec, "id = ?", uint64(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// AllListings returns every listing ever created, oldest first.
func (s *Store) AllListings() ([]ListingRecord, error) {
	var recs []ListingRecord
	err := s.db.Order("id asc").Find(&recs).Error
	return recs, err
}

// OpenListings returns listings still marked OPEN, oldest first.
func (s *Store) OpenListings() ([]ListingRecord, error) {
	var recs []ListingRecord
	err := s.db.Where("status = ?", domain.StatusOpen.String()).Order("id asc").Find(&recs).Error
	return recs, err
}

// ======================================================================================
// Bid ledger operations
// ======================================================================================

// SaveBid upserts one live bid-ledger entry.
func (s *Store) SaveBid(id domain.ListingID, bidder domain.Account, cumulative decimal.Decimal) error {
	rec := BidRecord{
		ListingID:  uint64(id),
		Bidder:     string(bidder),
		Cumulative: cumulative.String(),
	}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
}

// DeleteBid removes a cleared entry (settlement or refund).
func (s *Store) DeleteBid(id domain.ListingID, bidder domain.Account) error {
	return s.db.Where("listing_id = ? AND bidder = ?", uint64(id), string(bidder)).
		Delete(&BidRecord{}).Error
}

// BidsForListing returns the live entries for one listing.
func (s *Store) BidsForListing(id domain.ListingID) ([]BidRecord, error) {
	var recs []BidRecord
	err := s.db.Where("listing_id = ?", uint64(id)).Find(&recs).Error
	return recs, err
}

// ======================================================================================
// Event history
// ======================================================================================

// AppendEvent stores one emitted event in the history log.
func (s *Store) AppendEvent(rec *EventRecord) error {
	return s.db.Create(rec).Error
}

// EventsForListing returns the most recent events for a listing, newest first.
func (s *Store) EventsForListing(id domain.ListingID, limit int) ([]EventRecord, error) {
	var recs []EventRecord
	q := s.db.Where("listing_id = ?", uint64(id)).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&recs).Error
	return recs, err
}

// ======================================================================================
// Engine state restore
// ======================================================================================

// EngineState is everything the market engine needs to resume after restart.
type EngineState struct {
	Listings []domain.Listing
	Bids     map[domain.ListingID]map[domain.Account]decimal.Decimal
	Leaders  map[domain.ListingID]domain.Account
}

// LoadState reads all listings and live bid entries back into domain form.
func (s *Store) LoadState() (*EngineState, error) {
	recs, err := s.AllListings()
	if err != nil {
		return nil, err
	}

	state := &EngineState{
		Bids:    make(map[domain.ListingID]map[domain.Account]decimal.Decimal),
		Leaders: make(map[domain.ListingID]domain.Account),
	}

	for _, rec := range recs {
		l, err := rec.ToDomain()
		if err != nil {
			return nil, err
		}
		state.Listings = append(state.Listings, l)
		if rec.Leader != "" {
			state.Leaders[l.ID] = domain.Account(rec.Leader)
		}
	}

	var bids []BidRecord
	if err := s.db.Find(&bids).Error; err != nil {
		return nil, err
	}
	for _, rec := range bids {
		id := domain.ListingID(rec.ListingID)
		cumulative, err := decimal.NewFromString(rec.Cumulative)
		if err != nil {
			return nil, fmt.Errorf("corrupt bid entry %d/%s: %w", rec.ListingID, rec.Bidder, err)
		}
		book, ok := state.Bids[id]
		if !ok {
			book = make(map[domain.Account]decimal.Decimal)
			state.Bids[id] = book
		}
		book[domain.Account(rec.Bidder)] = cumulative
	}

	return state, nil
}

// ToDomain converts a persisted listing back into its domain form.
func (r *ListingRecord) ToDomain() (domain.Listing, error) {
	display, err := decimal.NewFromString(r.DisplayPrice)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("corrupt display price for listing %d: %w", r.ID, err)
	}
	net, err := decimal.NewFromString(r.NetPrice)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("corrupt net price for listing %d: %w", r.ID, err)
	}

	status := domain.StatusOpen
	if r.Status == domain.StatusDone.String() {
		status = domain.StatusDone
	}

	return domain.Listing{
		ID:           domain.ListingID(r.ID),
		Seller:       domain.Account(r.Seller),
		AssetID:      domain.AssetID(r.AssetID),
		DisplayPrice: display,
		NetPrice:     net,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
		Status:       status,
	}, nil
}
