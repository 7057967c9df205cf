// Package market implements the escrow-based auction engine: listing
// creation, monotonic bid acceptance with a rising floor, time-based closure,
// winner settlement and loser refunds.
//
// Operations execute as serialized, all-or-nothing transactions. A reentrancy
// guard is held for the whole transaction, including outbound transfers, so a
// hostile recipient running code mid-transfer cannot re-invoke any guarded
// operation; such a call fails with domain.ErrReentrantCall. Ledger entries
// are zeroed before value leaves escrow (checks-effects-interactions) and
// restored if the transfer fails, so no partial state is ever observable.
package market

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Galien-Dev/celo-sumbit/internal/domain"
	"github.com/Galien-Dev/celo-sumbit/internal/event"
	"github.com/Galien-Dev/celo-sumbit/internal/infra"
	"github.com/Galien-Dev/celo-sumbit/internal/infra/storage"
)

// DefaultIncrementPct is the floor increase applied after each accepted bid.
const DefaultIncrementPct = 10

// Config wires the engine to its collaborators. Assets, Bank and Escrow are
// required; everything else is optional.
type Config struct {
	Escrow  domain.Account       // identity holding escrowed assets
	Assets  domain.AssetRegistry // asset custody collaborator
	Bank    domain.ValueMover    // value transfer collaborator
	Sink    event.Sink           // committed-event observer, may be nil
	Store   *storage.Store       // write-through persistence, may be nil
	Metrics *infra.Metrics       // may be nil

	// IncrementPct is the percentage the floor rises by after each accepted
	// bid. Zero means DefaultIncrementPct.
	IncrementPct int64

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Market is the auction state machine. It is the sole mutator of the listing
// store and the bid ledger.
type Market struct {
	mu    sync.Mutex
	guard reentryGuard

	escrow  domain.Account
	assets  domain.AssetRegistry
	bank    domain.ValueMover
	sink    event.Sink
	store   *storage.Store
	metrics *infra.Metrics

	incrementPct decimal.Decimal
	now          func() time.Time

	listings map[domain.ListingID]*domain.Listing
	nextID   domain.ListingID
	bids     *domain.BidBook
}

// New creates a market engine.
func New(cfg Config) *Market {
	pct := cfg.IncrementPct
	if pct <= 0 {
		pct = DefaultIncrementPct
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Market{
		escrow:       cfg.Escrow,
		assets:       cfg.Assets,
		bank:         cfg.Bank,
		sink:         cfg.Sink,
		store:        cfg.Store,
		metrics:      cfg.Metrics,
		incrementPct: decimal.NewFromInt(pct),
		now:          clock,
		listings:     make(map[domain.ListingID]*domain.Listing),
		nextID:       1,
		bids:         domain.NewBidBook(),
	}
}

// begin serializes the transaction and takes the reentrancy guard.
// Any call that arrives while a transfer is in flight, reentrant or not,
// fails with ErrReentrantCall instead of deadlocking.
func (m *Market) begin() error {
	m.mu.Lock()
	if !m.guard.enter() {
		m.mu.Unlock()
		return domain.ErrReentrantCall
	}
	return nil
}

// end releases the guard and the state lock. The state lock must be held.
func (m *Market) end() {
	m.guard.exit()
	m.mu.Unlock()
}

// Mint creates a new asset via the custody collaborator. Part of the public
// surface; the asset itself is owned by the registry, not the engine.
func (m *Market) Mint(caller domain.Account, uri string) (domain.AssetID, error) {
	if err := m.begin(); err != nil {
		return 0, err
	}
	defer m.end()

	id, err := m.assets.Mint(uri, caller)
	if err != nil {
		return 0, err
	}
	m.publish(event.NewMinted(m.now(), id, uri, caller))
	return id, nil
}

// CreateListing escrows the caller's asset and opens a new auction.
func (m *Market) CreateListing(seller domain.Account, askPrice decimal.Decimal, assetID domain.AssetID, duration time.Duration) (domain.ListingID, error) {
	if err := m.begin(); err != nil {
		return 0, err
	}
	defer m.end()

	if duration <= 0 {
		return 0, domain.ErrInvalidDuration
	}
	if !askPrice.IsPositive() {
		return 0, domain.ErrInvalidPrice
	}
	owner, err := m.assets.OwnerOf(assetID)
	if err != nil {
		return 0, domain.ErrInvalidAsset
	}
	if owner != seller {
		return 0, domain.ErrNotOwner
	}

	// Asset moves seller -> escrow before the listing exists; on failure no
	// state has been touched.
	m.mu.Unlock()
	err = m.assets.TransferAsset(seller, m.escrow, assetID)
	m.mu.Lock()
	if err != nil {
		return 0, domain.NewTransferError("transfer_asset", m.escrow, err)
	}

	now := m.now()
	id := m.nextID
	m.nextID++

	l := &domain.Listing{
		ID:           id,
		Seller:       seller,
		AssetID:      assetID,
		DisplayPrice: askPrice,
		NetPrice:     askPrice,
		StartTime:    now,
		EndTime:      now.Add(duration),
		Status:       domain.StatusOpen,
	}
	m.listings[id] = l

	m.persistListing(l)
	m.publish(event.NewAuctionCreated(now, *l))
	if m.metrics != nil {
		m.metrics.RecordListingCreated()
	}
	slog.Info("listing created",
		slog.Uint64("listing", uint64(id)),
		slog.String("seller", string(seller)),
		slog.String("ask", askPrice.String()))
	return id, nil
}

// PlaceBid adds value to the caller's cumulative entry. The new cumulative
// total must reach the current floor; acceptance makes the caller the
// standing leader and raises the floor by incrementPct of its prior value.
func (m *Market) PlaceBid(bidder domain.Account, id domain.ListingID, value decimal.Decimal) (err error) {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()
	if m.metrics != nil {
		defer func() {
			if err != nil {
				m.metrics.RecordBidRejected()
			} else {
				m.metrics.RecordBidAccepted()
			}
		}()
	}

	l, ok := m.listings[id]
	if !ok {
		return domain.ErrInvalidListing
	}
	if !l.OpenAt(m.now()) {
		return domain.ErrAuctionClosed
	}
	if bidder == l.Seller {
		return domain.ErrSelfBid
	}
	if !value.IsPositive() {
		return domain.ErrZeroValue
	}
	cumulative := m.bids.Entry(id, bidder).Add(value)
	if cumulative.LessThan(l.DisplayPrice) {
		return domain.ErrBidTooLow
	}

	// Escrow intake precedes the ledger write: the entry is only recorded
	// once the value is actually in custody.
	m.mu.Unlock()
	err = m.bank.Collect(bidder, value)
	m.mu.Lock()
	if err != nil {
		return domain.NewTransferError("collect", m.escrow, err)
	}

	total := m.bids.Raise(id, bidder, value)
	m.bids.SetLeader(id, bidder)
	l.DisplayPrice = l.DisplayPrice.Add(
		l.DisplayPrice.Mul(m.incrementPct).Div(decimal.NewFromInt(100)))
	m.bids.VerifyInvariant(id)

	m.persistListing(l)
	m.persistBid(id, bidder, total)
	m.publish(event.NewBidCreated(m.now(), id, bidder, total))
	slog.Info("bid accepted",
		slog.Uint64("listing", uint64(id)),
		slog.String("bidder", string(bidder)),
		slog.String("cumulative", total.String()),
		slog.String("floor", l.DisplayPrice.String()))
	return nil
}

// CompleteAuction settles an expired auction. With a winner, the asset goes
// to the winner and the winner's full cumulative entry goes to the seller;
// with no bid the asset returns to the seller and no value moves. The settle
// amount is captured before the entry is zeroed, and the zeroing happens
// before value leaves escrow.
func (m *Market) CompleteAuction(caller domain.Account, id domain.ListingID) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	l, ok := m.listings[id]
	if !ok {
		return domain.ErrInvalidListing
	}
	if l.Status == domain.StatusDone {
		return domain.ErrAuctionClosed
	}
	if l.OpenAt(m.now()) {
		return domain.ErrAuctionStillOpen
	}
	winner, hasWinner := m.bids.Leader(id)
	if caller != l.Seller && (!hasWinner || caller != winner) {
		return domain.ErrNotAuthorized
	}

	if !hasWinner {
		return m.completeWithoutBid(l)
	}

	amount := m.bids.Entry(id, winner)
	if amount.IsZero() {
		// Data-integrity fault: a leader always has a live entry.
		return domain.ErrZeroPayout
	}

	// Effects first: zero the entry and close the listing, then interact.
	m.bids.Clear(id, winner)
	l.Status = domain.StatusDone

	m.mu.Unlock()
	err := m.assets.TransferAsset(m.escrow, winner, l.AssetID)
	m.mu.Lock()
	if err != nil {
		m.rollbackSettlement(l, winner, amount)
		return domain.NewTransferError("transfer_asset", winner, err)
	}

	m.mu.Unlock()
	err = m.bank.Send(l.Seller, amount)
	if err != nil {
		// Compensate the asset move before rolling back the ledger. If the
		// asset cannot be returned to escrow the custody state is corrupt
		// and the engine halts.
		if cerr := m.assets.TransferAsset(winner, m.escrow, l.AssetID); cerr != nil {
			panic(fmt.Sprintf("SETTLEMENT_COMPENSATION_FAILED: listing %d: %v", id, cerr))
		}
		m.mu.Lock()
		m.rollbackSettlement(l, winner, amount)
		return domain.NewTransferError("send", l.Seller, err)
	}
	m.mu.Lock()

	m.persistListing(l)
	m.persistBidCleared(id, winner)
	m.publish(event.NewAuctionCompleted(m.now(), id, l.Seller, winner, amount))
	if m.metrics != nil {
		m.metrics.RecordSettlement()
	}
	slog.Info("auction settled",
		slog.Uint64("listing", uint64(id)),
		slog.String("winner", string(winner)),
		slog.String("amount", amount.String()))
	return nil
}

// completeWithoutBid returns the asset to the seller. State lock held.
func (m *Market) completeWithoutBid(l *domain.Listing) error {
	l.Status = domain.StatusDone

	m.mu.Unlock()
	err := m.assets.TransferAsset(m.escrow, l.Seller, l.AssetID)
	m.mu.Lock()
	if err != nil {
		l.Status = domain.StatusOpen
		return domain.NewTransferError("transfer_asset", l.Seller, err)
	}

	m.persistListing(l)
	m.publish(event.NewAuctionCompleted(m.now(), l.ID, l.Seller, domain.None, decimal.Zero))
	if m.metrics != nil {
		m.metrics.RecordSettlement()
	}
	slog.Info("auction closed without bids", slog.Uint64("listing", uint64(l.ID)))
	return nil
}

// rollbackSettlement restores the pre-settlement state after a failed
// custody interaction. State lock held.
func (m *Market) rollbackSettlement(l *domain.Listing, winner domain.Account, amount decimal.Decimal) {
	m.bids.Restore(l.ID, winner, amount)
	l.Status = domain.StatusOpen
	if m.metrics != nil {
		m.metrics.RecordTransferFailure()
	}
}

// WithdrawBid refunds the caller's locked value after expiry. The standing
// leader cannot withdraw; their funds are only released through settlement.
// A second call finds a zeroed entry and fails instead of double-paying.
func (m *Market) WithdrawBid(caller domain.Account, id domain.ListingID) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	l, ok := m.listings[id]
	if !ok {
		return domain.ErrInvalidListing
	}
	if !l.ExpiredAt(m.now()) {
		return domain.ErrAuctionNotExpired
	}
	if leader, has := m.bids.Leader(id); has && caller == leader {
		return domain.ErrWinnerCannotWithdraw
	}
	amount := m.bids.Entry(id, caller)
	if amount.IsZero() {
		return domain.ErrNothingToWithdraw
	}

	// Zero before sending so a reentrant observer sees no balance.
	m.bids.Clear(id, caller)

	m.mu.Unlock()
	err := m.bank.Send(caller, amount)
	m.mu.Lock()
	if err != nil {
		m.bids.Restore(id, caller, amount)
		if m.metrics != nil {
			m.metrics.RecordTransferFailure()
		}
		return domain.NewTransferError("send", caller, err)
	}

	m.persistBidCleared(id, caller)
	m.publish(event.NewWithdrawBid(m.now(), id, caller, amount))
	if m.metrics != nil {
		m.metrics.RecordWithdrawal()
	}
	slog.Info("bid withdrawn",
		slog.Uint64("listing", uint64(id)),
		slog.String("bidder", string(caller)),
		slog.String("amount", amount.String()))
	return nil
}

// IsOpen reports whether the listing accepts bids: status Open and deadline
// not reached. Fails with ErrInvalidListing for an unknown identifier.
func (m *Market) IsOpen(id domain.ListingID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listings[id]
	if !ok {
		return false, domain.ErrInvalidListing
	}
	return l.OpenAt(m.now()), nil
}

// IsExpired reports whether the deadline has passed, regardless of status.
// "Expired but still Open" is an expected transient state.
func (m *Market) IsExpired(id domain.ListingID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listings[id]
	if !ok {
		return false, domain.ErrInvalidListing
	}
	return l.ExpiredAt(m.now()), nil
}

// GetListing returns a copy of the listing record.
func (m *Market) GetListing(id domain.ListingID) (domain.Listing, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.listings[id]
	if !ok {
		return domain.Listing{}, false
	}
	return *l, true
}

// Listings returns copies of all listings ordered by ID.
func (m *Market) Listings() []domain.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Listing, 0, len(m.listings))
	for _, l := range m.listings {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Leader returns the standing highest bidder and their cumulative bid.
func (m *Market) Leader(id domain.ListingID) (domain.Account, decimal.Decimal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	leader, ok := m.bids.Leader(id)
	if !ok {
		return domain.None, decimal.Zero, false
	}
	return leader, m.bids.Entry(id, leader), true
}

// BidOf returns the caller's cumulative locked value for the listing.
func (m *Market) BidOf(id domain.ListingID, bidder domain.Account) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bids.Entry(id, bidder)
}

// LockedTotal returns the sum of live entries for the listing. Used by the
// escrow-conservation checks.
func (m *Market) LockedTotal(id domain.ListingID) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bids.Total(id)
}

// Restore loads persisted engine state after a restart. Must be called
// before the engine starts serving operations.
func (m *Market) Restore(state *storage.EngineState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range state.Listings {
		l := state.Listings[i]
		m.listings[l.ID] = &l
		if l.ID >= m.nextID {
			m.nextID = l.ID + 1
		}
	}
	for id, book := range state.Bids {
		for bidder, cumulative := range book {
			m.bids.Raise(id, bidder, cumulative)
		}
	}
	for id, leader := range state.Leaders {
		m.bids.SetLeader(id, leader)
	}
	slog.Info("engine state restored",
		slog.Int("listings", len(state.Listings)),
		slog.Uint64("next_id", uint64(m.nextID)))
}

func (m *Market) publish(ev event.Event) {
	if m.sink != nil {
		m.sink.Publish(ev)
	}
}

func (m *Market) persistListing(l *domain.Listing) {
	if m.store == nil {
		return
	}
	leader, _ := m.bids.Leader(l.ID)
	if err := m.store.SaveListing(*l, leader); err != nil {
		panic(fmt.Sprintf("PERSISTENCE_FAILURE: listing %d: %v", l.ID, err))
	}
}

func (m *Market) persistBid(id domain.ListingID, bidder domain.Account, cumulative decimal.Decimal) {
	if m.store == nil {
		return
	}
	if err := m.store.SaveBid(id, bidder, cumulative); err != nil {
		panic(fmt.Sprintf("PERSISTENCE_FAILURE: bid %d/%s: %v", id, bidder, err))
	}
}

func (m *Market) persistBidCleared(id domain.ListingID, bidder domain.Account) {
	if m.store == nil {
		return
	}
	if err := m.store.DeleteBid(id, bidder); err != nil {
		panic(fmt.Sprintf("PERSISTENCE_FAILURE: clear bid %d/%s: %v", id, bidder, err))
	}
}
