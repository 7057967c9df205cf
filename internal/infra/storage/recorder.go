package storage

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Galien-Dev/celo-sumbit/internal/event"
)

// Recorder subscribes to the event bus and appends every emitted event to the
// history log. It is an off-system observer: a recorder failure never blocks
// or fails the transaction that emitted the event.
type Recorder struct {
	store *Store
}

// NewRecorder creates a history recorder backed by the store.
func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store}
}

// Run consumes events until the context is cancelled or the bus closes.
// Call in its own goroutine.
func (r *Recorder) Run(ctx context.Context, events <-chan event.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := r.record(ev); err != nil {
				slog.Error("event history append failed",
					slog.String("event_id", ev.GetID()),
					slog.String("kind", string(ev.GetType())),
					slog.Any("error", err))
			}
		}
	}
}

func (r *Recorder) record(ev event.Event) error {
	rec := EventRecord{
		ID:        ev.GetID(),
		Kind:      string(ev.GetType()),
		CreatedAt: ev.GetTime(),
	}

	switch e := ev.(type) {
	case event.Minted:
		rec.Account = string(e.Owner)
	case event.AuctionCreated:
		rec.ListingID = uint64(e.ListingID)
		rec.Account = string(e.Seller)
		rec.Amount = e.Price.String()
	case event.BidCreated:
		rec.ListingID = uint64(e.ListingID)
		rec.Account = string(e.Bidder)
		rec.Amount = e.CumulativeBid.String()
	case event.AuctionCompleted:
		rec.ListingID = uint64(e.ListingID)
		rec.Account = string(e.Winner)
		rec.Amount = e.SettledAmount.String()
	case event.WithdrawBid:
		rec.ListingID = uint64(e.ListingID)
		rec.Account = string(e.Bidder)
		rec.Amount = e.Amount.String()
	}

	if payload, err := json.Marshal(ev); err == nil {
		rec.Payload = string(payload)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	return r.store.AppendEvent(&rec)
}
