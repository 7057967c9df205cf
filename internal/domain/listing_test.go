package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testListing(start time.Time, duration time.Duration) *Listing {
	ask := decimal.NewFromInt(100)
	return &Listing{
		ID:           1,
		Seller:       "seller-1",
		AssetID:      7,
		DisplayPrice: ask,
		NetPrice:     ask,
		StartTime:    start,
		EndTime:      start.Add(duration),
		Status:       StatusOpen,
	}
}

func TestListing_OpenAt(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := testListing(start, time.Hour)

	t.Run("open before deadline", func(t *testing.T) {
		if !l.OpenAt(start.Add(30 * time.Minute)) {
			t.Error("Expected listing to be open before the deadline")
		}
	})

	t.Run("closed at deadline", func(t *testing.T) {
		if l.OpenAt(start.Add(time.Hour)) {
			t.Error("Expected listing to be closed exactly at the deadline")
		}
	})

	t.Run("closed after Done", func(t *testing.T) {
		done := testListing(start, time.Hour)
		done.Status = StatusDone
		if done.OpenAt(start.Add(time.Minute)) {
			t.Error("Done listing must never be open")
		}
	})
}

func TestListing_ExpiredAt(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := testListing(start, time.Hour)

	if l.ExpiredAt(start.Add(59 * time.Minute)) {
		t.Error("Listing should not be expired before the deadline")
	}
	if !l.ExpiredAt(start.Add(time.Hour)) {
		t.Error("Listing should be expired exactly at the deadline")
	}

	// Expired but still marked Open is a valid transient state: nobody has
	// settled yet. Both predicates must hold simultaneously.
	at := start.Add(2 * time.Hour)
	if l.Status != StatusOpen {
		t.Fatal("precondition: listing still Open")
	}
	if l.OpenAt(at) {
		t.Error("Expired listing must not accept bids")
	}
	if !l.ExpiredAt(at) {
		t.Error("Expired listing must report expired while still Open")
	}
}

func TestListingStatus_String(t *testing.T) {
	if StatusOpen.String() != "OPEN" || StatusDone.String() != "DONE" {
		t.Errorf("unexpected status strings: %s, %s", StatusOpen, StatusDone)
	}
}
