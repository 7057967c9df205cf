package realtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/Galien-Dev/celo-sumbit/internal/bank"
	"github.com/Galien-Dev/celo-sumbit/internal/domain"
	"github.com/Galien-Dev/celo-sumbit/internal/event"
	"github.com/Galien-Dev/celo-sumbit/internal/infra"
	"github.com/Galien-Dev/celo-sumbit/internal/market"
	"github.com/Galien-Dev/celo-sumbit/internal/service"
)

// accountHeader names the caller for mutating endpoints. There is no
// authentication layer; the header is trusted as-is.
const accountHeader = "X-Account"

// Server exposes the market over HTTP and a WebSocket event feed.
type Server struct {
	mkt     *market.Market
	svc     *service.MarketService
	ledger  *bank.Ledger
	bus     *event.Bus
	metrics *infra.Metrics
	log     *slog.Logger

	// MinDuration rejects listings shorter than the configured floor before
	// they reach the engine. Zero disables the check.
	MinDuration time.Duration
}

func NewServer(mkt *market.Market, svc *service.MarketService, ledger *bank.Ledger, bus *event.Bus, metrics *infra.Metrics, log *slog.Logger) *Server {
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{mkt: mkt, svc: svc, ledger: ledger, bus: bus, metrics: metrics, log: log}
}

// Router builds the full route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	r.HandleFunc("/api/listings", s.handleListListings).Methods(http.MethodGet)
	r.HandleFunc("/api/listings", s.handleCreateListing).Methods(http.MethodPost)
	r.HandleFunc("/api/listings/{id:[0-9]+}", s.handleGetListing).Methods(http.MethodGet)
	r.HandleFunc("/api/listings/{id:[0-9]+}/history", s.handleListingHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/listings/{id:[0-9]+}/bids", s.handlePlaceBid).Methods(http.MethodPost)
	r.HandleFunc("/api/listings/{id:[0-9]+}/complete", s.handleComplete).Methods(http.MethodPost)
	r.HandleFunc("/api/listings/{id:[0-9]+}/withdraw", s.handleWithdraw).Methods(http.MethodPost)

	r.HandleFunc("/api/assets", s.handleMint).Methods(http.MethodPost)
	r.HandleFunc("/api/accounts/deposit", s.handleDeposit).Methods(http.MethodPost)
	r.HandleFunc("/api/accounts/{account}/balance", s.handleBalance).Methods(http.MethodGet)

	r.HandleFunc("/ws", s.handleFeed).Methods(http.MethodGet)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleListListings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Listings())
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	id, ok := listingID(w, r)
	if !ok {
		return
	}
	v, found := s.svc.Listing(id)
	if !found {
		writeErr(w, http.StatusNotFound, "listing not found")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleListingHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := listingID(w, r)
	if !ok {
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeErr(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	recs, err := s.svc.History(id, limit)
	if err != nil {
		s.log.Error("history query failed", "listing_id", id, "error", err)
		writeErr(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

type createListingRequest struct {
	AskPrice        decimal.Decimal `json:"askPrice"`
	AssetID         domain.AssetID  `json:"assetId"`
	DurationSeconds int64           `json:"durationSeconds"`
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	seller, ok := caller(w, r)
	if !ok {
		return
	}
	var req createListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	duration := time.Duration(req.DurationSeconds) * time.Second
	if s.MinDuration > 0 && duration < s.MinDuration {
		writeErr(w, http.StatusBadRequest, "duration below configured minimum")
		return
	}
	id, err := s.mkt.CreateListing(seller, req.AskPrice, req.AssetID, duration)
	if err != nil {
		s.writeMarketErr(w, err)
		return
	}
	v, _ := s.svc.Listing(id)
	writeJSON(w, http.StatusCreated, v)
}

type placeBidRequest struct {
	Value decimal.Decimal `json:"value"`
}

func (s *Server) handlePlaceBid(w http.ResponseWriter, r *http.Request) {
	bidder, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := listingID(w, r)
	if !ok {
		return
	}
	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.mkt.PlaceBid(bidder, id, req.Value); err != nil {
		s.writeMarketErr(w, err)
		return
	}
	v, _ := s.svc.Listing(id)
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := listingID(w, r)
	if !ok {
		return
	}
	if err := s.mkt.CompleteAuction(acct, id); err != nil {
		s.writeMarketErr(w, err)
		return
	}
	v, _ := s.svc.Listing(id)
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := listingID(w, r)
	if !ok {
		return
	}
	if err := s.mkt.WithdrawBid(acct, id); err != nil {
		s.writeMarketErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refunded"})
}

type mintRequest struct {
	URI string `json:"uri"`
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.URI == "" {
		writeErr(w, http.StatusBadRequest, "uri required")
		return
	}
	assetID, err := s.mkt.Mint(acct, req.URI)
	if err != nil {
		s.writeMarketErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"assetId": assetID, "owner": acct})
}

type depositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// handleDeposit credits free balance to the caller. It stands in for the
// on-ramp that a production deployment would have.
func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	acct, ok := caller(w, r)
	if !ok {
		return
	}
	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if !req.Amount.IsPositive() {
		writeErr(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	s.ledger.Deposit(acct, req.Amount)
	writeJSON(w, http.StatusOK, map[string]any{
		"account": acct,
		"balance": s.ledger.BalanceOf(acct),
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	acct := domain.Account(mux.Vars(r)["account"])
	writeJSON(w, http.StatusOK, map[string]any{
		"account": acct,
		"balance": s.ledger.BalanceOf(acct),
	})
}

// writeMarketErr maps engine errors onto HTTP statuses by error class.
func (s *Server) writeMarketErr(w http.ResponseWriter, err error) {
	status := statusForErr(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("market operation failed", "error", err)
	}
	writeErr(w, status, err.Error())
}

func statusForErr(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidListing), errors.Is(err, domain.ErrInvalidAsset):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidDuration),
		errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrZeroValue):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotOwner),
		errors.Is(err, domain.ErrSelfBid),
		errors.Is(err, domain.ErrNotAuthorized),
		errors.Is(err, domain.ErrWinnerCannotWithdraw):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrAuctionClosed),
		errors.Is(err, domain.ErrAuctionStillOpen),
		errors.Is(err, domain.ErrAuctionNotExpired),
		errors.Is(err, domain.ErrBidTooLow),
		errors.Is(err, domain.ErrNothingToWithdraw),
		errors.Is(err, domain.ErrZeroPayout),
		errors.Is(err, domain.ErrReentrantCall):
		return http.StatusConflict
	case domain.IsTransferError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func caller(w http.ResponseWriter, r *http.Request) (domain.Account, bool) {
	acct := domain.Account(r.Header.Get(accountHeader))
	if acct == domain.None {
		writeErr(w, http.StatusUnauthorized, accountHeader+" header required")
		return domain.None, false
	}
	return acct, true
}

func listingID(w http.ResponseWriter, r *http.Request) (domain.ListingID, bool) {
	raw := mux.Vars(r)["id"]
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid listing id")
		return 0, false
	}
	return domain.ListingID(n), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
