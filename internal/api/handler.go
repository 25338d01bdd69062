package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/cardexchange/internal/auth"
	"github.com/punchamoorthee/cardexchange/internal/domain"
	"github.com/punchamoorthee/cardexchange/internal/models"
	"github.com/punchamoorthee/cardexchange/internal/service"
)

// Metrics
var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "exchange_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "exchange_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

// Exchange is the engine surface the handlers drive.
type Exchange interface {
	CreateOffer(ctx context.Context, userID, ownedCardID int64, minRarity string) (domain.Offer, error)
	CreateRequest(ctx context.Context, userID, offerID, ownedCardID int64) (domain.Request, error)
	AcceptRequest(ctx context.Context, userID, offerID, requestID int64) (domain.AcceptResult, error)
	CancelOffer(ctx context.Context, userID, offerID int64) (domain.CancelResult, error)

	ListOpenOffers(ctx context.Context, filter service.OfferFilter) ([]domain.OfferListing, error)
	MyOffers(ctx context.Context, userID int64) ([]domain.OfferListing, error)
	MyRequests(ctx context.Context, userID int64) ([]domain.RequestView, error)
	RequestsForOffer(ctx context.Context, userID, offerID int64) ([]domain.RequestView, error)
	EligibleCards(ctx context.Context, userID, offerID int64) ([]domain.CollectionCard, error)
}

type Handler struct {
	svc    Exchange
	logger *slog.Logger
}

func NewHandler(svc Exchange, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorTable = []errorMapping{
	{domain.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
	{domain.ErrInvalidRarity, http.StatusUnprocessableEntity, "INVALID_RARITY"},
	{domain.ErrNotOwned, http.StatusUnprocessableEntity, "NOT_OWNED"},
	{domain.ErrCardAlreadyOffered, http.StatusConflict, "CARD_ALREADY_OFFERED"},
	{domain.ErrOfferNotFound, http.StatusNotFound, "OFFER_NOT_FOUND"},
	{domain.ErrRequestNotFound, http.StatusNotFound, "REQUEST_NOT_FOUND"},
	{domain.ErrOfferNotOpen, http.StatusConflict, "OFFER_NOT_OPEN"},
	{domain.ErrRequestNotPending, http.StatusConflict, "REQUEST_NOT_PENDING"},
	{domain.ErrNotOfferOwner, http.StatusForbidden, "NOT_OFFER_OWNER"},
	{domain.ErrSelfTrade, http.StatusUnprocessableEntity, "SELF_TRADE"},
	{domain.ErrRarityTooLow, http.StatusUnprocessableEntity, "RARITY_TOO_LOW"},
	{domain.ErrCardNoLongerAvailable, http.StatusConflict, "CARD_NO_LONGER_AVAILABLE"},
	{domain.ErrConflict, http.StatusConflict, "CONFLICT"},
}

// respondWithServiceError maps engine errors onto status codes. Infrastructure
// failures are logged and never echoed to the client.
func (h *Handler) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			respondWithError(w, m.status, err.Error(), m.code)
			return
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		h.logger.Warn("request aborted", slog.String("path", r.URL.Path), slog.Any("error", err))
		respondWithError(w, http.StatusServiceUnavailable, "Service unavailable", "UNAVAILABLE")
		return
	}

	h.logger.Error("exchange operation failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", RequestID(r.Context())),
		slog.Any("error", err))
	respondWithError(w, http.StatusInternalServerError, "Internal Server Error", "INTERNAL")
}

func callerID(r *http.Request) (int64, bool) {
	return auth.UserID(r.Context())
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidInput
	}
	return id, nil
}

func respondWithError(w http.ResponseWriter, code int, message, errCode string) {
	respondWithJSON(w, code, models.ErrorResponse{Error: message, Code: errCode})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
