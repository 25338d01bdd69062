package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/punchamoorthee/cardexchange/internal/auth"
	"github.com/punchamoorthee/cardexchange/internal/catalog"
	"github.com/punchamoorthee/cardexchange/internal/domain"
	"github.com/punchamoorthee/cardexchange/internal/fixture"
	"github.com/punchamoorthee/cardexchange/internal/models"
	"github.com/punchamoorthee/cardexchange/internal/service"
	"github.com/punchamoorthee/cardexchange/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t      *testing.T
	router http.Handler
	authn  *auth.JWTAuthenticator
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	m := store.NewMemory()
	m.Load(&fixture.Fixture{
		Users: []fixture.User{{ID: 1, Username: "alice"}, {ID: 2, Username: "bob"}, {ID: 3, Username: "carol"}},
		Cards: []fixture.Card{
			{ID: 10, Name: "Homer Simpson", CharacterName: "homer", Rarity: "Common"},
			{ID: 11, Name: "Bart Simpson", CharacterName: "bart", Rarity: "Rare"},
			{ID: 12, Name: "Lisa Simpson", CharacterName: "lisa", Rarity: "Common"},
		},
		OwnedCards: []fixture.OwnedCard{
			{ID: 100, UserID: 1, CardID: 10, Quantity: 1},
			{ID: 101, UserID: 2, CardID: 11, Quantity: 1},
			{ID: 102, UserID: 3, CardID: 12, Quantity: 1},
		},
	})

	logger := quietLogger()
	cards, err := catalog.NewCached(m, 0)
	require.NoError(t, err)
	svc := service.NewExchangeService(m, m, cards, logger)
	authn := auth.NewJWTAuthenticator("test-secret")
	return &testServer{t: t, router: NewRouter(NewHandler(svc, logger), authn), authn: authn}
}

func (s *testServer) do(method, path string, userID int64, body string) *httptest.ResponseRecorder {
	s.t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if userID != 0 {
		tok, err := s.authn.Issue(userID, time.Minute)
		require.NoError(s.t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestExchangeFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/exchanges", 1, `{"card_id": 100, "min_rarity": "Common"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	offer := decode[models.OfferResponse](t, rec).Offer
	assert.Equal(t, domain.OfferOpen, offer.Status)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = s.do(http.MethodGet, "/api/exchanges?q=homer", 2, "")
	require.Equal(t, http.StatusOK, rec.Code)
	listings := decode[[]domain.OfferListing](t, rec)
	require.Len(t, listings, 1)
	assert.Equal(t, "alice", listings[0].Username)

	rec = s.do(http.MethodGet, "/api/exchanges/1/eligible-cards", 2, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.CollectionCard](t, rec), 1)

	rec = s.do(http.MethodPost, "/api/exchanges/1/request", 2, `{"offered_card_id": 101}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bobReq := decode[models.RequestResponse](t, rec).Request

	rec = s.do(http.MethodPost, "/api/exchanges/1/request", 3, `{"offered_card_id": 102}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/exchanges/1/requests", 1, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.RequestView](t, rec), 2)

	rec = s.do(http.MethodGet, "/api/exchanges/1/requests", 2, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "NOT_OFFER_OWNER", decode[models.ErrorResponse](t, rec).Code)

	rec = s.do(http.MethodPost, "/api/exchanges/1/accept/1", 1, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[models.AcceptResponse](t, rec)
	assert.Equal(t, bobReq.ID, res.Request.ID)
	assert.Equal(t, domain.OfferCompleted, res.Offer.Status)
	assert.Equal(t, int64(1), res.RejectedRequests)

	rec = s.do(http.MethodGet, "/api/exchanges/requests/mine", 3, "")
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decode[[]domain.RequestView](t, rec)
	require.Len(t, mine, 1)
	assert.Equal(t, domain.RequestRejected, mine[0].Status)

	rec = s.do(http.MethodPost, "/api/exchanges/1/cancel", 1, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "OFFER_NOT_OPEN", decode[models.ErrorResponse](t, rec).Code)

	rec = s.do(http.MethodGet, "/api/exchanges/mine", 1, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.OfferListing](t, rec), 1)
}

func TestErrorStatuses(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated,
		s.do(http.MethodPost, "/api/exchanges", 1, `{"card_id": 100, "min_rarity": "Rare"}`).Code)

	cases := []struct {
		name   string
		method string
		path   string
		user   int64
		body   string
		status int
		code   string
	}{
		{"malformed json", http.MethodPost, "/api/exchanges", 1, `{`, http.StatusBadRequest, "INVALID_INPUT"},
		{"missing field", http.MethodPost, "/api/exchanges", 1, `{"card_id": 100}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"string id", http.MethodPost, "/api/exchanges", 1, `{"card_id": "x", "min_rarity": "Rare"}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown field", http.MethodPost, "/api/exchanges", 1, `{"card_id": 100, "min_rarity": "Rare", "x": 1}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"bad rarity", http.MethodPost, "/api/exchanges", 1, `{"card_id": 100, "min_rarity": "Shiny"}`, http.StatusUnprocessableEntity, "INVALID_RARITY"},
		{"not owned", http.MethodPost, "/api/exchanges", 1, `{"card_id": 101, "min_rarity": "Rare"}`, http.StatusUnprocessableEntity, "NOT_OWNED"},
		{"already offered", http.MethodPost, "/api/exchanges", 1, `{"card_id": 100, "min_rarity": "Rare"}`, http.StatusConflict, "CARD_ALREADY_OFFERED"},
		{"self trade", http.MethodPost, "/api/exchanges/1/request", 1, `{"offered_card_id": 100}`, http.StatusUnprocessableEntity, "SELF_TRADE"},
		{"rarity too low", http.MethodPost, "/api/exchanges/1/request", 3, `{"offered_card_id": 102}`, http.StatusUnprocessableEntity, "RARITY_TOO_LOW"},
		{"offer not found", http.MethodPost, "/api/exchanges/99/request", 2, `{"offered_card_id": 101}`, http.StatusNotFound, "OFFER_NOT_FOUND"},
		{"request not found", http.MethodPost, "/api/exchanges/1/accept/99", 1, "", http.StatusNotFound, "REQUEST_NOT_FOUND"},
		{"not owner", http.MethodPost, "/api/exchanges/1/cancel", 2, "", http.StatusForbidden, "NOT_OFFER_OWNER"},
		{"huge id", http.MethodPost, "/api/exchanges/99999999999999999999/cancel", 1, "", http.StatusBadRequest, "INVALID_INPUT"},
		{"bad filter", http.MethodGet, "/api/exchanges?min_rarity=Shiny", 1, "", http.StatusUnprocessableEntity, "INVALID_RARITY"},
		{"no token", http.MethodGet, "/api/exchanges", 0, "", http.StatusUnauthorized, "UNAUTHENTICATED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(tc.method, tc.path, tc.user, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.code, decode[models.ErrorResponse](t, rec).Code)
		})
	}
}

func TestNonNumericIDsDoNotRoute(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/exchanges/abc/cancel", 1, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/health", 0, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/metrics", 0, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "exchange_http_requests_total")
}

type failingExchange struct {
	Exchange
	err error
}

func (f failingExchange) ListOpenOffers(context.Context, service.OfferFilter) ([]domain.OfferListing, error) {
	return nil, f.err
}

func TestInfrastructureErrorsAreHidden(t *testing.T) {
	authn := auth.NewJWTAuthenticator("k")
	tok, err := authn.Issue(1, time.Minute)
	require.NoError(t, err)

	for _, tc := range []struct {
		err    error
		status int
		code   string
	}{
		{errors.New("pq: connection refused on 10.0.0.3"), http.StatusInternalServerError, "INTERNAL"},
		{context.DeadlineExceeded, http.StatusServiceUnavailable, "UNAVAILABLE"},
		{domain.ErrConflict, http.StatusConflict, "CONFLICT"},
	} {
		router := NewRouter(NewHandler(failingExchange{err: tc.err}, quietLogger()), authn)
		req := httptest.NewRequest(http.MethodGet, "/api/exchanges", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, tc.status, rec.Code)
		body := decode[models.ErrorResponse](t, rec)
		assert.Equal(t, tc.code, body.Code)
		assert.NotContains(t, body.Error, "10.0.0.3")
	}
}
