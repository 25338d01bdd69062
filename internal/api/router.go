package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/punchamoorthee/cardexchange/internal/auth"
)

const requestIDHeader = "X-Request-ID"

// NewRouter wires the exchange routes. Everything under /api/exchanges
// requires a bearer token.
func NewRouter(h *Handler, authn auth.Authenticator) *mux.Router {
	r := mux.NewRouter()
	r.Use(withRequestID, h.accessLog, h.recoverPanics, instrument)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", h.HealthCheckHandler).Methods(http.MethodGet)

	ex := r.PathPrefix("/api/exchanges").Subrouter()
	ex.Use(auth.Middleware(authn))
	ex.HandleFunc("", h.CreateOfferHandler).Methods(http.MethodPost)
	ex.HandleFunc("", h.ListOpenOffersHandler).Methods(http.MethodGet)
	ex.HandleFunc("/mine", h.MyOffersHandler).Methods(http.MethodGet)
	ex.HandleFunc("/requests/mine", h.MyRequestsHandler).Methods(http.MethodGet)
	ex.HandleFunc("/{id:[0-9]+}/request", h.CreateRequestHandler).Methods(http.MethodPost)
	ex.HandleFunc("/{offerId:[0-9]+}/accept/{requestId:[0-9]+}", h.AcceptRequestHandler).Methods(http.MethodPost)
	ex.HandleFunc("/{id:[0-9]+}/cancel", h.CancelOfferHandler).Methods(http.MethodPost)
	ex.HandleFunc("/{offerId:[0-9]+}/requests", h.RequestsForOfferHandler).Methods(http.MethodGet)
	ex.HandleFunc("/{offerId:[0-9]+}/eligible-cards", h.EligibleCardsHandler).Methods(http.MethodGet)

	return r
}

type requestIDKey struct{}

// RequestID returns the id assigned to the request, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func recorder(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func endpoint(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ep := endpoint(r)
		timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(r.Method, ep))
		defer timer.ObserveDuration()

		rec := recorder(w)
		next.ServeHTTP(rec, r)
		httpRequestsTotal.WithLabelValues(r.Method, ep, strconv.Itoa(rec.status)).Inc()
	})
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := recorder(w)
		next.ServeHTTP(rec, r)

		level := slog.LevelInfo
		switch {
		case rec.status >= 500:
			level = slog.LevelError
		case rec.status >= 400:
			level = slog.LevelWarn
		}
		h.logger.LogAttrs(r.Context(), level, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("took", time.Since(start)),
			slog.String("request_id", RequestID(r.Context())))
	})
}

func (h *Handler) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				h.logger.Error("panic serving request",
					slog.Any("panic", p),
					slog.String("path", r.URL.Path),
					slog.String("request_id", RequestID(r.Context())))
				respondWithError(w, http.StatusInternalServerError, "Internal Server Error", "INTERNAL")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
