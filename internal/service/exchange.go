package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/cardexchange/internal/domain"
	"github.com/punchamoorthee/cardexchange/internal/lock"
)

var operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "exchange_operations_total",
	Help: "Exchange engine operations, labeled by outcome class",
}, []string{"operation", "outcome"})

type ExchangeService struct {
	store   Store
	views   Views
	catalog Catalog
	locker  lock.Manager
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*ExchangeService)

// WithLocker serializes accept and cancel per offer through m.
func WithLocker(m lock.Manager) Option {
	return func(s *ExchangeService) { s.locker = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *ExchangeService) { s.now = now }
}

func NewExchangeService(store Store, views Views, catalog Catalog, logger *slog.Logger, opts ...Option) *ExchangeService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ExchangeService{
		store:   store,
		views:   views,
		catalog: catalog,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOffer puts one of the caller's ledger rows up for trade.
func (s *ExchangeService) CreateOffer(ctx context.Context, userID, ownedCardID int64, minRarity string) (domain.Offer, error) {
	floor, err := domain.ParseRarity(minRarity)
	if err != nil {
		return domain.Offer{}, s.record("create_offer", err)
	}
	if ownedCardID <= 0 {
		return domain.Offer{}, s.record("create_offer", domain.ErrInvalidInput)
	}

	var offer domain.Offer
	err = s.store.Atomically(ctx, func(tx Tx) error {
		rows, err := tx.GetOwnedCards(ctx, LockUpdate, ownedCardID)
		if err != nil {
			return err
		}
		if !holds(rows, ownedCardID, userID) {
			return domain.ErrNotOwned
		}

		offered, err := tx.OpenOfferExists(ctx, ownedCardID)
		if err != nil {
			return err
		}
		if offered {
			return domain.ErrCardAlreadyOffered
		}

		now := s.now()
		offer = domain.Offer{
			UserID:      userID,
			OwnedCardID: ownedCardID,
			MinRarity:   floor,
			Status:      domain.OfferOpen,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return tx.InsertOffer(ctx, &offer)
	})
	if err != nil {
		return domain.Offer{}, s.record("create_offer", err)
	}

	s.logger.Info("offer created",
		slog.Int64("offer_id", offer.ID),
		slog.Int64("user_id", userID),
		slog.Int64("owned_card_id", ownedCardID),
		slog.String("min_rarity", string(floor)))
	return offer, s.record("create_offer", nil)
}

// CreateRequest proposes one of the caller's ledger rows against an open offer.
func (s *ExchangeService) CreateRequest(ctx context.Context, userID, offerID, ownedCardID int64) (domain.Request, error) {
	if offerID <= 0 || ownedCardID <= 0 {
		return domain.Request{}, s.record("create_request", domain.ErrInvalidInput)
	}

	var req domain.Request
	err := s.store.Atomically(ctx, func(tx Tx) error {
		offer, err := tx.GetOffer(ctx, offerID, LockShare)
		if err != nil {
			return err
		}
		if offer.Status != domain.OfferOpen {
			return domain.ErrOfferNotOpen
		}
		if offer.UserID == userID {
			return domain.ErrSelfTrade
		}

		rows, err := tx.GetOwnedCards(ctx, LockShare, ownedCardID)
		if err != nil {
			return err
		}
		if !holds(rows, ownedCardID, userID) {
			return domain.ErrNotOwned
		}

		card, err := s.catalog.GetCardVia(ctx, tx, rows[ownedCardID].CardID)
		if err != nil {
			return fmt.Errorf("counter card lookup: %w", err)
		}
		if !card.Rarity.AtLeast(offer.MinRarity) {
			return domain.ErrRarityTooLow
		}

		now := s.now()
		req = domain.Request{
			OfferID:     offerID,
			UserID:      userID,
			OwnedCardID: ownedCardID,
			Status:      domain.RequestPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return tx.InsertRequest(ctx, &req)
	})
	if err != nil {
		return domain.Request{}, s.record("create_request", err)
	}

	s.logger.Info("request created",
		slog.Int64("request_id", req.ID),
		slog.Int64("offer_id", offerID),
		slog.Int64("user_id", userID),
		slog.Int64("owned_card_id", ownedCardID))
	return req, s.record("create_request", nil)
}

// AcceptRequest swaps the two ledger rows, completes the offer and rejects
// every other pending request, all in one atomic unit.
func (s *ExchangeService) AcceptRequest(ctx context.Context, userID, offerID, requestID int64) (domain.AcceptResult, error) {
	if offerID <= 0 || requestID <= 0 {
		return domain.AcceptResult{}, s.record("accept_request", domain.ErrInvalidInput)
	}

	var res domain.AcceptResult
	err := s.withOfferLock(ctx, offerID, func() error {
		return s.store.Atomically(ctx, func(tx Tx) error {
			// 1. Offer state and ownership
			offer, err := tx.GetOffer(ctx, offerID, LockUpdate)
			if err != nil {
				return err
			}
			if offer.UserID != userID {
				return domain.ErrNotOfferOwner
			}
			if offer.Status != domain.OfferOpen {
				return domain.ErrOfferNotOpen
			}

			// 2. Request state
			req, err := tx.GetRequest(ctx, requestID, LockUpdate)
			if errors.Is(err, domain.ErrRequestNotFound) || (err == nil && req.OfferID != offerID) {
				return domain.ErrRequestNotFound
			}
			if err != nil {
				return err
			}
			if req.Status != domain.RequestPending {
				return domain.ErrRequestNotPending
			}

			// 3. Deterministic locking of both ledger rows, then re-check holders
			rows, err := tx.GetOwnedCards(ctx, LockUpdate, offer.OwnedCardID, req.OwnedCardID)
			if err != nil {
				return err
			}
			if !holds(rows, offer.OwnedCardID, offer.UserID) || !holds(rows, req.OwnedCardID, req.UserID) {
				return domain.ErrCardNoLongerAvailable
			}

			// 4. Swap
			now := s.now()
			if err := tx.TransferOwnership(ctx, offer.OwnedCardID, req.UserID, now); err != nil {
				return err
			}
			if err := tx.TransferOwnership(ctx, req.OwnedCardID, offer.UserID, now); err != nil {
				return err
			}

			// 5. Lifecycle
			if err := tx.UpdateOfferStatus(ctx, offer.ID, domain.OfferCompleted, now); err != nil {
				return err
			}
			if err := tx.UpdateRequestStatus(ctx, req.ID, domain.RequestAccepted, now); err != nil {
				return err
			}
			rejected, err := tx.RejectPendingRequests(ctx, offer.ID, now)
			if err != nil {
				return err
			}

			offer.Status, offer.UpdatedAt = domain.OfferCompleted, now
			req.Status, req.UpdatedAt = domain.RequestAccepted, now
			res = domain.AcceptResult{Offer: offer, Request: req, RejectedRequests: rejected}
			return nil
		})
	})
	if err != nil {
		level := slog.LevelError
		if domain.IsRejection(err) {
			level = slog.LevelInfo
		}
		s.logger.LogAttrs(ctx, level, "accept failed",
			slog.Int64("offer_id", offerID),
			slog.Int64("request_id", requestID),
			slog.Int64("user_id", userID),
			slog.Any("error", err))
		return domain.AcceptResult{}, s.record("accept_request", err)
	}

	s.logger.Info("request accepted",
		slog.Int64("offer_id", offerID),
		slog.Int64("request_id", requestID),
		slog.Int64("offerer_id", res.Offer.UserID),
		slog.Int64("requester_id", res.Request.UserID),
		slog.Int64("rejected", res.RejectedRequests))
	return res, s.record("accept_request", nil)
}

// CancelOffer withdraws an open offer and rejects its pending requests.
func (s *ExchangeService) CancelOffer(ctx context.Context, userID, offerID int64) (domain.CancelResult, error) {
	if offerID <= 0 {
		return domain.CancelResult{}, s.record("cancel_offer", domain.ErrInvalidInput)
	}

	var res domain.CancelResult
	err := s.withOfferLock(ctx, offerID, func() error {
		return s.store.Atomically(ctx, func(tx Tx) error {
			offer, err := tx.GetOffer(ctx, offerID, LockUpdate)
			if err != nil {
				return err
			}
			if offer.UserID != userID {
				return domain.ErrNotOfferOwner
			}
			if offer.Status != domain.OfferOpen {
				return domain.ErrOfferNotOpen
			}

			now := s.now()
			if err := tx.UpdateOfferStatus(ctx, offer.ID, domain.OfferCancelled, now); err != nil {
				return err
			}
			rejected, err := tx.RejectPendingRequests(ctx, offer.ID, now)
			if err != nil {
				return err
			}

			offer.Status, offer.UpdatedAt = domain.OfferCancelled, now
			res = domain.CancelResult{Offer: offer, RejectedRequests: rejected}
			return nil
		})
	})
	if err != nil {
		return domain.CancelResult{}, s.record("cancel_offer", err)
	}

	s.logger.Info("offer cancelled",
		slog.Int64("offer_id", offerID),
		slog.Int64("user_id", userID),
		slog.Int64("rejected", res.RejectedRequests))
	return res, s.record("cancel_offer", nil)
}

func (s *ExchangeService) withOfferLock(ctx context.Context, offerID int64, fn func() error) error {
	if s.locker == nil {
		return fn()
	}

	key := "lock:offer:" + strconv.FormatInt(offerID, 10)
	token, ok, err := s.locker.Acquire(ctx, key)
	if err != nil {
		return fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return domain.ErrConflict
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger.Warn("offer lock release failed", slog.String("key", key), slog.Any("error", err))
		}
	}()
	return fn()
}

func (s *ExchangeService) record(op string, err error) error {
	outcome := "ok"
	if err != nil {
		outcome = domain.ClassOf(err).String()
	}
	operationsTotal.WithLabelValues(op, outcome).Inc()
	return err
}

// holds reports whether userID currently holds at least one unit of the row.
func holds(rows map[int64]domain.OwnedCard, ownedCardID, userID int64) bool {
	oc, ok := rows[ownedCardID]
	return ok && oc.UserID == userID && oc.Quantity > 0
}
