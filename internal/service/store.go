package service

import (
	"context"
	"time"

	"github.com/punchamoorthee/cardexchange/internal/catalog"
	"github.com/punchamoorthee/cardexchange/internal/domain"
)

// LockMode selects the row lock taken by a Tx read.
type LockMode int

const (
	LockNone LockMode = iota
	LockShare
	LockUpdate
)

// Tx is the view of offers, requests and the ownership ledger inside one
// atomic unit. Locks taken through it are held until the unit ends.
type Tx interface {
	// GetCard reads catalog metadata on the unit's own connection;
	// domain.ErrCardNotFound for unknown ids.
	GetCard(ctx context.Context, cardID int64) (domain.Card, error)
	// GetOffer returns domain.ErrOfferNotFound for unknown ids.
	GetOffer(ctx context.Context, id int64, mode LockMode) (domain.Offer, error)
	// GetRequest returns domain.ErrRequestNotFound for unknown ids.
	GetRequest(ctx context.Context, id int64, mode LockMode) (domain.Request, error)
	// GetOwnedCards locks rows in ascending id order. Unknown ids are absent
	// from the result.
	GetOwnedCards(ctx context.Context, mode LockMode, ids ...int64) (map[int64]domain.OwnedCard, error)
	OpenOfferExists(ctx context.Context, ownedCardID int64) (bool, error)

	// InsertOffer and InsertRequest assign ID.
	InsertOffer(ctx context.Context, o *domain.Offer) error
	InsertRequest(ctx context.Context, r *domain.Request) error

	TransferOwnership(ctx context.Context, ownedCardID, newOwnerID int64, at time.Time) error
	UpdateOfferStatus(ctx context.Context, id int64, status domain.OfferStatus, at time.Time) error
	UpdateRequestStatus(ctx context.Context, id int64, status domain.RequestStatus, at time.Time) error
	// RejectPendingRequests moves every pending request of the offer to
	// rejected and reports how many changed.
	RejectPendingRequests(ctx context.Context, offerID int64, at time.Time) (int64, error)
}

// Store runs fn as one atomic unit: its writes become visible together when
// fn returns nil and are discarded otherwise.
type Store interface {
	Atomically(ctx context.Context, fn func(tx Tx) error) error
}

// Views is the read side used by the query surface. It takes no locks.
type Views interface {
	GetOffer(ctx context.Context, id int64) (domain.Offer, error)
	// ListOpenOffers returns open offers in creation order.
	ListOpenOffers(ctx context.Context) ([]domain.OfferListing, error)
	// The remaining lists are newest first.
	ListOffersByUser(ctx context.Context, userID int64) ([]domain.OfferListing, error)
	ListRequestsByUser(ctx context.Context, userID int64) ([]domain.RequestView, error)
	ListRequestsByOffer(ctx context.Context, offerID int64) ([]domain.RequestView, error)
	ListCollection(ctx context.Context, userID int64) ([]domain.CollectionCard, error)
}

// Catalog resolves card metadata from its cache, falling back to src on a
// miss. Inside an atomic unit src is the Tx.
type Catalog interface {
	GetCardVia(ctx context.Context, src catalog.Source, cardID int64) (domain.Card, error)
}
