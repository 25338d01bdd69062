package domain

import "time"

type OfferStatus string

const (
	OfferOpen      OfferStatus = "open"
	OfferCompleted OfferStatus = "completed"
	OfferCancelled OfferStatus = "cancelled"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// Card is catalog metadata. It is never mutated by the exchange.
type Card struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	CharacterName string `json:"character_name"`
	ImageURL      string `json:"image_url"`
	Rarity        Rarity `json:"rarity"`
}

// OwnedCard is one ownership ledger row. A trade moves the whole row to
// its new owner; Quantity travels with it.
type OwnedCard struct {
	ID       int64 `json:"id"`
	UserID   int64 `json:"user_id"`
	CardID   int64 `json:"card_id"`
	Quantity int64 `json:"quantity"`
}

// Offer is a standing proposal to trade one ledger row.
// Status only moves open -> completed or open -> cancelled.
type Offer struct {
	ID          int64       `json:"id"`
	UserID      int64       `json:"user_id"`
	OwnedCardID int64       `json:"card_id"`
	MinRarity   Rarity      `json:"min_rarity"`
	Status      OfferStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Request is a counter-proposal against an open offer.
type Request struct {
	ID          int64         `json:"id"`
	OfferID     int64         `json:"exchange_offer_id"`
	UserID      int64         `json:"user_id"`
	OwnedCardID int64         `json:"offered_card_id"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// OfferListing is an open offer joined with the offered card and its owner.
type OfferListing struct {
	Offer
	CardID        int64  `json:"card_base_id"`
	Name          string `json:"name"`
	CharacterName string `json:"character_name"`
	ImageURL      string `json:"image_url"`
	Rarity        Rarity `json:"rarity"`
	Username      string `json:"username"`
}

// RequestView is a request joined with its counter-card and parent offer.
type RequestView struct {
	Request
	CardName         string      `json:"card_name"`
	CharacterName    string      `json:"character_name"`
	ImageURL         string      `json:"image_url"`
	Rarity           Rarity      `json:"rarity"`
	RequesterName    string      `json:"requester_name"`
	OfferOwnerID     int64       `json:"offer_owner_id"`
	OfferOwnedCardID int64       `json:"offer_card_id"`
	MinRarity        Rarity      `json:"min_rarity"`
	OfferStatus      OfferStatus `json:"offer_status"`
}

// CollectionCard is a ledger row joined with its catalog entry.
type CollectionCard struct {
	OwnedCard
	Name          string `json:"name"`
	CharacterName string `json:"character_name"`
	ImageURL      string `json:"image_url"`
	Rarity        Rarity `json:"rarity"`
}

// AcceptResult describes a completed swap.
type AcceptResult struct {
	Offer            Offer   `json:"offer"`
	Request          Request `json:"request"`
	RejectedRequests int64   `json:"rejected_requests"`
}

// CancelResult describes a cancelled offer.
type CancelResult struct {
	Offer            Offer `json:"offer"`
	RejectedRequests int64 `json:"rejected_requests"`
}
