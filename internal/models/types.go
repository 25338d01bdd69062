// Package models holds the HTTP payloads of the exchange API.
package models

import "github.com/punchamoorthee/cardexchange/internal/domain"

// CreateOfferRequest is the body of POST /api/exchanges. CardID names a
// ledger row of the caller.
type CreateOfferRequest struct {
	CardID    int64  `json:"card_id"`
	MinRarity string `json:"min_rarity"`
}

// CreateRequestRequest is the body of POST /api/exchanges/{id}/request.
type CreateRequestRequest struct {
	OfferedCardID int64 `json:"offered_card_id"`
}

type OfferResponse struct {
	Message string       `json:"message"`
	Offer   domain.Offer `json:"offer"`
}

type RequestResponse struct {
	Message string         `json:"message"`
	Request domain.Request `json:"request"`
}

type AcceptResponse struct {
	Message string `json:"message"`
	domain.AcceptResult
}

type CancelResponse struct {
	Message string `json:"message"`
	domain.CancelResult
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
