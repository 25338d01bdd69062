package service

import (
	"context"
	"strings"

	"github.com/punchamoorthee/cardexchange/internal/domain"
	"github.com/sahilm/fuzzy"
)

// OfferFilter narrows the open listing. Zero values match everything.
type OfferFilter struct {
	Query     string
	MinRarity string
}

type listingSource []domain.OfferListing

func (l listingSource) Len() int { return len(l) }

func (l listingSource) String(i int) string {
	return strings.ToLower(l[i].Name + " " + l[i].CharacterName)
}

// ListOpenOffers returns open offers in creation order, or by match
// relevance when a query is given.
func (s *ExchangeService) ListOpenOffers(ctx context.Context, filter OfferFilter) ([]domain.OfferListing, error) {
	var floor domain.Rarity
	if filter.MinRarity != "" {
		r, err := domain.ParseRarity(filter.MinRarity)
		if err != nil {
			return nil, err
		}
		floor = r
	}

	listings, err := s.views.ListOpenOffers(ctx)
	if err != nil {
		return nil, err
	}

	if floor != "" {
		kept := listings[:0]
		for _, l := range listings {
			if l.Rarity.AtLeast(floor) {
				kept = append(kept, l)
			}
		}
		listings = kept
	}

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	if query == "" {
		return nonNil(listings), nil
	}
	matches := fuzzy.FindFrom(query, listingSource(listings))
	out := make([]domain.OfferListing, len(matches))
	for i, m := range matches {
		out[i] = listings[m.Index]
	}
	return out, nil
}

// MyOffers returns every offer the user made, any status, newest first.
func (s *ExchangeService) MyOffers(ctx context.Context, userID int64) ([]domain.OfferListing, error) {
	offers, err := s.views.ListOffersByUser(ctx, userID)
	return nonNil(offers), err
}

// MyRequests returns the requests the user submitted, newest first.
func (s *ExchangeService) MyRequests(ctx context.Context, userID int64) ([]domain.RequestView, error) {
	reqs, err := s.views.ListRequestsByUser(ctx, userID)
	return nonNil(reqs), err
}

// RequestsForOffer lists requests against an offer. Only its owner may look.
func (s *ExchangeService) RequestsForOffer(ctx context.Context, userID, offerID int64) ([]domain.RequestView, error) {
	offer, err := s.views.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.UserID != userID {
		return nil, domain.ErrNotOfferOwner
	}
	reqs, err := s.views.ListRequestsByOffer(ctx, offerID)
	return nonNil(reqs), err
}

// EligibleCards lists the caller's ledger rows that could be offered
// against the offer right now.
func (s *ExchangeService) EligibleCards(ctx context.Context, userID, offerID int64) ([]domain.CollectionCard, error) {
	offer, err := s.views.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.Status != domain.OfferOpen {
		return nil, domain.ErrOfferNotOpen
	}
	if offer.UserID == userID {
		return nil, domain.ErrSelfTrade
	}

	cards, err := s.views.ListCollection(ctx, userID)
	if err != nil {
		return nil, err
	}
	eligible := make([]domain.CollectionCard, 0, len(cards))
	for _, c := range cards {
		if c.Quantity > 0 && c.Rarity.AtLeast(offer.MinRarity) {
			eligible = append(eligible, c)
		}
	}
	return eligible, nil
}

// nonNil keeps empty results encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
