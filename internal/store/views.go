package store

import (
	"context"
	"fmt"
	"time"

	"github.com/punchamoorthee/cardexchange/internal/domain"
	"github.com/uptrace/bun"
)

type listingRow struct {
	ID            int64     `bun:"id"`
	UserID        int64     `bun:"user_id"`
	OwnedCardID   int64     `bun:"user_card_id"`
	MinRarity     string    `bun:"min_rarity"`
	Status        string    `bun:"status"`
	CreatedAt     time.Time `bun:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at"`
	CardID        int64     `bun:"card_id"`
	Name          string    `bun:"name"`
	CharacterName string    `bun:"character_name"`
	ImageURL      string    `bun:"image_url"`
	Rarity        string    `bun:"rarity"`
	Username      string    `bun:"username"`
}

func (r listingRow) toDomain() domain.OfferListing {
	return domain.OfferListing{
		Offer: domain.Offer{
			ID:          r.ID,
			UserID:      r.UserID,
			OwnedCardID: r.OwnedCardID,
			MinRarity:   domain.Rarity(r.MinRarity),
			Status:      domain.OfferStatus(r.Status),
			CreatedAt:   r.CreatedAt,
			UpdatedAt:   r.UpdatedAt,
		},
		CardID:        r.CardID,
		Name:          r.Name,
		CharacterName: r.CharacterName,
		ImageURL:      r.ImageURL,
		Rarity:        domain.Rarity(r.Rarity),
		Username:      r.Username,
	}
}

type requestRow struct {
	ID               int64     `bun:"id"`
	OfferID          int64     `bun:"exchange_offer_id"`
	UserID           int64     `bun:"user_id"`
	OwnedCardID      int64     `bun:"offered_card_id"`
	Status           string    `bun:"status"`
	CreatedAt        time.Time `bun:"created_at"`
	UpdatedAt        time.Time `bun:"updated_at"`
	CardName         string    `bun:"card_name"`
	CharacterName    string    `bun:"character_name"`
	ImageURL         string    `bun:"image_url"`
	Rarity           string    `bun:"rarity"`
	RequesterName    string    `bun:"requester_name"`
	OfferOwnerID     int64     `bun:"offer_owner_id"`
	OfferOwnedCardID int64     `bun:"offer_card_id"`
	MinRarity        string    `bun:"min_rarity"`
	OfferStatus      string    `bun:"offer_status"`
}

func (r requestRow) toDomain() domain.RequestView {
	return domain.RequestView{
		Request: domain.Request{
			ID:          r.ID,
			OfferID:     r.OfferID,
			UserID:      r.UserID,
			OwnedCardID: r.OwnedCardID,
			Status:      domain.RequestStatus(r.Status),
			CreatedAt:   r.CreatedAt,
			UpdatedAt:   r.UpdatedAt,
		},
		CardName:         r.CardName,
		CharacterName:    r.CharacterName,
		ImageURL:         r.ImageURL,
		Rarity:           domain.Rarity(r.Rarity),
		RequesterName:    r.RequesterName,
		OfferOwnerID:     r.OfferOwnerID,
		OfferOwnedCardID: r.OfferOwnedCardID,
		MinRarity:        domain.Rarity(r.MinRarity),
		OfferStatus:      domain.OfferStatus(r.OfferStatus),
	}
}

type collectionRow struct {
	ID            int64  `bun:"id"`
	UserID        int64  `bun:"user_id"`
	CardID        int64  `bun:"card_id"`
	Quantity      int64  `bun:"quantity"`
	Name          string `bun:"name"`
	CharacterName string `bun:"character_name"`
	ImageURL      string `bun:"image_url"`
	Rarity        string `bun:"rarity"`
}

func (s *Store) listings(ctx context.Context, where func(*bun.SelectQuery) *bun.SelectQuery, order string) ([]domain.OfferListing, error) {
	var rows []listingRow
	q := s.db.NewSelect().
		TableExpr("exchange_offers AS eo").
		ColumnExpr("eo.id, eo.user_id, eo.user_card_id, eo.min_rarity, eo.status, eo.created_at, eo.updated_at").
		ColumnExpr("uc.card_id, c.name, c.character_name, c.image_url, c.rarity").
		ColumnExpr("COALESCE(u.username, '') AS username").
		Join("JOIN user_cards AS uc ON uc.id = eo.user_card_id").
		Join("JOIN cards AS c ON c.id = uc.card_id").
		Join("LEFT JOIN users AS u ON u.id = eo.user_id")
	if err := where(q).OrderExpr(order).Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("offer listing query failed: %w", err)
	}

	out := make([]domain.OfferListing, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) ListOpenOffers(ctx context.Context) ([]domain.OfferListing, error) {
	return s.listings(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("eo.status = ?", string(domain.OfferOpen))
	}, "eo.id ASC")
}

func (s *Store) ListOffersByUser(ctx context.Context, userID int64) ([]domain.OfferListing, error) {
	return s.listings(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("eo.user_id = ?", userID)
	}, "eo.created_at DESC, eo.id DESC")
}

func (s *Store) requestViews(ctx context.Context, where func(*bun.SelectQuery) *bun.SelectQuery) ([]domain.RequestView, error) {
	var rows []requestRow
	q := s.db.NewSelect().
		TableExpr("exchange_requests AS er").
		ColumnExpr("er.id, er.exchange_offer_id, er.user_id, er.offered_card_id, er.status, er.created_at, er.updated_at").
		ColumnExpr("c.name AS card_name, c.character_name, c.image_url, c.rarity").
		ColumnExpr("COALESCE(u.username, '') AS requester_name").
		ColumnExpr("eo.user_id AS offer_owner_id, eo.user_card_id AS offer_card_id, eo.min_rarity, eo.status AS offer_status").
		Join("JOIN exchange_offers AS eo ON eo.id = er.exchange_offer_id").
		Join("JOIN user_cards AS uc ON uc.id = er.offered_card_id").
		Join("JOIN cards AS c ON c.id = uc.card_id").
		Join("LEFT JOIN users AS u ON u.id = er.user_id")
	if err := where(q).OrderExpr("er.created_at DESC, er.id DESC").Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("request listing query failed: %w", err)
	}

	out := make([]domain.RequestView, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) ListRequestsByUser(ctx context.Context, userID int64) ([]domain.RequestView, error) {
	return s.requestViews(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("er.user_id = ?", userID)
	})
}

func (s *Store) ListRequestsByOffer(ctx context.Context, offerID int64) ([]domain.RequestView, error) {
	return s.requestViews(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("er.exchange_offer_id = ?", offerID)
	})
}

func (s *Store) ListCollection(ctx context.Context, userID int64) ([]domain.CollectionCard, error) {
	var rows []collectionRow
	err := s.db.NewSelect().
		TableExpr("user_cards AS uc").
		ColumnExpr("uc.id, uc.user_id, uc.card_id, uc.quantity").
		ColumnExpr("c.name, c.character_name, c.image_url, c.rarity").
		Join("JOIN cards AS c ON c.id = uc.card_id").
		Where("uc.user_id = ?", userID).
		OrderExpr("uc.id ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("collection query failed: %w", err)
	}

	out := make([]domain.CollectionCard, len(rows))
	for i, r := range rows {
		out[i] = domain.CollectionCard{
			OwnedCard:     domain.OwnedCard{ID: r.ID, UserID: r.UserID, CardID: r.CardID, Quantity: r.Quantity},
			Name:          r.Name,
			CharacterName: r.CharacterName,
			ImageURL:      r.ImageURL,
			Rarity:        domain.Rarity(r.Rarity),
		}
	}
	return out, nil
}
