package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/punchamoorthee/cardexchange/internal/domain"
	"github.com/punchamoorthee/cardexchange/internal/service"
)

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgTx struct {
	tx pgx.Tx
}

func lockClause(mode service.LockMode) string {
	switch mode {
	case service.LockShare:
		return " FOR SHARE"
	case service.LockUpdate:
		return " FOR UPDATE"
	default:
		return ""
	}
}

func getOffer(ctx context.Context, q querier, id int64, mode service.LockMode) (domain.Offer, error) {
	var o domain.Offer
	var minRarity, status string
	err := q.QueryRow(ctx,
		"SELECT id, user_id, user_card_id, min_rarity, status, created_at, updated_at FROM exchange_offers WHERE id = $1"+lockClause(mode),
		id,
	).Scan(&o.ID, &o.UserID, &o.OwnedCardID, &minRarity, &status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Offer{}, domain.ErrOfferNotFound
		}
		return domain.Offer{}, fmt.Errorf("offer query failed: %w", err)
	}
	o.MinRarity = domain.Rarity(minRarity)
	o.Status = domain.OfferStatus(status)
	return o, nil
}

func getCard(ctx context.Context, q querier, cardID int64) (domain.Card, error) {
	var c domain.Card
	var rarity string
	err := q.QueryRow(ctx,
		"SELECT id, name, character_name, image_url, rarity FROM cards WHERE id = $1",
		cardID,
	).Scan(&c.ID, &c.Name, &c.CharacterName, &c.ImageURL, &rarity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Card{}, domain.ErrCardNotFound
		}
		return domain.Card{}, fmt.Errorf("card lookup failed: %w", err)
	}
	c.Rarity = domain.Rarity(rarity)
	return c, nil
}

func (t *pgTx) GetCard(ctx context.Context, cardID int64) (domain.Card, error) {
	return getCard(ctx, t.tx, cardID)
}

func (t *pgTx) GetOffer(ctx context.Context, id int64, mode service.LockMode) (domain.Offer, error) {
	return getOffer(ctx, t.tx, id, mode)
}

func (t *pgTx) GetRequest(ctx context.Context, id int64, mode service.LockMode) (domain.Request, error) {
	var r domain.Request
	var status string
	err := t.tx.QueryRow(ctx,
		"SELECT id, exchange_offer_id, user_id, offered_card_id, status, created_at, updated_at FROM exchange_requests WHERE id = $1"+lockClause(mode),
		id,
	).Scan(&r.ID, &r.OfferID, &r.UserID, &r.OwnedCardID, &status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Request{}, domain.ErrRequestNotFound
		}
		return domain.Request{}, fmt.Errorf("request query failed: %w", err)
	}
	r.Status = domain.RequestStatus(status)
	return r, nil
}

// GetOwnedCards locks one row at a time in ascending id order so two
// transactions touching the same pair of rows cannot deadlock.
func (t *pgTx) GetOwnedCards(ctx context.Context, mode service.LockMode, ids ...int64) (map[int64]domain.OwnedCard, error) {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	out := make(map[int64]domain.OwnedCard, len(sorted))
	for _, id := range sorted {
		var oc domain.OwnedCard
		err := t.tx.QueryRow(ctx,
			"SELECT id, user_id, card_id, quantity FROM user_cards WHERE id = $1"+lockClause(mode),
			id,
		).Scan(&oc.ID, &oc.UserID, &oc.CardID, &oc.Quantity)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lock acquisition failed: %w", err)
		}
		out[id] = oc
	}
	return out, nil
}

func (t *pgTx) OpenOfferExists(ctx context.Context, ownedCardID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM exchange_offers WHERE user_card_id = $1 AND status = 'open')",
		ownedCardID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("open offer check failed: %w", err)
	}
	return exists, nil
}

func (t *pgTx) InsertOffer(ctx context.Context, o *domain.Offer) error {
	err := t.tx.QueryRow(ctx,
		"INSERT INTO exchange_offers (user_id, user_card_id, min_rarity, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id",
		o.UserID, o.OwnedCardID, string(o.MinRarity), string(o.Status), o.CreatedAt, o.UpdatedAt,
	).Scan(&o.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrCardAlreadyOffered
		}
		return fmt.Errorf("offer insert failed: %w", err)
	}
	return nil
}

func (t *pgTx) InsertRequest(ctx context.Context, r *domain.Request) error {
	err := t.tx.QueryRow(ctx,
		"INSERT INTO exchange_requests (exchange_offer_id, user_id, offered_card_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id",
		r.OfferID, r.UserID, r.OwnedCardID, string(r.Status), r.CreatedAt, r.UpdatedAt,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("request insert failed: %w", err)
	}
	return nil
}

func (t *pgTx) TransferOwnership(ctx context.Context, ownedCardID, newOwnerID int64, at time.Time) error {
	tag, err := t.tx.Exec(ctx,
		"UPDATE user_cards SET user_id = $1, updated_at = $2 WHERE id = $3",
		newOwnerID, at, ownedCardID,
	)
	if err != nil {
		return fmt.Errorf("ownership transfer failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transfer owned card %d: %w", ownedCardID, domain.ErrCardNoLongerAvailable)
	}
	return nil
}

func (t *pgTx) UpdateOfferStatus(ctx context.Context, id int64, status domain.OfferStatus, at time.Time) error {
	tag, err := t.tx.Exec(ctx,
		"UPDATE exchange_offers SET status = $1, updated_at = $2 WHERE id = $3",
		string(status), at, id,
	)
	if err != nil {
		return fmt.Errorf("offer update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOfferNotFound
	}
	return nil
}

func (t *pgTx) UpdateRequestStatus(ctx context.Context, id int64, status domain.RequestStatus, at time.Time) error {
	tag, err := t.tx.Exec(ctx,
		"UPDATE exchange_requests SET status = $1, updated_at = $2 WHERE id = $3",
		string(status), at, id,
	)
	if err != nil {
		return fmt.Errorf("request update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRequestNotFound
	}
	return nil
}

func (t *pgTx) RejectPendingRequests(ctx context.Context, offerID int64, at time.Time) (int64, error) {
	tag, err := t.tx.Exec(ctx,
		"UPDATE exchange_requests SET status = 'rejected', updated_at = $1 WHERE exchange_offer_id = $2 AND status = 'pending'",
		at, offerID,
	)
	if err != nil {
		return 0, fmt.Errorf("sibling rejection failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ service.Tx = (*pgTx)(nil)
