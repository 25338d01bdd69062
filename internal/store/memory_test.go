package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/punchamoorthee/cardexchange/internal/domain"
	"github.com/punchamoorthee/cardexchange/internal/fixture"
	"github.com/punchamoorthee/cardexchange/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	m.Load(&fixture.Fixture{
		Users: []fixture.User{{ID: 1, Username: "alice"}, {ID: 2, Username: "bob"}},
		Cards: []fixture.Card{
			{ID: 10, Name: "Homer", CharacterName: "homer", Rarity: "Common"},
			{ID: 11, Name: "Marge", CharacterName: "marge", Rarity: "Epic"},
		},
		OwnedCards: []fixture.OwnedCard{
			{ID: 100, UserID: 1, CardID: 10, Quantity: 1},
			{ID: 101, UserID: 2, CardID: 11, Quantity: 1},
		},
	})
	return m
}

func TestMemoryAtomicallyRollsBackOnError(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()
	boom := errors.New("boom")
	now := time.Now()

	err := m.Atomically(ctx, func(tx service.Tx) error {
		o := &domain.Offer{UserID: 1, OwnedCardID: 100, MinRarity: domain.Rare, Status: domain.OfferOpen}
		require.NoError(t, tx.InsertOffer(ctx, o))
		r := &domain.Request{OfferID: o.ID, UserID: 2, OwnedCardID: 101, Status: domain.RequestPending}
		require.NoError(t, tx.InsertRequest(ctx, r))
		require.NoError(t, tx.TransferOwnership(ctx, 100, 2, now))
		require.NoError(t, tx.UpdateOfferStatus(ctx, o.ID, domain.OfferCompleted, now))
		n, err := tx.RejectPendingRequests(ctx, o.ID, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		return boom
	})
	require.ErrorIs(t, err, boom)

	oc, ok := m.OwnedCard(100)
	require.True(t, ok)
	assert.Equal(t, int64(1), oc.UserID)

	_, err = m.GetOffer(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrOfferNotFound)
	reqs, err := m.ListRequestsByUser(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, reqs)

	// ids freed by the rollback are handed out again
	err = m.Atomically(ctx, func(tx service.Tx) error {
		o := &domain.Offer{UserID: 1, OwnedCardID: 100, MinRarity: domain.Rare, Status: domain.OfferOpen}
		require.NoError(t, tx.InsertOffer(ctx, o))
		assert.Equal(t, int64(1), o.ID)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryAtomicallyRollsBackOnPanic(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = m.Atomically(ctx, func(tx service.Tx) error {
			require.NoError(t, tx.TransferOwnership(ctx, 100, 2, time.Now()))
			panic("mid-unit")
		})
	})

	oc, _ := m.OwnedCard(100)
	assert.Equal(t, int64(1), oc.UserID)
}

func TestMemoryAtomicallyHonoursCancelledContext(t *testing.T) {
	m := seeded(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := m.Atomically(ctx, func(tx service.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestMemoryGetOwnedCardsSkipsUnknownIDs(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()

	err := m.Atomically(ctx, func(tx service.Tx) error {
		rows, err := tx.GetOwnedCards(ctx, service.LockUpdate, 101, 999, 100)
		require.NoError(t, err)
		assert.Len(t, rows, 2)
		assert.Equal(t, int64(2), rows[101].UserID)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryViews(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()
	now := time.Now()

	var offerID int64
	require.NoError(t, m.Atomically(ctx, func(tx service.Tx) error {
		o := &domain.Offer{UserID: 1, OwnedCardID: 100, MinRarity: domain.Rare, Status: domain.OfferOpen, CreatedAt: now, UpdatedAt: now}
		if err := tx.InsertOffer(ctx, o); err != nil {
			return err
		}
		offerID = o.ID
		return tx.InsertRequest(ctx, &domain.Request{OfferID: o.ID, UserID: 2, OwnedCardID: 101, Status: domain.RequestPending})
	}))

	open, err := m.ListOpenOffers(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "Homer", open[0].Name)
	assert.Equal(t, "alice", open[0].Username)
	assert.Equal(t, int64(10), open[0].CardID)
	assert.Equal(t, domain.Common, open[0].Rarity)

	reqs, err := m.ListRequestsByOffer(ctx, offerID)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "Marge", reqs[0].CardName)
	assert.Equal(t, "bob", reqs[0].RequesterName)
	assert.Equal(t, int64(1), reqs[0].OfferOwnerID)
	assert.Equal(t, domain.Rare, reqs[0].MinRarity)
	assert.Equal(t, domain.OfferOpen, reqs[0].OfferStatus)

	coll, err := m.ListCollection(ctx, 2)
	require.NoError(t, err)
	require.Len(t, coll, 1)
	assert.Equal(t, domain.Epic, coll[0].Rarity)

	mine, err := m.ListOffersByUser(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	card, err := m.GetCard(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrCardNotFound)
	assert.Zero(t, card)
}
