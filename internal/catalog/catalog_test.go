package catalog

import (
	"context"
	"testing"

	"github.com/punchamoorthee/cardexchange/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	cards map[int64]domain.Card
	calls int
}

func (f *fakeSource) GetCard(_ context.Context, id int64) (domain.Card, error) {
	f.calls++
	card, ok := f.cards[id]
	if !ok {
		return domain.Card{}, domain.ErrCardNotFound
	}
	return card, nil
}

func TestCachedServesRepeatLookupsFromCache(t *testing.T) {
	src := &fakeSource{cards: map[int64]domain.Card{
		1: {ID: 1, Name: "Homer", Rarity: domain.Common},
	}}
	c, err := NewCached(src, 8)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		card, err := c.GetCard(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "Homer", card.Name)
	}
	assert.Equal(t, 1, src.calls)
	assert.Equal(t, 1, c.Len())
}

func TestCachedDoesNotCacheMisses(t *testing.T) {
	src := &fakeSource{cards: map[int64]domain.Card{}}
	c, err := NewCached(src, 0)
	require.NoError(t, err)

	_, err = c.GetCard(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrCardNotFound)
	_, err = c.GetCard(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrCardNotFound)
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, 0, c.Len())
}

func TestCachedEvictsLeastRecentlyUsed(t *testing.T) {
	src := &fakeSource{cards: map[int64]domain.Card{
		1: {ID: 1, Rarity: domain.Common},
		2: {ID: 2, Rarity: domain.Rare},
		3: {ID: 3, Rarity: domain.Epic},
	}}
	c, err := NewCached(src, 2)
	require.NoError(t, err)

	ctx := context.Background()
	for _, id := range []int64{1, 2, 3} {
		_, err := c.GetCard(ctx, id)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())

	_, err = c.GetCard(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, src.calls)

	c.Purge()
	assert.Equal(t, 0, c.Len())
}
