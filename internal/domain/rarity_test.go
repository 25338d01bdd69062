package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRarity(t *testing.T) {
	for _, r := range Rarities() {
		got, err := ParseRarity(string(r))
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}

	for _, bad := range []string{"", "common", "Mythic", " Rare"} {
		_, err := ParseRarity(bad)
		assert.ErrorIs(t, err, ErrInvalidRarity, "label %q", bad)
	}
}

func TestRarityOrder(t *testing.T) {
	order := Rarities()
	require.Len(t, order, 5)
	for i := 1; i < len(order); i++ {
		assert.Equal(t, -1, CompareRarity(order[i-1], order[i]))
		assert.Equal(t, 1, CompareRarity(order[i], order[i-1]))
		assert.True(t, order[i].AtLeast(order[i-1]))
		assert.False(t, order[i-1].AtLeast(order[i]))
	}
	assert.Equal(t, 0, CompareRarity(Epic, Epic))
	assert.True(t, Common.AtLeast(Common))
	assert.True(t, Legendary.AtLeast(Common))
}

func TestUnknownRarityNeverRanks(t *testing.T) {
	unknown := Rarity("Mythic")
	assert.False(t, unknown.Valid())
	assert.Equal(t, -1, unknown.Rank())
	assert.False(t, unknown.AtLeast(Common))
	assert.False(t, Legendary.AtLeast(unknown))
}

func TestRaritiesReturnsCopy(t *testing.T) {
	r := Rarities()
	r[0] = "changed"
	assert.Equal(t, Common, Rarities()[0])
}

func TestClassOf(t *testing.T) {
	cases := map[error]Class{
		ErrInvalidRarity:                 ClassValidation,
		ErrNotOwned:                      ClassOwnership,
		ErrOfferNotOpen:                  ClassState,
		ErrRequestNotPending:             ClassState,
		ErrNotOfferOwner:                 ClassAuthorization,
		ErrSelfTrade:                     ClassAuthorization,
		ErrRarityTooLow:                  ClassEligibility,
		ErrCardNoLongerAvailable:         ClassConsistency,
		ErrConflict:                      ClassInfrastructure,
		errors.New("connection refused"): ClassInfrastructure,
	}
	for err, want := range cases {
		assert.Equal(t, want, ClassOf(err), err.Error())
	}

	wrapped := fmt.Errorf("accept: %w", ErrOfferNotFound)
	assert.Equal(t, ClassState, ClassOf(wrapped))

	assert.True(t, IsRejection(ErrRarityTooLow))
	assert.False(t, IsRejection(ErrConflict))
	assert.False(t, IsRejection(nil))
}
