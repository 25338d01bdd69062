package fixture

import (
	"errors"
	"strings"
	"testing"

	"github.com/punchamoorthee/cardexchange/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
[[users]]
id = 1
username = "alice"

[[users]]
id = 2
username = "bob"

[[cards]]
id = 10
name = "Homer Simpson"
character_name = "homer"
image_url = "/img/homer.png"
rarity = "Rare"

[[owned_cards]]
id = 100
user_id = 1
card_id = 10
quantity = 1
`

func TestDecode(t *testing.T) {
	fx, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, fx.Users, 2)
	require.Len(t, fx.Cards, 1)
	require.Len(t, fx.OwnedCards, 1)

	card := fx.Cards[0].Domain()
	assert.Equal(t, domain.Rare, card.Rarity)
	assert.Equal(t, "homer", card.CharacterName)
	assert.Equal(t, domain.OwnedCard{ID: 100, UserID: 1, CardID: 10, Quantity: 1}, fx.OwnedCards[0].Domain())
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	_, err := Decode(strings.NewReader("[[users]]\nid = 1\nemail = \"x\"\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Fixture {
		return &Fixture{
			Users:      []User{{ID: 1, Username: "alice"}},
			Cards:      []Card{{ID: 10, Name: "Homer", Rarity: "Common"}},
			OwnedCards: []OwnedCard{{ID: 100, UserID: 1, CardID: 10, Quantity: 1}},
		}
	}

	require.NoError(t, base().Validate())

	fx := base()
	fx.Cards[0].Rarity = "Mythic"
	assert.True(t, errors.Is(fx.Validate(), domain.ErrInvalidRarity))

	fx = base()
	fx.Users = append(fx.Users, User{ID: 1, Username: "dup"})
	assert.Error(t, fx.Validate())

	fx = base()
	fx.OwnedCards[0].UserID = 9
	assert.ErrorContains(t, fx.Validate(), "unknown user")

	fx = base()
	fx.OwnedCards[0].CardID = 9
	assert.ErrorContains(t, fx.Validate(), "unknown card")

	fx = base()
	fx.OwnedCards[0].Quantity = -1
	assert.ErrorContains(t, fx.Validate(), "negative quantity")
}

func TestDevFixtureIsValid(t *testing.T) {
	fx, err := Load("../../fixtures/dev.toml")
	require.NoError(t, err)
	assert.NotEmpty(t, fx.Users)
	assert.NotEmpty(t, fx.OwnedCards)
}
