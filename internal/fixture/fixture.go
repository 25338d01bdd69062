// Package fixture loads seed data (users, catalog cards, ledger rows) from TOML.
package fixture

import (
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/punchamoorthee/cardexchange/internal/domain"
)

type User struct {
	ID       int64  `toml:"id"`
	Username string `toml:"username"`
}

type Card struct {
	ID            int64  `toml:"id"`
	Name          string `toml:"name"`
	CharacterName string `toml:"character_name"`
	ImageURL      string `toml:"image_url"`
	Rarity        string `toml:"rarity"`
}

type OwnedCard struct {
	ID       int64 `toml:"id"`
	UserID   int64 `toml:"user_id"`
	CardID   int64 `toml:"card_id"`
	Quantity int64 `toml:"quantity"`
}

type Fixture struct {
	Users      []User      `toml:"users"`
	Cards      []Card      `toml:"cards"`
	OwnedCards []OwnedCard `toml:"owned_cards"`
}

func Load(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses and validates a fixture. Unknown keys are rejected.
func Decode(r io.Reader) (*Fixture, error) {
	var fx Fixture
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(&fx); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := fx.Validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

// Validate checks ids are positive and unique, rarities are known and every
// ledger row points at an existing user and card.
func (fx *Fixture) Validate() error {
	users := make(map[int64]bool, len(fx.Users))
	for _, u := range fx.Users {
		if u.ID <= 0 || users[u.ID] {
			return fmt.Errorf("fixture: bad or duplicate user id %d", u.ID)
		}
		users[u.ID] = true
	}

	cards := make(map[int64]bool, len(fx.Cards))
	for _, c := range fx.Cards {
		if c.ID <= 0 || cards[c.ID] {
			return fmt.Errorf("fixture: bad or duplicate card id %d", c.ID)
		}
		if _, err := domain.ParseRarity(c.Rarity); err != nil {
			return fmt.Errorf("fixture: card %d: %w", c.ID, err)
		}
		cards[c.ID] = true
	}

	rows := make(map[int64]bool, len(fx.OwnedCards))
	for _, oc := range fx.OwnedCards {
		if oc.ID <= 0 || rows[oc.ID] {
			return fmt.Errorf("fixture: bad or duplicate owned card id %d", oc.ID)
		}
		if !users[oc.UserID] {
			return fmt.Errorf("fixture: owned card %d: unknown user %d", oc.ID, oc.UserID)
		}
		if !cards[oc.CardID] {
			return fmt.Errorf("fixture: owned card %d: unknown card %d", oc.ID, oc.CardID)
		}
		if oc.Quantity < 0 {
			return fmt.Errorf("fixture: owned card %d: negative quantity", oc.ID)
		}
		rows[oc.ID] = true
	}
	return nil
}

func (c Card) Domain() domain.Card {
	return domain.Card{
		ID:            c.ID,
		Name:          c.Name,
		CharacterName: c.CharacterName,
		ImageURL:      c.ImageURL,
		Rarity:        domain.Rarity(c.Rarity),
	}
}

func (oc OwnedCard) Domain() domain.OwnedCard {
	return domain.OwnedCard{ID: oc.ID, UserID: oc.UserID, CardID: oc.CardID, Quantity: oc.Quantity}
}
