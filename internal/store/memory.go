package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/punchamoorthee/cardexchange/internal/domain"
	"github.com/punchamoorthee/cardexchange/internal/fixture"
	"github.com/punchamoorthee/cardexchange/internal/service"
)

// Memory is an in-process backend for local runs and tests. Atomic units
// are serialized by one store-wide mutex and rolled back from an undo journal.
type Memory struct {
	mu          sync.Mutex
	users       map[int64]string
	owned       map[int64]domain.OwnedCard
	offers      map[int64]domain.Offer
	requests    map[int64]domain.Request
	nextOffer   int64
	nextRequest int64
	nextOwned   int64

	catMu sync.RWMutex
	cards map[int64]domain.Card
}

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[int64]string),
		owned:    make(map[int64]domain.OwnedCard),
		offers:   make(map[int64]domain.Offer),
		requests: make(map[int64]domain.Request),
		cards:    make(map[int64]domain.Card),
	}
}

// Load adds every fixture entity, replacing rows with the same id.
func (m *Memory) Load(fx *fixture.Fixture) {
	for _, u := range fx.Users {
		m.AddUser(u.ID, u.Username)
	}
	for _, c := range fx.Cards {
		m.AddCard(c.Domain())
	}
	for _, oc := range fx.OwnedCards {
		m.AddOwnedCard(oc.Domain())
	}
}

func (m *Memory) AddUser(id int64, username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = username
}

func (m *Memory) AddCard(c domain.Card) {
	m.catMu.Lock()
	defer m.catMu.Unlock()
	m.cards[c.ID] = c
}

// AddOwnedCard stores a ledger row. A zero ID is assigned the next free id.
func (m *Memory) AddOwnedCard(oc domain.OwnedCard) domain.OwnedCard {
	m.mu.Lock()
	defer m.mu.Unlock()
	if oc.ID == 0 {
		m.nextOwned++
		oc.ID = m.nextOwned
	}
	m.nextOwned = max(m.nextOwned, oc.ID)
	m.owned[oc.ID] = oc
	return oc
}

// OwnedCard reads one ledger row outside any atomic unit.
func (m *Memory) OwnedCard(id int64) (domain.OwnedCard, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	oc, ok := m.owned[id]
	return oc, ok
}

// OwnedCards returns every ledger row in id order.
func (m *Memory) OwnedCards() []domain.OwnedCard {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.OwnedCard, 0, len(m.owned))
	for _, oc := range m.owned {
		out = append(out, oc)
	}
	slices.SortFunc(out, func(a, b domain.OwnedCard) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (m *Memory) GetCard(_ context.Context, cardID int64) (domain.Card, error) {
	m.catMu.RLock()
	defer m.catMu.RUnlock()
	c, ok := m.cards[cardID]
	if !ok {
		return domain.Card{}, domain.ErrCardNotFound
	}
	return c, nil
}

func (m *Memory) Atomically(ctx context.Context, fn func(tx service.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{m: m}
	committed := false
	defer func() {
		if !committed {
			tx.rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	committed = true
	return nil
}

// memTx runs with m.mu held. Every write pushes its inverse onto undo.
type memTx struct {
	m    *Memory
	undo []func()
}

func (tx *memTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (tx *memTx) GetCard(ctx context.Context, cardID int64) (domain.Card, error) {
	return tx.m.GetCard(ctx, cardID)
}

func (tx *memTx) GetOffer(_ context.Context, id int64, _ service.LockMode) (domain.Offer, error) {
	o, ok := tx.m.offers[id]
	if !ok {
		return domain.Offer{}, domain.ErrOfferNotFound
	}
	return o, nil
}

func (tx *memTx) GetRequest(_ context.Context, id int64, _ service.LockMode) (domain.Request, error) {
	r, ok := tx.m.requests[id]
	if !ok {
		return domain.Request{}, domain.ErrRequestNotFound
	}
	return r, nil
}

func (tx *memTx) GetOwnedCards(_ context.Context, _ service.LockMode, ids ...int64) (map[int64]domain.OwnedCard, error) {
	out := make(map[int64]domain.OwnedCard, len(ids))
	for _, id := range ids {
		if oc, ok := tx.m.owned[id]; ok {
			out[id] = oc
		}
	}
	return out, nil
}

func (tx *memTx) OpenOfferExists(_ context.Context, ownedCardID int64) (bool, error) {
	for _, o := range tx.m.offers {
		if o.OwnedCardID == ownedCardID && o.Status == domain.OfferOpen {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memTx) InsertOffer(_ context.Context, o *domain.Offer) error {
	m := tx.m
	m.nextOffer++
	o.ID = m.nextOffer
	m.offers[o.ID] = *o

	id := o.ID
	tx.undo = append(tx.undo, func() {
		delete(m.offers, id)
		m.nextOffer--
	})
	return nil
}

func (tx *memTx) InsertRequest(_ context.Context, r *domain.Request) error {
	m := tx.m
	m.nextRequest++
	r.ID = m.nextRequest
	m.requests[r.ID] = *r

	id := r.ID
	tx.undo = append(tx.undo, func() {
		delete(m.requests, id)
		m.nextRequest--
	})
	return nil
}

func (tx *memTx) TransferOwnership(_ context.Context, ownedCardID, newOwnerID int64, _ time.Time) error {
	m := tx.m
	prev, ok := m.owned[ownedCardID]
	if !ok {
		return fmt.Errorf("transfer owned card %d: %w", ownedCardID, domain.ErrCardNoLongerAvailable)
	}
	next := prev
	next.UserID = newOwnerID
	m.owned[ownedCardID] = next
	tx.undo = append(tx.undo, func() { m.owned[ownedCardID] = prev })
	return nil
}

func (tx *memTx) UpdateOfferStatus(_ context.Context, id int64, status domain.OfferStatus, at time.Time) error {
	m := tx.m
	prev, ok := m.offers[id]
	if !ok {
		return domain.ErrOfferNotFound
	}
	next := prev
	next.Status, next.UpdatedAt = status, at
	m.offers[id] = next
	tx.undo = append(tx.undo, func() { m.offers[id] = prev })
	return nil
}

func (tx *memTx) UpdateRequestStatus(_ context.Context, id int64, status domain.RequestStatus, at time.Time) error {
	m := tx.m
	prev, ok := m.requests[id]
	if !ok {
		return domain.ErrRequestNotFound
	}
	next := prev
	next.Status, next.UpdatedAt = status, at
	m.requests[id] = next
	tx.undo = append(tx.undo, func() { m.requests[id] = prev })
	return nil
}

func (tx *memTx) RejectPendingRequests(ctx context.Context, offerID int64, at time.Time) (int64, error) {
	var n int64
	for id, r := range tx.m.requests {
		if r.OfferID != offerID || r.Status != domain.RequestPending {
			continue
		}
		if err := tx.UpdateRequestStatus(ctx, id, domain.RequestRejected, at); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Views

func (m *Memory) GetOffer(_ context.Context, id int64) (domain.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[id]
	if !ok {
		return domain.Offer{}, domain.ErrOfferNotFound
	}
	return o, nil
}

func (m *Memory) ListOpenOffers(_ context.Context) ([]domain.OfferListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OfferListing
	for _, o := range m.offers {
		if o.Status == domain.OfferOpen {
			out = append(out, m.listing(o))
		}
	}
	slices.SortFunc(out, func(a, b domain.OfferListing) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *Memory) ListOffersByUser(_ context.Context, userID int64) ([]domain.OfferListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OfferListing
	for _, o := range m.offers {
		if o.UserID == userID {
			out = append(out, m.listing(o))
		}
	}
	slices.SortFunc(out, func(a, b domain.OfferListing) int { return cmp.Compare(b.ID, a.ID) })
	return out, nil
}

func (m *Memory) ListRequestsByUser(_ context.Context, userID int64) ([]domain.RequestView, error) {
	return m.requestViews(func(r domain.Request) bool { return r.UserID == userID }), nil
}

func (m *Memory) ListRequestsByOffer(_ context.Context, offerID int64) ([]domain.RequestView, error) {
	return m.requestViews(func(r domain.Request) bool { return r.OfferID == offerID }), nil
}

func (m *Memory) ListCollection(_ context.Context, userID int64) ([]domain.CollectionCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CollectionCard
	for _, oc := range m.owned {
		if oc.UserID != userID {
			continue
		}
		c := m.card(oc.CardID)
		out = append(out, domain.CollectionCard{
			OwnedCard:     oc,
			Name:          c.Name,
			CharacterName: c.CharacterName,
			ImageURL:      c.ImageURL,
			Rarity:        c.Rarity,
		})
	}
	slices.SortFunc(out, func(a, b domain.CollectionCard) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *Memory) requestViews(keep func(domain.Request) bool) []domain.RequestView {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RequestView
	for _, r := range m.requests {
		if !keep(r) {
			continue
		}
		c := m.card(m.owned[r.OwnedCardID].CardID)
		o := m.offers[r.OfferID]
		out = append(out, domain.RequestView{
			Request:          r,
			CardName:         c.Name,
			CharacterName:    c.CharacterName,
			ImageURL:         c.ImageURL,
			Rarity:           c.Rarity,
			RequesterName:    m.users[r.UserID],
			OfferOwnerID:     o.UserID,
			OfferOwnedCardID: o.OwnedCardID,
			MinRarity:        o.MinRarity,
			OfferStatus:      o.Status,
		})
	}
	slices.SortFunc(out, func(a, b domain.RequestView) int { return cmp.Compare(b.ID, a.ID) })
	return out
}

// listing must be called with m.mu held.
func (m *Memory) listing(o domain.Offer) domain.OfferListing {
	oc := m.owned[o.OwnedCardID]
	c := m.card(oc.CardID)
	return domain.OfferListing{
		Offer:         o,
		CardID:        oc.CardID,
		Name:          c.Name,
		CharacterName: c.CharacterName,
		ImageURL:      c.ImageURL,
		Rarity:        c.Rarity,
		Username:      m.users[o.UserID],
	}
}

func (m *Memory) card(id int64) domain.Card {
	m.catMu.RLock()
	defer m.catMu.RUnlock()
	return m.cards[id]
}

var (
	_ service.Store = (*Memory)(nil)
	_ service.Views = (*Memory)(nil)
	_ service.Tx    = (*memTx)(nil)
)
