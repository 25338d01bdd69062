package catalog

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/cardexchange/internal/domain"
)

const DefaultCacheSize = 1024

var lookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "exchange_catalog_lookups_total",
	Help: "Card catalog lookups, labeled by cache result",
}, []string{"result"})

// Source is the read-only card catalog store.
type Source interface {
	GetCard(ctx context.Context, cardID int64) (domain.Card, error)
}

// Cached fronts a Source with an LRU. Card metadata is immutable from the
// exchange's point of view, so entries are never invalidated.
type Cached struct {
	source Source
	cache  *lru.Cache
}

func NewCached(source Source, size int) (*Cached, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("catalog cache: %w", err)
	}
	return &Cached{source: source, cache: cache}, nil
}

// GetCard returns card metadata, or domain.ErrCardNotFound. Misses are not cached.
func (c *Cached) GetCard(ctx context.Context, cardID int64) (domain.Card, error) {
	return c.GetCardVia(ctx, c.source, cardID)
}

// GetCardVia is GetCard with misses read from src, so a caller holding a
// transaction never needs a second connection.
func (c *Cached) GetCardVia(ctx context.Context, src Source, cardID int64) (domain.Card, error) {
	if v, ok := c.cache.Get(cardID); ok {
		if card, ok := v.(domain.Card); ok {
			lookups.WithLabelValues("hit").Inc()
			return card, nil
		}
	}
	lookups.WithLabelValues("miss").Inc()

	card, err := src.GetCard(ctx, cardID)
	if err != nil {
		return domain.Card{}, err
	}
	c.cache.Add(cardID, card)
	return card, nil
}

// Len is the number of cached cards.
func (c *Cached) Len() int {
	return c.cache.Len()
}

func (c *Cached) Purge() {
	c.cache.Purge()
}
