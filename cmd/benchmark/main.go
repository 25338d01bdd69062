package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"sync/atomic"
	"time"

	"github.com/punchamoorthee/cardexchange/internal/auth"
	"github.com/punchamoorthee/cardexchange/internal/fixture"
	"golang.org/x/sync/errgroup"
)

// Config holds the benchmark settings
var (
	targetURL   string
	secret      string
	fixturePath string
	concurrency int
	rounds      int
	maxRequests int
)

// Metrics
var (
	totalAccepts uint64
	accepted200  uint64 // Winners
	fail409      uint64 // Lost the race
	failOther    uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "JWT secret shared with the server")
	flag.StringVar(&fixturePath, "fixture", "fixtures/dev.toml", "fixture the server was seeded with")
	flag.IntVar(&concurrency, "workers", 16, "Number of concurrent accept calls in flight")
	flag.IntVar(&rounds, "rounds", 5, "Number of offers to race on")
	flag.IntVar(&maxRequests, "requests", 50, "Maximum requests per offer")
}

// placed is a request created for the current round.
type placed struct {
	id, row, user int64
}

type client struct {
	http   *http.Client
	tokens map[int64]string
}

func main() {
	flag.Parse()
	if secret == "" {
		log.Fatal("-secret or JWT_SECRET is required")
	}

	fx, err := fixture.Load(fixturePath)
	if err != nil {
		log.Fatal(err)
	}

	authn := auth.NewJWTAuthenticator(secret)
	c := &client{http: &http.Client{Timeout: 5 * time.Second}, tokens: make(map[int64]string)}
	for _, u := range fx.Users {
		tok, err := authn.Issue(u.ID, time.Hour)
		if err != nil {
			log.Fatal(err)
		}
		c.tokens[u.ID] = tok
	}

	// Local view of who holds each ledger row; updated after every swap.
	owner := make(map[int64]int64, len(fx.OwnedCards))
	var rows []int64
	for _, oc := range fx.OwnedCards {
		if oc.Quantity > 0 {
			owner[oc.ID] = oc.UserID
			rows = append(rows, oc.ID)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i] < rows[j] })
	if len(rows) < 2 {
		log.Fatal("fixture needs at least two owned cards")
	}

	log.Printf("Starting accept race: rounds=%d workers=%d", rounds, concurrency)
	ctx := context.Background()
	start := time.Now()
	violations := 0

	for round := 0; round < rounds; round++ {
		offered := rows[round%len(rows)]
		offerer := owner[offered]

		offerID, err := c.createOffer(ctx, offerer, offered)
		if err != nil {
			log.Printf("round %d: create offer: %v", round, err)
			continue
		}

		var requests []placed
		for _, row := range rows {
			if len(requests) >= maxRequests {
				break
			}
			if owner[row] == offerer {
				continue
			}
			id, err := c.createRequest(ctx, owner[row], offerID, row)
			if err != nil {
				log.Printf("round %d: request with row %d: %v", round, row, err)
				continue
			}
			requests = append(requests, placed{id: id, row: row, user: owner[row]})
		}
		if len(requests) == 0 {
			log.Printf("round %d: no requests, cancelling offer %d", round, offerID)
			_, _ = c.post(ctx, offerer, fmt.Sprintf("/api/exchanges/%d/cancel", offerID), nil)
			continue
		}

		var winners atomic.Int64
		var winner atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for i, r := range requests {
			g.Go(func() error {
				status, err := c.post(gctx, offerer, fmt.Sprintf("/api/exchanges/%d/accept/%d", offerID, r.id), nil)
				atomic.AddUint64(&totalAccepts, 1)
				switch {
				case err != nil:
					atomic.AddUint64(&failOther, 1)
				case status == http.StatusOK:
					atomic.AddUint64(&accepted200, 1)
					winners.Add(1)
					winner.Store(int64(i))
				case status == http.StatusConflict:
					atomic.AddUint64(&fail409, 1)
				default:
					atomic.AddUint64(&failOther, 1)
				}
				return nil
			})
		}
		_ = g.Wait()

		if winners.Load() != 1 {
			violations++
			log.Printf("round %d: offer %d had %d winners", round, offerID, winners.Load())
			continue
		}
		w := requests[winner.Load()]
		owner[offered], owner[w.row] = w.user, offerer
	}

	printResults(time.Since(start), violations)
	if violations > 0 {
		os.Exit(1)
	}
}

func (c *client) createOffer(ctx context.Context, userID, row int64) (int64, error) {
	var out struct {
		Offer struct {
			ID int64 `json:"id"`
		} `json:"offer"`
	}
	if err := c.postJSON(ctx, userID, "/api/exchanges",
		map[string]any{"card_id": row, "min_rarity": "Common"}, http.StatusCreated, &out); err != nil {
		return 0, err
	}
	return out.Offer.ID, nil
}

func (c *client) createRequest(ctx context.Context, userID, offerID, row int64) (int64, error) {
	var out struct {
		Request struct {
			ID int64 `json:"id"`
		} `json:"request"`
	}
	if err := c.postJSON(ctx, userID, fmt.Sprintf("/api/exchanges/%d/request", offerID),
		map[string]any{"offered_card_id": row}, http.StatusCreated, &out); err != nil {
		return 0, err
	}
	return out.Request.ID, nil
}

func (c *client) postJSON(ctx context.Context, userID int64, path string, payload any, want int, dst any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, userID, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func (c *client) post(ctx context.Context, userID int64, path string, body []byte) (int, error) {
	resp, err := c.do(ctx, userID, path, body)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (c *client) do(ctx context.Context, userID int64, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.tokens[userID])
	return c.http.Do(req)
}

func printResults(d time.Duration, violations int) {
	total := atomic.LoadUint64(&totalAccepts)
	results := map[string]interface{}{
		"duration_sec":     d.Seconds(),
		"rounds":           rounds,
		"total_accepts":    total,
		"accepted":         atomic.LoadUint64(&accepted200),
		"aborts_conflict":  atomic.LoadUint64(&fail409),
		"errors":           atomic.LoadUint64(&failOther),
		"winner_violation": violations,
	}

	// Print JSON for the python plotter to consume
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)
}
