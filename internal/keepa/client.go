// Package keepa is a small client for the Keepa product API, limited to the
// current-offer and catalog data the import and price refresh paths need.
package keepa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"pcbuilder/internal/metrics"
)

// MaxASINsPerRequest is the Keepa limit on ASINs per product request.
const MaxASINsPerRequest = 100

// Indexes into stats.current (Keepa csv types).
const (
	csvAmazon = 0
	csvNew    = 1
	csvUsed   = 2
	csvRating = 16
)

var (
	ErrNoAPIKey        = errors.New("keepa: API key is not configured")
	ErrTooManyASINs    = fmt.Errorf("keepa: at most %d ASINs per request", MaxASINsPerRequest)
	ErrUnexpectedCode  = errors.New("keepa: unexpected response status")
	ErrASINRequired    = errors.New("keepa: ASIN is required")
	ErrProductNotFound = errors.New("keepa: product not found")
)

// Quote is the current offer data of one product.
type Quote struct {
	ASIN   string
	Price  decimal.NullDecimal // invalid when there is no current offer
	Rating *float64            // nil when unrated
}

// Listing is the catalog data of one product.
type Listing struct {
	ASIN         string
	Title        string
	Quote        Quote
	CategoryIDs  []int64 // leaf first
	RootCategory int64
	CategoryName string // name of the leaf of the category tree
	ProductGroup string
}

// Category returns the Keepa category the product belongs to. Products without
// a positive Keepa category id get a virtual category named after their product
// group, with a stable negative id derived from the name.
func (l *Listing) Category() (keepaID int64, name string) {
	ids := l.CategoryIDs
	if len(ids) == 0 && l.RootCategory > 0 {
		ids = []int64{l.RootCategory}
	}
	if len(ids) > 0 && ids[0] > 0 {
		name = l.CategoryName
		if name == "" {
			name = fmt.Sprintf("Keepa #%d", ids[0])
		}
		return ids[0], name
	}

	name = l.ProductGroup
	if name == "" {
		name = "Miscellaneous"
	}
	return -int64(crc32.ChecksumIEEE([]byte(name))), name
}

// Config configures a Client.
type Config struct {
	APIKey            string
	BaseURL           string
	Domain            int
	Timeout           time.Duration
	RequestsPerMinute int
}

// Client queries Keepa with request pacing and a circuit breaker.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[*productResponse]
}

// NewClient creates a Client. A zero RequestsPerMinute disables pacing.
func NewClient(cfg Config) *Client {
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}
	metrics.KeepaCircuitState.Set(0)

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		cb: gobreaker.NewCircuitBreaker[*productResponse](gobreaker.Settings{
			Name:        "keepa-api",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("[CIRCUIT BREAKER] State transition")
				metrics.KeepaCircuitState.Set(stateToFloat(to))
			},
		}),
	}
}

// Lookup fetches current quotes for up to MaxASINsPerRequest ASINs.
// ASINs Keepa returns without current stats are absent from the result.
func (c *Client) Lookup(ctx context.Context, asins []string) (map[string]Quote, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if len(asins) == 0 {
		return map[string]Quote{}, nil
	}
	if len(asins) > MaxASINsPerRequest {
		return nil, ErrTooManyASINs
	}

	payload, err := c.query(ctx, asins)
	if err != nil {
		return nil, err
	}
	quotes := make(map[string]Quote, len(payload.Products))
	for _, p := range payload.Products {
		if p.Stats == nil || len(p.Stats.Current) == 0 {
			continue
		}
		quotes[p.ASIN] = quoteFromCurrent(p.ASIN, p.Stats.Current)
	}
	return quotes, nil
}

// Product fetches the catalog data of a single ASIN.
func (c *Client) Product(ctx context.Context, asin string) (*Listing, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	asin = strings.TrimSpace(asin)
	if asin == "" {
		return nil, ErrASINRequired
	}

	payload, err := c.query(ctx, []string{asin})
	if err != nil {
		return nil, err
	}
	for _, p := range payload.Products {
		if !strings.EqualFold(p.ASIN, asin) {
			continue
		}
		listing := &Listing{
			ASIN:         asin,
			Title:        p.Title,
			Quote:        Quote{ASIN: asin},
			CategoryIDs:  p.Categories,
			RootCategory: p.RootCategory,
			ProductGroup: p.ProductGroup,
		}
		if n := len(p.CategoryTree); n > 0 {
			listing.CategoryName = p.CategoryTree[n-1].Name
		}
		if p.Stats != nil && len(p.Stats.Current) > 0 {
			listing.Quote = quoteFromCurrent(asin, p.Stats.Current)
		}
		return listing, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrProductNotFound, asin)
}

// query paces the request and runs it through the circuit breaker.
func (c *Client) query(ctx context.Context, asins []string) (*productResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("keepa: waiting for rate limiter: %w", err)
	}

	payload, err := c.cb.Execute(func() (*productResponse, error) {
		return c.fetch(ctx, asins)
	})
	switch {
	case err == nil:
		metrics.KeepaRequests.WithLabelValues("success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.KeepaRequests.WithLabelValues("rejected").Inc()
	default:
		metrics.KeepaRequests.WithLabelValues("failure").Inc()
	}
	return payload, err
}

type productResponse struct {
	Products []struct {
		ASIN         string  `json:"asin"`
		Title        string  `json:"title"`
		Categories   []int64 `json:"categories"`
		RootCategory int64   `json:"rootCategory"`
		CategoryTree []struct {
			CatID int64  `json:"catId"`
			Name  string `json:"name"`
		} `json:"categoryTree"`
		ProductGroup string `json:"productGroup"`
		Stats        *struct {
			Current []int64 `json:"current"`
		} `json:"stats"`
	} `json:"products"`
	TokensLeft int `json:"tokensLeft"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) fetch(ctx context.Context, asins []string) (*productResponse, error) {
	q := url.Values{}
	q.Set("key", c.cfg.APIKey)
	q.Set("domain", strconv.Itoa(c.cfg.Domain))
	q.Set("asin", strings.Join(asins, ","))
	q.Set("stats", "1")
	q.Set("history", "0")
	q.Set("rating", "1")
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/product?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("keepa: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("keepa: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %d: %s", ErrUnexpectedCode, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload productResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("keepa: decode response: %w", err)
	}
	if payload.Error != nil {
		return nil, fmt.Errorf("keepa: %s: %s", payload.Error.Type, payload.Error.Message)
	}
	log.Debug().Int("products", len(payload.Products)).Int("tokens_left", payload.TokensLeft).Msg("keepa product query")
	return &payload, nil
}

// quoteFromCurrent prefers the Amazon offer, then new, then used. Prices are in
// cents; the rating is in tenths of a star. -1 marks missing data.
func quoteFromCurrent(asin string, current []int64) Quote {
	quote := Quote{ASIN: asin}
	for _, idx := range []int{csvAmazon, csvNew, csvUsed} {
		if idx < len(current) && current[idx] > 0 {
			quote.Price = decimal.NewNullDecimal(decimal.New(current[idx], -2))
			break
		}
	}
	if csvRating < len(current) && current[csvRating] > 0 {
		rating := math.Round(float64(current[csvRating])) / 10
		quote.Rating = &rating
	}
	return quote
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
