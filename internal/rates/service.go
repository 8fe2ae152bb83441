package rates

import (
	"context"
	"log"
	"maps"
	"time"

	"github.com/jonathan/currency-annotator/internal/settings"
	"github.com/jonathan/currency-annotator/internal/storage"
	"github.com/jonathan/currency-annotator/internal/types"
)

// DefaultTTL is how long stored rates count as fresh.
const DefaultTTL = time.Hour

// ServiceConfig configures a Service.
type ServiceConfig struct {
	TTL     time.Duration
	Verbose bool
}

// Service answers rate lookups from the store while fresh and refreshes
// them from the upstream Fetcher otherwise.
type Service struct {
	store   storage.Store
	fetcher Fetcher
	ttl     time.Duration
	verbose bool
	now     func() time.Time
}

// NewService creates a Service.
func NewService(store storage.Store, fetcher Fetcher, cfg ServiceConfig) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Service{
		store:   store,
		fetcher: fetcher,
		ttl:     cfg.TTL,
		verbose: cfg.Verbose,
		now:     time.Now,
	}
}

// GetRates returns rates for base covering symbols. A fresh stored table
// that covers every symbol is returned as is. Otherwise the rates are
// fetched, merged over the stored table when it is still fresh, and stored.
func (s *Service) GetRates(ctx context.Context, base string, symbols []string) (map[string]float64, error) {
	key := settings.RatesKey(base)
	now := s.now()

	var cached types.CachedRates
	found, err := s.store.Get(ctx, key, &cached)
	if err != nil {
		log.Printf("[RATES] Ignoring unreadable %s: %v", key, err)
		found = false
	}
	fresh := found && now.UnixMilli()-cached.FetchedAt < s.ttl.Milliseconds()

	if fresh && cached.HasAll(symbols) {
		if s.verbose {
			log.Printf("[RATES] %s served from store", key)
		}
		return maps.Clone(cached.Rates), nil
	}

	fetched, err := s.fetcher.Fetch(ctx, base, symbols)
	if err != nil {
		return nil, err
	}

	merged := fetched
	if fresh {
		merged = maps.Clone(cached.Rates)
		if merged == nil {
			merged = make(map[string]float64, len(fetched))
		}
		maps.Copy(merged, fetched)
	}

	entry := types.CachedRates{Base: base, FetchedAt: now.UnixMilli(), Rates: merged}
	if err := s.store.Set(ctx, key, entry); err != nil {
		log.Printf("[RATES] Failed to store %s: %v", key, err)
	}
	return maps.Clone(merged), nil
}
