// Package settings reads and writes the user's conversion options and the
// per-site enabled flags kept in a storage.Store.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jonathan/currency-annotator/internal/schemas"
	"github.com/jonathan/currency-annotator/internal/storage"
	"github.com/jonathan/currency-annotator/internal/types"
)

// Storage keys.
const (
	OptionsKey     = "ccxOptions"
	SiteStateKey   = "ccxSiteState"
	RatesKeyPrefix = "ccxRates:"
)

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

// DefaultOptions returns the options used when none are stored.
func DefaultOptions() types.Options {
	return types.Options{Targets: []string{"USD", "EUR", "PLN"}}
}

// RatesKey returns the storage key of the cached rates for base.
func RatesKey(base string) string {
	return RatesKeyPrefix + base
}

// Settings is a typed view over a Store.
type Settings struct {
	store storage.Store
}

// New creates Settings backed by store.
func New(store storage.Store) *Settings {
	return &Settings{store: store}
}

// Store returns the underlying store.
func (s *Settings) Store() storage.Store {
	return s.store
}

// NormalizeTargets upper-cases targets, drops anything that is not a three
// letter code and removes duplicates, keeping first occurrences in order.
func NormalizeTargets(targets []string) []string {
	seen := make(map[string]bool, len(targets))
	out := make([]string, 0, len(targets))
	for _, target := range targets {
		upper := strings.ToUpper(target)
		if !currencyCode.MatchString(upper) || seen[upper] {
			continue
		}
		seen[upper] = true
		out = append(out, upper)
	}
	return out
}

// NormalizeHost trims and lower-cases host. It returns "" for a blank host.
func NormalizeHost(host string) string {
	return strings.ToLower(strings.TrimSpace(host))
}

// readRaw returns the stored JSON for key, or nil when absent.
func (s *Settings) readRaw(ctx context.Context, key string) (json.RawMessage, error) {
	var raw json.RawMessage
	ok, err := s.store.Get(ctx, key, &raw)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return raw, nil
}

// GetOptions returns the stored options, normalized. Missing, malformed or
// empty options yield DefaultOptions.
func (s *Settings) GetOptions(ctx context.Context) (types.Options, error) {
	raw, err := s.readRaw(ctx, OptionsKey)
	if err != nil {
		return DefaultOptions(), err
	}
	if raw == nil || schemas.ValidateBytes(schemas.Options, raw) != nil {
		return DefaultOptions(), nil
	}

	var stored struct {
		Targets []any `json:"targets"`
	}
	if err := json.Unmarshal(raw, &stored); err != nil {
		return DefaultOptions(), nil
	}
	targets := make([]string, 0, len(stored.Targets))
	for _, t := range stored.Targets {
		targets = append(targets, fmt.Sprint(t))
	}
	targets = NormalizeTargets(targets)
	if len(targets) == 0 {
		return DefaultOptions(), nil
	}
	return types.Options{Targets: targets}, nil
}

// SetOptions normalizes and stores opts. Options that normalize to nothing
// store the defaults instead.
func (s *Settings) SetOptions(ctx context.Context, opts types.Options) (types.Options, error) {
	next := types.Options{Targets: NormalizeTargets(opts.Targets)}
	if len(next.Targets) == 0 {
		next = DefaultOptions()
	}
	if err := s.store.Set(ctx, OptionsKey, next); err != nil {
		return next, fmt.Errorf("saving options: %w", err)
	}
	return next, nil
}

// SiteStates returns the stored per-site flags. A malformed map reads as
// empty, and entries that are not exactly true are dropped.
func (s *Settings) SiteStates(ctx context.Context) (types.SiteState, error) {
	states := types.SiteState{}
	raw, err := s.readRaw(ctx, SiteStateKey)
	if err != nil {
		return states, err
	}
	if raw == nil || schemas.ValidateBytes(schemas.SiteState, raw) != nil {
		return states, nil
	}

	var stored map[string]any
	if err := json.Unmarshal(raw, &stored); err != nil {
		return states, nil
	}
	for host, v := range stored {
		if enabled, ok := v.(bool); ok && enabled {
			states[host] = true
		}
	}
	return states, nil
}

// GetSiteEnabled reports whether annotation is enabled for host.
func (s *Settings) GetSiteEnabled(ctx context.Context, host string) (bool, error) {
	key := NormalizeHost(host)
	if key == "" {
		return false, nil
	}
	states, err := s.SiteStates(ctx)
	if err != nil {
		return false, err
	}
	return states[key], nil
}

// SetSiteEnabled enables or disables host. Disabling removes the host's
// entry. A blank host is ignored.
func (s *Settings) SetSiteEnabled(ctx context.Context, host string, enabled bool) error {
	key := NormalizeHost(host)
	if key == "" {
		return nil
	}
	states, err := s.SiteStates(ctx)
	if err != nil {
		return err
	}
	if enabled {
		states[key] = true
	} else {
		delete(states, key)
	}
	if err := s.store.Set(ctx, SiteStateKey, states); err != nil {
		return fmt.Errorf("saving site state: %w", err)
	}
	return nil
}
