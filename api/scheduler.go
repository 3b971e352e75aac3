/*
scheduler.go - Background currency-rate refresher

PURPOSE:
  Keeps a read-only snapshot of the currency rate table for handlers.
  Every conversion receives the snapshot as an explicit argument; there is
  no process-wide rate cache inside the engine. The refresher swaps the
  whole snapshot atomically so readers never see a half-updated table.

DESIGN:
  - Runs a background goroutine with a configurable reload interval
  - Reloads immediately on start
  - Handlers call Refresh after writing rates so changes are visible at once
  - A failed reload keeps the previous snapshot and logs the error

CONFIGURATION:
  - Interval: How often to reload (default: 5 minutes)
  - Enabled:  Whether the background loop runs (default: true)

USAGE:
  refresher := NewRateRefresher(store)
  refresher.Start()
  // ... later
  refresher.Stop()

SEE ALSO:
  - handlers.go: Rate endpoints call Refresh
  - generic/currency.go: Rates, Convert
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/engagement-engine/generic"
)

// RateRefresher owns the current rate snapshot.
type RateRefresher struct {
	Store    generic.Store
	Interval time.Duration
	Enabled  bool

	rates    generic.Rates
	loadedAt time.Time
	ratesMu  sync.RWMutex

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRateRefresher creates a refresher holding a USD-only snapshot until
// the first load.
func NewRateRefresher(store generic.Store) *RateRefresher {
	return &RateRefresher{
		Store:    store,
		Interval: 5 * time.Minute,
		Enabled:  true,
		rates:    generic.Rates{generic.USD: decimal.NewFromInt(1)},
		stop:     make(chan struct{}),
	}
}

// Rates returns the current snapshot. Callers must treat it as read-only.
func (rr *RateRefresher) Rates() generic.Rates {
	rr.ratesMu.RLock()
	defer rr.ratesMu.RUnlock()
	return rr.rates
}

// LoadedAt returns when the snapshot was last replaced (zero if never).
func (rr *RateRefresher) LoadedAt() time.Time {
	rr.ratesMu.RLock()
	defer rr.ratesMu.RUnlock()
	return rr.loadedAt
}

// Refresh reloads the snapshot from the store.
func (rr *RateRefresher) Refresh(ctx context.Context) error {
	rates, err := generic.LoadRates(ctx, rr.Store)
	if err != nil {
		return err
	}

	rr.ratesMu.Lock()
	rr.rates = rates
	rr.loadedAt = time.Now()
	rr.ratesMu.Unlock()
	return nil
}

// Start begins the refresher.
func (rr *RateRefresher) Start() {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if !rr.Enabled || rr.Interval <= 0 {
		log.Println("[RateRefresher] Disabled, not starting")
		return
	}

	rr.ticker = time.NewTicker(rr.Interval)
	rr.wg.Add(1)

	go rr.run()

	log.Printf("[RateRefresher] Started with interval: %v", rr.Interval)
}

// Stop stops the refresher.
func (rr *RateRefresher) Stop() {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if rr.ticker != nil {
		rr.ticker.Stop()
		close(rr.stop)
		rr.wg.Wait()
		rr.ticker = nil
		log.Println("[RateRefresher] Stopped")
	}
}

func (rr *RateRefresher) run() {
	defer rr.wg.Done()

	// Load immediately on start
	rr.reload()

	for {
		select {
		case <-rr.ticker.C:
			rr.reload()
		case <-rr.stop:
			return
		}
	}
}

func (rr *RateRefresher) reload() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := rr.Refresh(ctx); err != nil {
		log.Printf("[RateRefresher] Error reloading rates, keeping previous snapshot: %v", err)
		return
	}
	log.Printf("[RateRefresher] Loaded %d rates", len(rr.Rates()))
}
