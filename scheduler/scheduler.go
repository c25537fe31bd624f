// Package scheduler keeps the in-memory catalogue fresh. It performs the
// initial seed load, refreshes the catalogue at the configured times of day
// with gocron and warns when the data goes stale.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/giygas/medisearch/interfaces"
	"github.com/giygas/medisearch/logging"
	"github.com/giygas/medisearch/metrics"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// DefaultRefreshTimes are the daily refresh times in gocron At format
const DefaultRefreshTimes = "06:00;18:00"

// staleAfter is the data age after which the monitor warns
const staleAfter = 25 * time.Hour

// Scheduler handles catalogue refreshes and staleness monitoring
type Scheduler struct {
	store     interfaces.CatalogDataStore
	loader    interfaces.CatalogLoader
	refreshAt string
	scheduler *gocron.Scheduler

	monitorInterval time.Duration
	stop            chan struct{}
	stopOnce        sync.Once
	monitorDone     sync.WaitGroup
}

// NewScheduler creates a scheduler refreshing store from loader at the
// semicolon separated times in refreshAt (empty means DefaultRefreshTimes)
func NewScheduler(store interfaces.CatalogDataStore, loader interfaces.CatalogLoader, refreshAt string) *Scheduler {
	if refreshAt == "" {
		refreshAt = DefaultRefreshTimes
	}
	return &Scheduler{
		store:           store,
		loader:          loader,
		refreshAt:       refreshAt,
		scheduler:       gocron.NewScheduler(time.Local),
		monitorInterval: time.Hour,
		stop:            make(chan struct{}),
	}
}

// Start loads the catalogue once, then schedules the refreshes
func (s *Scheduler) Start() error {
	// Initial load
	if err := s.updateData(context.Background()); err != nil {
		logging.Error("Failed to perform initial catalog load", "error", err)
		return fmt.Errorf("initial catalog load failed: %w", err)
	}

	_, err := s.scheduler.Every(1).Days().At(s.refreshAt).Do(func() {
		if err := s.updateData(context.Background()); err != nil {
			logging.Error("Failed to refresh catalog", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule catalog refreshes", "refresh_at", s.refreshAt, "error", err)
		return fmt.Errorf("failed to schedule refreshes: %w", err)
	}

	s.scheduler.StartAsync()
	s.startHealthMonitoring()

	return nil
}

// Stop stops the refreshes and the monitor
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.scheduler.Stop()
		close(s.stop)
	})
	s.monitorDone.Wait()
}

// updateData loads a new snapshot and swaps it in. A refresh that finds
// another one running is skipped.
func (s *Scheduler) updateData(ctx context.Context) error {
	// Prevent concurrent updates
	if !s.store.BeginUpdate() {
		logging.Info("Catalog update already in progress, skipping")
		return nil
	}
	defer s.store.EndUpdate()

	logging.Info("Starting catalog update", "at", time.Now().Format(time.RFC3339))
	start := time.Now()

	records, report, err := s.loader.LoadCatalog(ctx)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	if report != nil && len(report.DuplicateIDs) > 0 {
		logging.Warn("Duplicate record ids in seed, first record kept",
			"total", len(report.DuplicateIDs),
			"ids", report.DuplicateIDs,
		)
	}

	// Atomic swap, readers keep the previous snapshot until here
	s.store.UpdateData(records, report)
	metrics.CatalogRecords.Set(float64(len(records)))

	logging.Info("Catalog update completed", "duration", time.Since(start).String(), "record_count", len(records))
	return nil
}

// startHealthMonitoring warns when the catalogue has not been refreshed
func (s *Scheduler) startHealthMonitoring() {
	s.monitorDone.Add(1)
	go func() {
		defer s.monitorDone.Done()
		ticker := time.NewTicker(s.monitorInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.checkStaleness()
			}
		}
	}()
}

// checkStaleness reports whether the data is older than staleAfter
func (s *Scheduler) checkStaleness() bool {
	lastUpdate := s.store.GetLastUpdated()
	if time.Since(lastUpdate) > staleAfter {
		logging.Warn("Catalog hasn't been updated in over 25 hours", "last_update", lastUpdate)
		return true
	}
	return false
}
