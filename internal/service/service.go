package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/menu/internal/cache"
	"storefront/menu/internal/client"
	"storefront/menu/internal/domain"
	"storefront/menu/internal/menu"
	"storefront/menu/internal/queue"
	"storefront/menu/internal/repository"
	"storefront/menu/internal/state"

	log "github.com/sirupsen/logrus"
)

// Service is the one place menus are derived from: a single cached fetch of
// the subcategory listing shared by every view.
type Service struct {
	client       client.StorefrontClient
	cache        *cache.Cache
	queue        queue.Queue
	stateManager state.Manager
	repository   repository.SnapshotRepository
	layout       menu.Layout
	minIdleTime  time.Duration
}

type Options struct {
	Queue        queue.Queue
	StateManager state.Manager
	Repository   repository.SnapshotRepository
	Layout       menu.Layout
	MinIdleTime  time.Duration
}

func NewService(client client.StorefrontClient, cache *cache.Cache, opts Options) *Service {
	if opts.Repository == nil {
		opts.Repository = repository.NewNoopRepository()
	}
	if opts.MinIdleTime <= 0 {
		opts.MinIdleTime = 2 * time.Minute
	}

	return &Service{
		client:       client,
		cache:        cache,
		queue:        opts.Queue,
		stateManager: opts.StateManager,
		repository:   opts.Repository,
		layout:       opts.Layout.Normalize(),
		minIdleTime:  opts.MinIdleTime,
	}
}

// Layout fills the unset fields of l with the configured layout
func (s *Service) Layout(l menu.Layout) menu.Layout {
	if l.ChunkSize <= 0 {
		l.ChunkSize = s.layout.ChunkSize
	}
	if l.MaxCols <= 0 {
		l.MaxCols = s.layout.MaxCols
	}
	return l
}

// Subcategories returns the shared subcategory listing.
// Backend failures are logged and yield an empty listing.
func (s *Service) Subcategories(ctx context.Context) []domain.Subcategory {
	records, err := s.loadSubcategories(ctx)
	if err != nil {
		log.Errorf("❌ Failed to load subcategories, serving an empty menu: %v", err)
		return []domain.Subcategory{}
	}
	return records
}

func (s *Service) loadSubcategories(ctx context.Context) ([]domain.Subcategory, error) {
	body, err := s.cache.Fetch(ctx, domain.ResourceSubcategories, func(ctx context.Context) ([]byte, error) {
		records, err := s.client.ListSubcategories(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(records)
	})
	if err != nil {
		return nil, err
	}

	return domain.DecodeSubcategories(body)
}

// Menus groups the shared listing by parent category
func (s *Service) Menus(ctx context.Context) *domain.GroupedMap {
	return menu.Group(s.Subcategories(ctx))
}

// Menu returns the columns of one parent; an unknown parent has none
func (s *Service) Menu(ctx context.Context, parent string, layout menu.Layout) domain.ColumnSet {
	recs, _ := s.Menus(ctx).Get(parent)
	return menu.Columnize(recs, s.Layout(layout))
}

// Columns returns every parent with its columns, in first-seen order
func (s *Service) Columns(ctx context.Context, layout menu.Layout) []domain.ParentColumns {
	return menu.BuildFromGroups(s.Menus(ctx), s.Layout(layout))
}

// Refresh drops the cached listing, reloads it and records a snapshot.
// Unlike the read path it reports backend failures.
func (s *Service) Refresh(ctx context.Context) error {
	if err := s.cache.Invalidate(ctx, domain.ResourceSubcategories); err != nil {
		log.Warnf("⚠️ %v", err)
	}

	records, err := s.loadSubcategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh subcategories: %w", err)
	}

	layout := menu.Build(records, s.layout)
	snapshot := repository.NewSnapshot(domain.ResourceSubcategories, len(records), layout)
	if err := s.repository.SaveSnapshot(ctx, snapshot); err != nil {
		log.Errorf("❌ Failed to save menu snapshot %s: %v", snapshot.ID, err)
	}

	if s.stateManager != nil {
		if err := s.stateManager.MarkRefreshed(ctx, domain.ResourceSubcategories, snapshot.TakenAt); err != nil {
			log.Errorf("❌ Failed to record refresh time: %v", err)
		}
	}

	log.Infof("✅ Refreshed %s: %d records, %d parents", domain.ResourceSubcategories, len(records), len(layout))
	return nil
}

// LastRefresh reports when the listing was last rebuilt by a refresh
func (s *Service) LastRefresh(ctx context.Context) (time.Time, error) {
	if s.stateManager == nil {
		return time.Time{}, nil
	}
	return s.stateManager.LastRefresh(ctx, domain.ResourceSubcategories)
}

// LatestSnapshot returns the last stored snapshot of the listing
func (s *Service) LatestSnapshot(ctx context.Context) (*domain.MenuSnapshot, error) {
	return s.repository.LatestSnapshot(ctx, domain.ResourceSubcategories)
}
