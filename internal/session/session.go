// Package session holds the dashboard's transient per-session state: the
// latest fetched snapshots, keyed by the active campaign. Nothing here
// survives a restart.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ostrauk/mailboard/internal/analytics"
)

// Snapshot wraps a fetched result with identity and age
type Snapshot[T any] struct {
	ID        string    `json:"snapshot_id"`
	FetchedAt time.Time `json:"fetched_at"`
	Data      T         `json:"data"`
}

func newSnapshot[T any](data T) *Snapshot[T] {
	return &Snapshot[T]{
		ID:        uuid.New().String(),
		FetchedAt: time.Now().UTC(),
		Data:      data,
	}
}

// Store is the session cache. Overview and per-campaign snapshots are
// populated once per user action and replaced on explicit refresh; selecting
// a different campaign drops the previous campaign's snapshots.
type Store struct {
	mu sync.Mutex

	selected    string
	overview    *Snapshot[[]analytics.OverviewRow]
	detail      *Snapshot[*analytics.CampaignDetail]
	subscribers *Snapshot[[]analytics.SubscriberRow]
}

// NewStore creates an empty session store
func NewStore() *Store {
	return &Store{}
}

// Overview returns the cached overview snapshot, if any
func (s *Store) Overview() (*Snapshot[[]analytics.OverviewRow], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overview, s.overview != nil
}

// SetOverview replaces the overview snapshot
func (s *Store) SetOverview(rows []analytics.OverviewRow) *Snapshot[[]analytics.OverviewRow] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overview = newSnapshot(rows)
	return s.overview
}

// Selected returns the active campaign id
func (s *Store) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Select makes campaignID the active campaign. Switching campaigns
// invalidates the previous campaign's detail and subscriber snapshots.
func (s *Store) Select(campaignID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected != campaignID {
		s.detail = nil
		s.subscribers = nil
	}
	s.selected = campaignID
}

// Detail returns the cached detail snapshot for campaignID, if it is the
// active campaign and a snapshot exists
func (s *Store) Detail(campaignID string) (*Snapshot[*analytics.CampaignDetail], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected != campaignID || s.detail == nil {
		return nil, false
	}
	return s.detail, true
}

// SetDetail stores the detail snapshot for the active campaign
func (s *Store) SetDetail(campaignID string, d *analytics.CampaignDetail) *Snapshot[*analytics.CampaignDetail] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected != campaignID {
		s.selected = campaignID
		s.subscribers = nil
	}
	s.detail = newSnapshot(d)
	return s.detail
}

// Subscribers returns the cached subscriber snapshot for campaignID
func (s *Store) Subscribers(campaignID string) (*Snapshot[[]analytics.SubscriberRow], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected != campaignID || s.subscribers == nil {
		return nil, false
	}
	return s.subscribers, true
}

// SetSubscribers stores the subscriber snapshot for the active campaign
func (s *Store) SetSubscribers(campaignID string, rows []analytics.SubscriberRow) *Snapshot[[]analytics.SubscriberRow] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected != campaignID {
		s.selected = campaignID
		s.detail = nil
	}
	s.subscribers = newSnapshot(rows)
	return s.subscribers
}

// Invalidate drops every snapshot
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overview = nil
	s.detail = nil
	s.subscribers = nil
	s.selected = ""
}
