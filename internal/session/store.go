package session

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/ppiankov/deepscan/internal/model"
)

// Canceler is the part of a pending analysis a session needs; *pipeline.Task satisfies it
type Canceler interface {
	Cancel()
}

// Session holds at most one in-flight analysis and the last completed report
type Session struct {
	ID string

	mu        sync.Mutex
	inflight  Canceler
	gen       uint64
	media     *model.MediaHandle
	last      *model.AnalysisReport
	updatedAt time.Time
}

// Begin registers a new in-flight analysis, cancelling the previous one.
// The returned generation must be passed to Finish.
func (s *Session) Begin(task Canceler, media model.MediaHandle) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight != nil {
		s.inflight.Cancel()
	}
	s.gen++
	s.inflight = task
	s.media = &media
	s.updatedAt = time.Now()
	return s.gen
}

// Finish stores report if gen is still current. A superseded or reset
// analysis is dropped and Finish returns false.
func (s *Session) Finish(gen uint64, report *model.AnalysisReport) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return false
	}
	s.inflight = nil
	if report != nil {
		s.last = report
	}
	s.updatedAt = time.Now()
	return true
}

// Last returns the most recent completed report
func (s *Session) Last() (*model.AnalysisReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.last != nil
}

// Media returns the handle of the most recently submitted file
func (s *Session) Media() (model.MediaHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.media == nil {
		return model.MediaHandle{}, false
	}
	return *s.media, true
}

// InFlight reports whether an analysis is pending
func (s *Session) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight != nil
}

// UpdatedAt returns the time of the last Begin or Finish
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// reset cancels the pending analysis and discards the report and handle
func (s *Session) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight != nil {
		s.inflight.Cancel()
	}
	s.gen++
	s.inflight = nil
	s.media = nil
	s.last = nil
}

// Store keeps sessions in memory with sliding TTL expiry.
// Expired or deleted sessions have their pending analysis cancelled.
type Store struct {
	cache *gocache.Cache
	mu    sync.Mutex
}

// NewStore creates a new session store
func NewStore(ttl time.Duration, cleanupInterval time.Duration) *Store {
	c := gocache.New(ttl, cleanupInterval)
	c.OnEvicted(func(_ string, v interface{}) {
		v.(*Session).reset()
	})
	return &Store{cache: c}
}

// Get returns an existing session and refreshes its TTL
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, found := s.cache.Get(id)
	if !found {
		return nil, false
	}
	s.cache.SetDefault(id, v)
	return v.(*Session), true
}

// GetOrCreate returns the session for id, creating it if needed
func (s *Store) GetOrCreate(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, found := s.cache.Get(id); found {
		s.cache.SetDefault(id, v)
		return v.(*Session)
	}

	sess := &Session{ID: id, updatedAt: time.Now()}
	s.cache.SetDefault(id, sess)
	return sess
}

// Reset cancels and discards the session. It reports whether the session existed.
func (s *Store) Reset(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.cache.Get(id); !found {
		return false
	}
	// Delete runs the eviction hook, which resets the session
	s.cache.Delete(id)
	return true
}

// Len returns the number of live sessions
func (s *Store) Len() int {
	return s.cache.ItemCount()
}

// Close cancels every pending analysis and empties the store
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.cache.Items() {
		item.Object.(*Session).reset()
	}
	s.cache.Flush()
}
