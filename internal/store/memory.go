package store

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ParamLatLng is the query parameter holding the current location key.
const ParamLatLng = "latLng"

var (
	// ErrNotFound is returned when no navigation history is available.
	ErrNotFound = errors.New("no navigation history")
)

// Source tells who changed the URL.
type Source string

const (
	SourceWrite    Source = "write"
	SourceNavigate Source = "navigate"
)

// Entry is one recorded URL change.
type Entry struct {
	Query     string    `json:"query"`
	LatLng    string    `json:"latLng"`
	Source    Source    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// URLStore models the navigable URL as the persisted store of the current
// location. An absent or empty latLng parameter means no location.
type URLStore struct {
	// notifyMu serializes change delivery so watchers observe changes in
	// the order they were applied.
	notifyMu sync.Mutex

	mu       sync.RWMutex
	query    url.Values
	watchers map[int]func(string)
	nextID   int

	// retention configuration
	history    []Entry
	maxHistory int           // max number of entries kept
	maxAge     time.Duration // optional max age for entries
}

// NewURLStore creates a store from an initial raw query string.
// If maxHistory is <= 0, it is treated as unlimited.
func NewURLStore(rawQuery string, maxHistory int, maxAge time.Duration) (*URLStore, error) {
	q, err := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))
	if err != nil {
		return nil, fmt.Errorf("invalid initial query %q: %w", rawQuery, err)
	}
	return &URLStore{
		query:      q,
		watchers:   make(map[int]func(string)),
		maxHistory: maxHistory,
		maxAge:     maxAge,
	}, nil
}

// Current returns the current location key, or "" when none is set.
func (s *URLStore) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query.Get(ParamLatLng)
}

// Query returns the current encoded query string.
func (s *URLStore) Query() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query.Encode()
}

// Write sets the location key, removing the parameter when key is empty.
// Other query parameters are preserved.
func (s *URLStore) Write(key string) {
	s.apply(SourceWrite, func(q url.Values) url.Values {
		next := cloneValues(q)
		if key == "" {
			next.Del(ParamLatLng)
		} else {
			next.Set(ParamLatLng, key)
		}
		return next
	})
}

// Navigate replaces the whole query, as a direct navigation would.
func (s *URLStore) Navigate(rawQuery string) error {
	q, err := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))
	if err != nil {
		return fmt.Errorf("invalid query %q: %w", rawQuery, err)
	}
	s.apply(SourceNavigate, func(url.Values) url.Values { return q })
	return nil
}

// Watch registers fn to be called with the new location key every time it
// changes. fn must not call back into the store. The returned func removes it.
func (s *URLStore) Watch(fn func(key string)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

func (s *URLStore) apply(source Source, update func(url.Values) url.Values) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	prev := s.query.Get(ParamLatLng)
	s.query = update(s.query)
	key := s.query.Get(ParamLatLng)

	s.history = append(s.history, Entry{
		Query:     s.query.Encode(),
		LatLng:    key,
		Source:    source,
		Timestamp: time.Now().UTC(),
	})
	// Enforce retention by count.
	if s.maxHistory > 0 && len(s.history) > s.maxHistory {
		over := len(s.history) - s.maxHistory
		s.history = s.history[over:]
	}

	var watchers []func(string)
	if key != prev {
		watchers = make([]func(string), 0, len(s.watchers))
		for _, fn := range s.watchers {
			watchers = append(watchers, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range watchers {
		fn(key)
	}
}

// History returns the recorded URL changes, oldest first.
func (s *URLStore) History() ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.history) == 0 {
		return nil, ErrNotFound
	}
	out := make([]Entry, len(s.history))
	copy(out, s.history)
	return out, nil
}

// Prune drops history entries older than the configured max age relative to
// now and returns how many were removed.
func (s *URLStore) Prune(now time.Time) int {
	if s.maxAge <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-s.maxAge)
	i := 0
	for ; i < len(s.history); i++ {
		if !s.history[i].Timestamp.Before(cutoff) {
			break
		}
	}
	s.history = s.history[i:]
	return i
}

func cloneValues(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}
