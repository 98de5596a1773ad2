// Package credentials persists the access/refresh token pair issued by the
// PipeWatch API. A pair is only ever written as a unit; no backend validates
// token contents — structural checks belong to the token package.
package credentials

import "sync"

// Pair is an access token and the refresh token it was issued with.
type Pair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// IsZero reports whether the pair carries no credentials.
func (p Pair) IsZero() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// Store is durable key-value persistence for a single credential pair.
type Store interface {
	// Save replaces the stored pair atomically.
	Save(pair Pair) error
	// Load returns the stored pair; ok is false when nothing is stored.
	Load() (pair Pair, ok bool, err error)
	// Clear removes the stored pair. Load after Clear reports ok=false.
	Clear() error
}

// MemoryStore keeps the pair in process memory only, the equivalent of a
// session-scoped browser storage. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	pair    Pair
	present bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Save(pair Pair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = pair
	s.present = true
	return nil
}

func (s *MemoryStore) Load() (Pair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pair, s.present, nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = Pair{}
	s.present = false
	return nil
}

// Selector is a Store that delegates to a switchable backend. The session
// coordinator points it at the session-scoped or persistent backend when the
// user chooses "remember me"; the HTTP client reads through it so refreshed
// pairs always land in the active backend.
type Selector struct {
	mu     sync.Mutex
	active Store
}

// NewSelector returns a selector delegating to the given backend.
func NewSelector(initial Store) *Selector {
	return &Selector{active: initial}
}

// Use switches the active backend.
func (s *Selector) Use(backend Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = backend
}

func (s *Selector) backend() Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Selector) Save(pair Pair) error { return s.backend().Save(pair) }

func (s *Selector) Load() (Pair, bool, error) { return s.backend().Load() }

func (s *Selector) Clear() error { return s.backend().Clear() }
