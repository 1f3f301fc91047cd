// Package lock provides sentinel-file mutual exclusion between independent
// processes sharing one board directory. Each lock scope maps to a single
// marker file carrying the holder's identity and acquisition time; a lock
// older than the staleness TTL is presumed abandoned by a crashed holder
// and may be broken by the next acquirer.
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// ErrLockTimeout is returned when a lock could not be acquired within
// the caller's timeout.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Defaults applied when the corresponding Manager field is zero.
const (
	DefaultTTL        = 5 * time.Minute
	DefaultRetryDelay = 25 * time.Millisecond
	maxRetryDelay     = 500 * time.Millisecond
)

// sentinel is the JSON content of a lock marker file.
type sentinel struct {
	HolderID   string    `json:"holder_id"`
	TokenID    string    `json:"token_id"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Token is a held lock. It must be passed back to Release; releasing a
// token more than once is a no-op.
type Token struct {
	Scope      string
	HolderID   string
	AcquiredAt time.Time

	tokenID string
	path    string
}

// Manager acquires and releases sentinel locks inside one directory.
type Manager struct {
	dir        string
	holderID   string
	ttl        time.Duration
	retryDelay time.Duration
	logger     *log.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the staleness TTL past which a lock may be broken.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

// WithRetryDelay sets the initial delay between acquisition attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(m *Manager) { m.retryDelay = d }
}

// WithLogger sets the logger used to report stale-lock breaks.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a Manager writing lock sentinels into dir on behalf
// of holderID. An empty holderID gets a generated identity.
func NewManager(dir, holderID string, opts ...Option) *Manager {
	if holderID == "" {
		holderID = "holder-" + uuid.NewString()
	}
	m := &Manager{
		dir:        dir,
		holderID:   holderID,
		ttl:        DefaultTTL,
		retryDelay: DefaultRetryDelay,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// HolderID returns the identity written into acquired sentinels.
func (m *Manager) HolderID() string {
	return m.holderID
}

func (m *Manager) lockPath(scope string) string {
	return filepath.Join(m.dir, scope+".lock")
}

// Acquire obtains the exclusive lock for scope, retrying with backoff
// until timeout elapses. A sentinel older than the TTL is broken and the
// break is logged. Acquire never blocks past the timeout: it fails with
// ErrLockTimeout instead.
func (m *Manager) Acquire(scope string, timeout time.Duration) (*Token, error) {
	if err := os.MkdirAll(m.dir, 0o750); err != nil {
		return nil, fmt.Errorf("acquiring lock %s: creating lock directory: %w", scope, err)
	}

	deadline := time.Now().Add(timeout)
	delay := m.retryDelay
	path := m.lockPath(scope)

	for {
		tok, err := m.tryAcquire(scope, path)
		if err != nil {
			return nil, err
		}
		if tok != nil {
			return tok, nil
		}

		m.breakIfStale(scope, path)

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("acquiring lock %s: %w", scope, ErrLockTimeout)
		}
		time.Sleep(delay)
		if delay *= 2; delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

// tryAcquire makes a single O_EXCL attempt. A nil token with nil error
// means the lock is currently held by someone else.
func (m *Manager) tryAcquire(scope, path string) (*Token, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("acquiring lock %s: creating sentinel: %w", scope, err)
	}

	s := sentinel{
		HolderID:   m.holderID,
		TokenID:    uuid.NewString(),
		AcquiredAt: time.Now().UTC(),
	}
	data, err := json.Marshal(s)
	if err == nil {
		_, err = f.Write(data)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("acquiring lock %s: writing sentinel: %w", scope, err)
	}

	return &Token{
		Scope:      scope,
		HolderID:   s.HolderID,
		AcquiredAt: s.AcquiredAt,
		tokenID:    s.TokenID,
		path:       path,
	}, nil
}

// breakIfStale removes the sentinel at path if its acquisition time is
// older than the TTL. The removal goes through a rename so that among
// concurrent breakers exactly one wins; the loser simply retries.
func (m *Manager) breakIfStale(scope, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return // already gone, or transient; the retry loop handles it
	}

	var s sentinel
	if err := json.Unmarshal(data, &s); err != nil {
		// An unreadable sentinel cannot prove freshness. Treat it as
		// abandoned after the TTL based on file modification time.
		info, statErr := os.Stat(path)
		if statErr != nil || time.Since(info.ModTime()) < m.ttl {
			return
		}
		s = sentinel{HolderID: "unknown", AcquiredAt: info.ModTime()}
	} else if time.Since(s.AcquiredAt) < m.ttl {
		return
	}

	stale := path + ".stale"
	if err := os.Rename(path, stale); err != nil {
		return // another acquirer broke it first
	}
	_ = os.Remove(stale)

	m.logger.Warn("broke stale lock",
		"scope", scope,
		"holder", s.HolderID,
		"age", time.Since(s.AcquiredAt).Round(time.Second).String(),
	)
}

// Release gives up a held lock. It is idempotent: releasing an already
// released or already broken lock returns nil. The sentinel is only
// removed while it still belongs to this token, so releasing after a
// staleness break never destroys another holder's lock.
func (m *Manager) Release(tok *Token) error {
	if tok == nil || tok.path == "" {
		return nil
	}

	data, err := os.ReadFile(tok.path)
	if err != nil {
		if os.IsNotExist(err) {
			tok.path = ""
			return nil
		}
		return fmt.Errorf("releasing lock %s: reading sentinel: %w", tok.Scope, err)
	}

	var s sentinel
	if err := json.Unmarshal(data, &s); err == nil && s.TokenID != tok.tokenID {
		// The lock was broken and re-acquired by someone else.
		tok.path = ""
		return nil
	}

	if err := os.Remove(tok.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("releasing lock %s: %w", tok.Scope, err)
	}
	tok.path = ""
	return nil
}
