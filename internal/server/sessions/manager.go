// Package sessions binds opaque session ids to authenticated users.
//
// The manager knows nothing about transports: HTTP keeps the id in a cookie,
// gRPC receives it inside a signed access token.
package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// IDBytes is the amount of randomness in a session id. Ids are hex encoded.
const IDBytes = 32

// Manager keeps sessions in memory. Resolve never takes a lock; Create and
// the destroy operations are serialized by mu.
type Manager struct {
	ttl time.Duration
	now func() time.Time
	log logging.Logger

	mu       sync.Mutex
	sessions sync.Map // id -> *models.Session
}

type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager builds a Manager. ttl <= 0 means sessions never expire.
func NewManager(ttl time.Duration, log logging.Logger, opts ...Option) *Manager {
	m := &Manager{
		ttl: ttl,
		now: time.Now,
		log: log.With("module", "sessions"),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Create starts a session for the user.
func (m *Manager) Create(userID int64, userName string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s := &models.Session{
		UserID:    userID,
		UserName:  userName,
		CreatedAt: now,
	}
	if m.ttl > 0 {
		s.ExpiresAt = now.Add(m.ttl)
	}

	for {
		id, err := common.MakeRandHexString(IDBytes)
		if err != nil {
			return nil, fmt.Errorf("session id: %w", err)
		}
		s.ID = id
		if _, taken := m.sessions.LoadOrStore(id, s); !taken {
			break
		}
	}

	c := *s
	return &c, nil
}

// Resolve returns the live session for id. Unknown, malformed and expired
// ids all yield common.ErrInvalidSession. An expired session is removed.
func (m *Manager) Resolve(id string) (*models.Session, error) {
	if !wellFormed(id) {
		return nil, common.ErrInvalidSession
	}

	v, ok := m.sessions.Load(id)
	if !ok {
		return nil, common.ErrInvalidSession
	}
	s := v.(*models.Session)

	if s.Expired(m.now()) {
		m.mu.Lock()
		m.sessions.CompareAndDelete(id, s)
		m.mu.Unlock()
		return nil, common.ErrInvalidSession
	}

	c := *s
	return &c, nil
}

// Destroy ends the session. Unknown ids are ignored.
func (m *Manager) Destroy(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions.Delete(id)
}

// DestroyUser ends every session of the user and returns how many there were.
func (m *Manager) DestroyUser(userID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	m.sessions.Range(func(k, v any) bool {
		if v.(*models.Session).UserID == userID {
			m.sessions.Delete(k)
			n++
		}
		return true
	})
	return n
}

// Sweep removes sessions expired at now and returns how many it removed.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	m.sessions.Range(func(k, v any) bool {
		if v.(*models.Session).Expired(now) {
			m.sessions.Delete(k)
			n++
		}
		return true
	})
	return n
}

// Len returns the number of stored sessions, expired ones included.
func (m *Manager) Len() int {
	n := 0
	m.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if m.ttl <= 0 || interval <= 0 {
		<-ctx.Done()
		return
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(m.now()); n > 0 {
				m.log.Debug(ctx, "expired sessions removed", "count", n)
			}
		}
	}
}

func wellFormed(id string) bool {
	if len(id) != 2*IDBytes {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
