package services

import (
	"sync"
	"time"

	"tempvoice/internal/core/domain"
	"tempvoice/pkg/keylock"
)

// DefaultCooldownWindow is the minimum time between two room creations.
const DefaultCooldownWindow = 5 * time.Second

// Decision is the answer of the cooldown gate.
type Decision struct {
	Allowed bool
	RetryAt time.Time
}

// CooldownService tracks the last gated action of every user.
type CooldownService struct {
	window time.Duration
	now    func() time.Time

	mu   sync.RWMutex
	last map[domain.MemberID]time.Time

	users *keylock.KeyLock[domain.MemberID]
}

// NewCooldownService creates a gate with the given window. A nil clock
// defaults to time.Now.
func NewCooldownService(window time.Duration, now func() time.Time) *CooldownService {
	if now == nil {
		now = time.Now
	}
	return &CooldownService{
		window: window,
		now:    now,
		last:   make(map[domain.MemberID]time.Time),
		users:  keylock.New[domain.MemberID](),
	}
}

// Window returns the configured cooldown window.
func (c *CooldownService) Window() time.Duration {
	return c.window
}

// CanAct reports whether user may act now and, if not, when they may.
func (c *CooldownService) CanAct(user domain.MemberID) Decision {
	c.mu.RLock()
	last, seen := c.last[user]
	c.mu.RUnlock()

	if !seen {
		return Decision{Allowed: true}
	}

	if c.now().Sub(last) >= c.window {
		return Decision{Allowed: true}
	}

	return Decision{Allowed: false, RetryAt: last.Add(c.window)}
}

// Record stores now as the user's last action.
func (c *CooldownService) Record(user domain.MemberID) {
	c.RecordAt(user, c.now())
}

// RecordAt overwrites the user's last action with at.
func (c *CooldownService) RecordAt(user domain.MemberID, at time.Time) {
	c.mu.Lock()
	c.last[user] = at
	c.mu.Unlock()
}

// Acquire holds the user's gate until release is called and returns the
// decision taken under it. Callers run the gated action and Record before
// releasing, so two concurrent attempts by one user cannot both pass.
func (c *CooldownService) Acquire(user domain.MemberID) (Decision, func()) {
	release := c.users.Lock(user)
	return c.CanAct(user), release
}
