package throttle

import (
	"fmt"
	"sync"
	"time"
)

// Gate enforces a per-user, per-action cooldown. A user may run the
// same action again only after the cooldown has elapsed; different
// actions and different users never block each other.
type Gate struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     map[string]time.Time
	now      func() time.Time
}

func NewGate(cooldown time.Duration) *Gate {
	if cooldown < 0 {
		cooldown = 0
	}
	return &Gate{
		cooldown: cooldown,
		last:     make(map[string]time.Time),
		now:      time.Now,
	}
}

// Allow reports whether userID may run action now. On denial the
// remaining wait is returned; on success the attempt is recorded.
func (g *Gate) Allow(userID, action string) (bool, time.Duration) {
	if g == nil || g.cooldown == 0 {
		return true, 0
	}
	key := fmt.Sprintf("%s\x00%s", userID, action)

	g.mu.Lock()
	defer g.mu.Unlock()

	current := g.now()
	if at, ok := g.last[key]; ok {
		if wait := g.cooldown - current.Sub(at); wait > 0 {
			return false, wait
		}
	}
	g.last[key] = current
	return true, 0
}
