package resource

import (
	"context"
	"time"
)

// Sweep evicts entries that have no subscribers, no fetch in flight and have
// not been used for longer than the configured TTL. It returns how many
// entries were removed.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, e := range s.entries {
		if len(e.subs) > 0 || e.flight != nil {
			continue
		}
		if now.Sub(e.lastUsed) > s.gcTTL {
			delete(s.entries, k)
			n++
		}
	}
	if n > 0 {
		evictions.Add(float64(n))
		cacheEntries.Set(float64(len(s.entries)))
	}
	return n
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	t := time.NewTicker(s.gcInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Sweep(s.now()); n > 0 {
				s.log.Debug().Int("evicted", n).Msg("cache sweep")
			}
		}
	}
}
