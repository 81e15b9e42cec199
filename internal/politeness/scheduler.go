// Package politeness enforces the per-domain crawl-delay invariant: no
// two requests to the same domain are issued closer together than that
// domain's configured crawl delay, regardless of how many workers run
// concurrently. Distinct domains never block each other here; cross-domain
// concurrency is bounded only by the worker pool.
package politeness

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Scheduler hands out per-domain permits. One permit exists per domain, so
// requests to a domain are serialized and spaced by its crawl delay.
type Scheduler struct {
	mu      sync.Mutex
	domains map[string]*domainEntry
}

type domainEntry struct {
	permit      chan struct{}
	mu          sync.Mutex
	lastRelease time.Time
}

// NewScheduler creates an empty politeness scheduler. Domain records are
// created lazily on first Acquire.
func NewScheduler() *Scheduler {
	return &Scheduler{domains: make(map[string]*domainEntry)}
}

// Acquire blocks until the domain's permit is free and at least delay has
// elapsed since the last completed request to it, then returns holding the
// permit. Context cancellation releases any partial acquisition.
func (s *Scheduler) Acquire(ctx context.Context, domain string, delay time.Duration) error {
	entry := s.entry(domain)

	select {
	case entry.permit <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	entry.mu.Lock()
	last := entry.lastRelease
	entry.mu.Unlock()

	if !last.IsZero() {
		if wait := delay - time.Since(last); wait > 0 {
			log.Debug().
				Str("domain", domain).
				Dur("wait", wait).
				Msg("Waiting for crawl delay")

			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				<-entry.permit
				return ctx.Err()
			}
		}
	}
	return nil
}

// Release records the request's completion time and frees the domain's
// permit. It must be called exactly once per successful Acquire, whatever
// the request's outcome.
func (s *Scheduler) Release(domain string) {
	entry := s.entry(domain)

	entry.mu.Lock()
	entry.lastRelease = time.Now()
	entry.mu.Unlock()

	select {
	case <-entry.permit:
	default:
		// Release without a held permit is a caller bug; don't deadlock.
		log.Warn().Str("domain", domain).Msg("Release called without a held permit")
	}
}

// LastRelease returns when the domain's last request completed.
func (s *Scheduler) LastRelease(domain string) time.Time {
	entry := s.entry(domain)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.lastRelease
}

func (s *Scheduler) entry(domain string) *domainEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.domains[domain]
	if !exists {
		entry = &domainEntry{permit: make(chan struct{}, 1)}
		s.domains[domain] = entry
	}
	return entry
}

// CleanupInactive drops domain records idle for longer than maxIdle and
// returns how many were removed.
func (s *Scheduler) CleanupInactive(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleaned := 0
	for domain, entry := range s.domains {
		entry.mu.Lock()
		idle := time.Since(entry.lastRelease)
		held := len(entry.permit) > 0
		entry.mu.Unlock()

		if !held && idle > maxIdle {
			delete(s.domains, domain)
			cleaned++
		}
	}
	return cleaned
}
