/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"
)

// SubmissionGuard enforces a cooldown between accepted wishes from the same
// address and name. It is advisory only: addresses can be spoofed, and a
// submitter who changes their name gets a fresh cooldown.
type SubmissionGuard struct {
	cooldown   time.Duration
	retention  time.Duration
	sweepEvery time.Duration

	mu        sync.Mutex
	entries   map[string]*guardEntry
	lastSweep time.Time
}

type guardEntry struct {
	limiter  *rate.Limiter
	accepted time.Time
}

func newSubmissionGuard(cooldown, retention time.Duration) *SubmissionGuard {
	return &SubmissionGuard{
		cooldown:   cooldown,
		retention:  retention,
		sweepEvery: max(retention/10, time.Second),
		entries:    make(map[string]*guardEntry),
	}
}

func guardKey(identity, name string) string {
	return identity + "\x00" + strings.ToLower(norm.NFKC.String(strings.TrimSpace(name)))
}

// TryAccept reports whether a wish from identity under name may be accepted
// at now, and records it if so.
func (g *SubmissionGuard) TryAccept(identity, name string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.sweepLocked(now)

	key := guardKey(identity, name)

	entry, ok := g.entries[key]
	if !ok {
		entry = &guardEntry{
			limiter: rate.NewLimiter(rate.Every(g.cooldown), 1),
		}
		g.entries[key] = entry
	}

	if !entry.limiter.AllowN(now, 1) {
		return false
	}

	entry.accepted = now

	return true
}

// sweepLocked drops entries that have not accepted anything within the
// retention window. It runs at most once per sweepEvery.
func (g *SubmissionGuard) sweepLocked(now time.Time) {
	if now.Sub(g.lastSweep) < g.sweepEvery {
		return
	}
	g.lastSweep = now

	cutoff := now.Add(-g.retention)
	for key, entry := range g.entries {
		if entry.accepted.Before(cutoff) {
			delete(g.entries, key)
		}
	}
}

// Len returns the number of tracked submitters.
func (g *SubmissionGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.entries)
}
