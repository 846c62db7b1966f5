package ratelimit

import (
	"sort"
	"sync"
)

// IPLists holds the allow and deny sets of network identities. Allowlist
// membership bypasses rate limiting and abuse escalation entirely; denylist
// membership rejects outright. The denylist is never cleared by the passage
// of time, only by an explicit administrative removal.
type IPLists struct {
	mu    sync.RWMutex
	allow map[string]struct{}
	deny  map[string]struct{}
}

// NewIPLists constructs empty lists.
func NewIPLists() *IPLists {
	return &IPLists{
		allow: make(map[string]struct{}),
		deny:  make(map[string]struct{}),
	}
}

// AddAllow inserts ip into the allowlist. Idempotent.
func (l *IPLists) AddAllow(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allow[ip] = struct{}{}
}

// RemoveAllow removes ip from the allowlist, reporting whether it was present.
func (l *IPLists) RemoveAllow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.allow[ip]
	delete(l.allow, ip)
	return ok
}

// AddDeny inserts ip into the denylist. Idempotent.
func (l *IPLists) AddDeny(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deny[ip] = struct{}{}
}

// RemoveDeny removes ip from the denylist, reporting whether it was present.
func (l *IPLists) RemoveDeny(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.deny[ip]
	delete(l.deny, ip)
	return ok
}

// Allowed reports allowlist membership.
func (l *IPLists) Allowed(ip string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.allow[ip]
	return ok
}

// Denied reports denylist membership.
func (l *IPLists) Denied(ip string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.deny[ip]
	return ok
}

// Snapshot returns sorted copies of both lists for the admin surface.
func (l *IPLists) Snapshot() (allow, deny []string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for ip := range l.allow {
		allow = append(allow, ip)
	}
	for ip := range l.deny {
		deny = append(deny, ip)
	}
	sort.Strings(allow)
	sort.Strings(deny)
	return allow, deny
}
