package limiter

import (
	"net/url"
	"sync"
)

// Registry maps hosts to their RateLimiter so every transfer to the same
// host shares one block window. A Registry is owned by one download manager.
type Registry struct {
	mu       sync.RWMutex
	limiters map[string]*RateLimiter
}

func NewRegistry() *Registry {
	return &Registry{limiters: make(map[string]*RateLimiter)}
}

// ForURL returns the limiter for the URL's host
func (g *Registry) ForURL(rawurl string) *RateLimiter {
	host := rawurl
	if u, err := url.Parse(rawurl); err == nil && u.Host != "" {
		host = u.Host
	}
	return g.Get(host)
}

// Get returns the limiter for host, creating it on first use
func (g *Registry) Get(host string) *RateLimiter {
	g.mu.RLock()
	if l, ok := g.limiters[host]; ok {
		g.mu.RUnlock()
		return l
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	if l, ok := g.limiters[host]; ok {
		return l
	}
	l := NewRateLimiter(host)
	g.limiters[host] = l
	return l
}

// ActiveHosts returns the number of hosts being tracked
func (g *Registry) ActiveHosts() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.limiters)
}
