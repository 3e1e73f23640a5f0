package rate

import (
	"context"
	"sync"
	"time"
)

// Config holds limiter tuning parameters.
type Config struct {
	MaxAttempts int
	Window      time.Duration
}

// DefaultConfig allows 10 attempts per 15 minutes.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 10,
		Window:      15 * time.Minute,
	}
}

// Limiter decides whether another attempt from clientKey may proceed.
type Limiter interface {
	Allow(ctx context.Context, clientKey string) (bool, error)
}

type window struct {
	count   int
	resetAt time.Time
}

// Memory is an in-process fixed-window [Limiter]. The read-check-increment
// for a key happens under one mutex.
type Memory struct {
	config Config
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

// NewMemory creates a [Memory] limiter. now may be nil.
func NewMemory(cfg Config, now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		config:  cfg,
		now:     now,
		windows: make(map[string]*window),
	}
}

// Allow implements [Limiter]. It never returns an error.
func (m *Memory) Allow(_ context.Context, clientKey string) (bool, error) {
	if clientKey == "" {
		return true, nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[clientKey]
	if !ok || now.After(w.resetAt) {
		m.windows[clientKey] = &window{count: 1, resetAt: now.Add(m.config.Window)}
		return true, nil
	}
	if w.count >= m.config.MaxAttempts {
		return false, nil
	}
	w.count++
	return true, nil
}

// Attempts returns the count in clientKey's current window.
func (m *Memory) Attempts(clientKey string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[clientKey]
	if !ok || m.now().After(w.resetAt) {
		return 0
	}
	return w.count
}

// Sweep drops expired windows and returns how many were removed.
func (m *Memory) Sweep() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, w := range m.windows {
		if now.After(w.resetAt) {
			delete(m.windows, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked client keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}
