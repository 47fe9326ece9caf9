// Package health reports whether the kernel channel and the devices an
// operator cares about are usable. The exporter serves the report next to
// its metrics.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"grimm.is/ifctl/internal/clock"
)

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check is the result of one health check.
type Check struct {
	Name        string        `json:"name"`
	Status      Status        `json:"status"`
	Message     string        `json:"message,omitempty"`
	LastChecked time.Time     `json:"last_checked"`
	Duration    time.Duration `json:"duration_ns"`
}

// Report is the combined result of all checks. Status is the worst status
// of any check.
type Report struct {
	Status    Status           `json:"status"`
	Checks    map[string]Check `json:"checks"`
	Timestamp time.Time        `json:"timestamp"`
}

// CheckFunc performs a health check.
type CheckFunc func(ctx context.Context) Check

// Checker runs registered checks and caches the report briefly so that
// frequent probes do not hammer the kernel.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
	cache  *Report
	ttl    time.Duration
}

// NewChecker returns a checker with no checks registered.
func NewChecker() *Checker {
	return &Checker{
		checks: make(map[string]CheckFunc),
		ttl:    5 * time.Second,
	}
}

// Register adds a health check, replacing any check of the same name.
func (c *Checker) Register(name string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = fn
	c.cache = nil
}

// Names returns the registered check names in order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Check runs all health checks and returns a report.
func (c *Checker) Check(ctx context.Context) Report {
	c.mu.RLock()
	if c.cache != nil && clock.Since(c.cache.Timestamp) < c.ttl {
		report := *c.cache
		c.mu.RUnlock()
		return report
	}
	funcs := make(map[string]CheckFunc, len(c.checks))
	for name, fn := range c.checks {
		funcs[name] = fn
	}
	c.mu.RUnlock()

	checks := make(map[string]Check, len(funcs))
	overall := StatusHealthy

	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, fn := range funcs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			check := fn(ctx)
			check.Name = name

			mu.Lock()
			defer mu.Unlock()
			checks[name] = check
			overall = worse(overall, check.Status)
		}()
	}
	wg.Wait()

	report := Report{Status: overall, Checks: checks, Timestamp: clock.Now()}

	c.mu.Lock()
	c.cache = &report
	c.mu.Unlock()
	return report
}

func worse(a, b Status) Status {
	rank := func(s Status) int {
		switch s {
		case StatusUnhealthy:
			return 2
		case StatusDegraded:
			return 1
		}
		return 0
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

// Handler serves the JSON report. Unhealthy reports answer 503.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		report := c.Check(ctx)

		w.Header().Set("Content-Type", "application/json")
		if report.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(report)
	}
}

// LivenessHandler answers OK while the process serves requests.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// ReadinessHandler answers READY unless a check is unhealthy.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if c.Check(ctx).Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT READY"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	}
}
