package monitoring

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Check returns nil when the dependency it probes is usable.
type Check func(ctx context.Context) error

// CheckResult is the latest outcome of one check.
type CheckResult struct {
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"latency_ns"`
	CheckedAt time.Time     `json:"checked_at"`
}

// HealthReport aggregates every registered check. Status is healthy only
// when every check is.
type HealthReport struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type probe struct {
	name     string
	check    Check
	interval time.Duration
	timeout  time.Duration

	mu   sync.Mutex
	last CheckResult
}

func (p *probe) run(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	err := p.check(ctx)
	res := CheckResult{Status: StatusHealthy, Latency: time.Since(start), CheckedAt: start}
	if err != nil {
		res.Status = StatusUnhealthy
		res.Error = err.Error()
	}

	p.mu.Lock()
	p.last = res
	p.mu.Unlock()
	return res
}

func (p *probe) lastResult() (CheckResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, !p.last.CheckedAt.IsZero()
}

// HealthChecker runs named dependency checks on demand and in the
// background.
type HealthChecker struct {
	mu     sync.RWMutex
	probes []*probe
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{}
}

// AddCheck registers check. interval <= 0 excludes it from background runs.
func (h *HealthChecker) AddCheck(name string, check Check, interval, timeout time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes = append(h.probes, &probe{name: name, check: check, interval: interval, timeout: timeout})
}

// Names returns the registered check names in order.
func (h *HealthChecker) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.probes))
	for _, p := range h.probes {
		names = append(names, p.name)
	}
	sort.Strings(names)
	return names
}

// CheckAll runs every check now.
func (h *HealthChecker) CheckAll(ctx context.Context) HealthReport {
	h.mu.RLock()
	probes := append([]*probe(nil), h.probes...)
	h.mu.RUnlock()

	report := newReport()
	for _, p := range probes {
		report.add(p.name, p.run(ctx))
	}
	return report
}

// LastReport returns the results of the latest runs without probing.
// Checks that never ran are reported unhealthy.
func (h *HealthChecker) LastReport() HealthReport {
	h.mu.RLock()
	defer h.mu.RUnlock()

	report := newReport()
	for _, p := range h.probes {
		res, ok := p.lastResult()
		if !ok {
			res = CheckResult{Status: StatusUnhealthy, Error: "not checked yet"}
		}
		report.add(p.name, res)
	}
	return report
}

// StartBackgroundChecks runs each check on its interval and logs state
// changes until ctx is done.
func (h *HealthChecker) StartBackgroundChecks(ctx context.Context, logger *zap.SugaredLogger) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, p := range h.probes {
		if p.interval <= 0 {
			continue
		}
		go h.watch(ctx, p, logger)
	}
}

func (h *HealthChecker) watch(ctx context.Context, p *probe, logger *zap.SugaredLogger) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	healthy := p.run(ctx).Status == StatusHealthy
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res := p.run(ctx)
			now := res.Status == StatusHealthy
			if now == healthy {
				continue
			}
			healthy = now
			if healthy {
				logger.Infow("health check recovered", "check", p.name)
			} else {
				logger.Warnw("health check failing", "check", p.name, "error", res.Error)
			}
		}
	}
}

func newReport() HealthReport {
	return HealthReport{Status: StatusHealthy, Timestamp: time.Now(), Checks: make(map[string]CheckResult)}
}

func (r *HealthReport) add(name string, res CheckResult) {
	r.Checks[name] = res
	if res.Status != StatusHealthy {
		r.Status = StatusUnhealthy
	}
}
