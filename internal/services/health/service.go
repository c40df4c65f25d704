package health

import "context"

// Checker reports whether one dependency is reachable.
type Checker func(ctx context.Context) error

// Service encapsulates health-related checks.
type Service struct {
	checks map[string]Checker
}

// NewService constructs a new health service.
func NewService() *Service {
	return &Service{checks: make(map[string]Checker)}
}

// Register adds a named dependency check.
func (s *Service) Register(name string, check Checker) {
	s.checks[name] = check
}

// Status returns a simple liveness payload.
func (s *Service) Status() map[string]bool {
	return map[string]bool{"ok": true}
}

// Readiness runs every registered check and reports per-dependency status.
func (s *Service) Readiness(ctx context.Context) (map[string]string, bool) {
	out := make(map[string]string, len(s.checks))
	ready := true
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			out[name] = err.Error()
			ready = false
			continue
		}
		out[name] = "ok"
	}
	return out, ready
}
