package api

import (
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Check statuses.
const (
	CheckOK          = "ok"
	CheckUnavailable = "unavailable"
	CheckDegraded    = "degraded"
)

// CheckStatus is the state of one dependency.
type CheckStatus struct {
	Status   string `json:"status"`
	Optional bool   `json:"optional,omitempty"`
}

// ReadinessResponse is returned by /ready.
type ReadinessResponse struct {
	Ready  bool                   `json:"ready"`
	Checks map[string]CheckStatus `json:"checks"`
}

type check struct {
	probe    func() bool
	optional bool
}

// Readiness holds named dependency probes. A failing optional check reports
// "degraded" and does not make the service unready.
type Readiness struct {
	mu     sync.RWMutex
	checks map[string]check
}

// NewReadiness returns an empty set of checks.
func NewReadiness() *Readiness {
	return &Readiness{checks: make(map[string]check)}
}

// Set registers or replaces a probe.
func (r *Readiness) Set(name string, optional bool, probe func() bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[name] = check{probe: probe, optional: optional}
}

// Names returns the registered check names in order.
func (r *Readiness) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Probe runs one check. Unknown names report false.
func (r *Readiness) Probe(name string) bool {
	r.mu.RLock()
	c, ok := r.checks[name]
	r.mu.RUnlock()
	return ok && c.probe()
}

// Evaluate runs every probe concurrently so one slow dependency does not
// delay the others.
func (r *Readiness) Evaluate() ReadinessResponse {
	r.mu.RLock()
	names := make([]string, 0, len(r.checks))
	checks := make([]check, 0, len(r.checks))
	for name, c := range r.checks {
		names = append(names, name)
		checks = append(checks, c)
	}
	r.mu.RUnlock()

	ok := make([]bool, len(checks))
	var g errgroup.Group
	for i, c := range checks {
		i, c := i, c
		g.Go(func() error {
			ok[i] = c.probe()
			return nil
		})
	}
	_ = g.Wait()

	resp := ReadinessResponse{Ready: true, Checks: make(map[string]CheckStatus, len(checks))}
	for i, name := range names {
		st := CheckStatus{Status: CheckOK, Optional: checks[i].optional}
		if !ok[i] {
			if checks[i].optional {
				st.Status = CheckDegraded
			} else {
				st.Status = CheckUnavailable
				resp.Ready = false
			}
		}
		resp.Checks[name] = st
	}
	return resp
}
