package executor

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrUnknownHost is returned by Record for a host outside the run.
	ErrUnknownHost = errors.New("host not part of this run")
	// ErrDuplicateResult is returned by Record when a host already has a result.
	ErrDuplicateResult = errors.New("host already has a result")
)

// ResultSet maps every host of a run to exactly one HostResult. Results
// are recorded as each host finishes; Record is safe for concurrent use.
type ResultSet struct {
	mu      sync.Mutex
	order   []string
	results map[string]*HostResult
	done    chan struct{}
}

// Snapshot is a point-in-time partition of a ResultSet.
type Snapshot struct {
	OK          map[string]*HostResult
	Failed      map[string]*HostResult
	Unreachable map[string]*HostResult
}

// NewResultSet creates an empty ResultSet expecting the given hosts.
func NewResultSet(hosts []string) *ResultSet {
	rs := &ResultSet{
		order:   make([]string, 0, len(hosts)),
		results: make(map[string]*HostResult, len(hosts)),
		done:    make(chan struct{}),
	}
	for _, h := range hosts {
		if _, ok := rs.results[h]; ok {
			continue
		}
		rs.results[h] = nil
		rs.order = append(rs.order, h)
	}
	return rs
}

// Record inserts a host's result. Each expected host may be recorded once.
func (rs *ResultSet) Record(r *HostResult) error {
	if r == nil || r.Outcome == nil {
		return errors.New("record: result has no outcome")
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	existing, ok := rs.results[r.Host]
	if !ok {
		return fmt.Errorf("record %s: %w", r.Host, ErrUnknownHost)
	}
	if existing != nil {
		return fmt.Errorf("record %s: %w", r.Host, ErrDuplicateResult)
	}
	rs.results[r.Host] = r
	return nil
}

// Get returns the result for host, if recorded.
func (rs *ResultSet) Get(host string) (*HostResult, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	r := rs.results[host]
	return r, r != nil
}

// Status returns the recorded status of host.
func (rs *ResultSet) Status(host string) (Status, bool) {
	r, ok := rs.Get(host)
	if !ok {
		return 0, false
	}
	return r.Status(), true
}

// All returns recorded results in input host order.
func (rs *ResultSet) All() []*HostResult {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := make([]*HostResult, 0, len(rs.order))
	for _, h := range rs.order {
		if r := rs.results[h]; r != nil {
			out = append(out, r)
		}
	}
	return out
}

// Hosts returns the expected hosts in input order.
func (rs *ResultSet) Hosts() []string {
	out := make([]string, len(rs.order))
	copy(out, rs.order)
	return out
}

// Len returns the number of recorded results.
func (rs *ResultSet) Len() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	n := 0
	for _, r := range rs.results {
		if r != nil {
			n++
		}
	}
	return n
}

// Complete reports whether every expected host has a result.
func (rs *ResultSet) Complete() bool {
	return rs.Len() == len(rs.order)
}

// OK returns hosts whose tasks all succeeded.
func (rs *ResultSet) OK() map[string]*HostResult {
	return rs.filter(StatusOK)
}

// Failed returns hosts where a task failed.
func (rs *ResultSet) Failed() map[string]*HostResult {
	return rs.filter(StatusFailed)
}

// Unreachable returns hosts that could not be connected to.
func (rs *ResultSet) Unreachable() map[string]*HostResult {
	return rs.filter(StatusUnreachable)
}

// Snapshot returns the three partitions taken under a single lock.
func (rs *ResultSet) Snapshot() Snapshot {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	s := Snapshot{
		OK:          make(map[string]*HostResult),
		Failed:      make(map[string]*HostResult),
		Unreachable: make(map[string]*HostResult),
	}
	for host, r := range rs.results {
		if r == nil {
			continue
		}
		switch r.Outcome.(type) {
		case Success:
			s.OK[host] = r
		case Failure:
			s.Failed[host] = r
		case Unreachable:
			s.Unreachable[host] = r
		}
	}
	return s
}

// AllOK reports whether the run is complete and every host succeeded.
func (rs *ResultSet) AllOK() bool {
	return rs.Complete() && len(rs.OK()) == len(rs.order)
}

// Done is closed once the executor has recorded a result for every host.
func (rs *ResultSet) Done() <-chan struct{} {
	return rs.done
}

func (rs *ResultSet) finish() {
	close(rs.done)
}

func (rs *ResultSet) filter(s Status) map[string]*HostResult {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := make(map[string]*HostResult)
	for host, r := range rs.results {
		if r != nil && r.Status() == s {
			out[host] = r
		}
	}
	return out
}
