package executor

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestResultSet_RecordAndPartition(t *testing.T) {
	rs := NewResultSet([]string{"web1", "web2", "db1"})
	mustRecord(t, rs, &HostResult{Host: "db1", Outcome: Unreachable{Err: errors.New("refused")}})
	mustRecord(t, rs, &HostResult{Host: "web1", Outcome: Success{}})
	mustRecord(t, rs, &HostResult{Host: "web2", Outcome: Failure{Err: errors.New("exit 1")}})

	if !rs.Complete() {
		t.Fatal("should be complete")
	}
	if _, ok := rs.OK()["web1"]; !ok || len(rs.OK()) != 1 {
		t.Errorf("OK = %v", rs.OK())
	}
	if _, ok := rs.Failed()["web2"]; !ok || len(rs.Failed()) != 1 {
		t.Errorf("Failed = %v", rs.Failed())
	}
	if _, ok := rs.Unreachable()["db1"]; !ok || len(rs.Unreachable()) != 1 {
		t.Errorf("Unreachable = %v", rs.Unreachable())
	}

	all := rs.All()
	want := []string{"web1", "web2", "db1"}
	for i, r := range all {
		if r.Host != want[i] {
			t.Errorf("All()[%d] = %s, want %s", i, r.Host, want[i])
		}
	}
	if rs.AllOK() {
		t.Error("AllOK should be false")
	}
}

func TestResultSet_RejectsDuplicateAndUnknown(t *testing.T) {
	rs := NewResultSet([]string{"a"})
	mustRecord(t, rs, &HostResult{Host: "a", Outcome: Success{}})

	err := rs.Record(&HostResult{Host: "a", Outcome: Failure{}})
	if !errors.Is(err, ErrDuplicateResult) {
		t.Errorf("duplicate: got %v", err)
	}
	if s, _ := rs.Status("a"); s != StatusOK {
		t.Errorf("first result must be kept, got %s", s)
	}

	err = rs.Record(&HostResult{Host: "zzz", Outcome: Success{}})
	if !errors.Is(err, ErrUnknownHost) {
		t.Errorf("unknown: got %v", err)
	}
	if err := rs.Record(&HostResult{Host: "a"}); err == nil {
		t.Error("result without outcome should be rejected")
	}
}

func TestResultSet_Incomplete(t *testing.T) {
	rs := NewResultSet([]string{"a", "b"})
	mustRecord(t, rs, &HostResult{Host: "a", Outcome: Success{}})

	if rs.Complete() || rs.AllOK() {
		t.Error("set with a pending host is not complete")
	}
	if _, ok := rs.Get("b"); ok {
		t.Error("pending host should have no result")
	}
	if _, ok := rs.Status("b"); ok {
		t.Error("pending host should have no status")
	}
	if rs.Len() != 1 {
		t.Errorf("Len = %d, want 1", rs.Len())
	}
}

func TestResultSet_ConcurrentRecord(t *testing.T) {
	hosts := make([]string, 200)
	for i := range hosts {
		hosts[i] = fmt.Sprintf("h%03d", i)
	}
	rs := NewResultSet(hosts)

	var wg sync.WaitGroup
	for _, h := range hosts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rs.Record(&HostResult{Host: h, Outcome: Success{}}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if !rs.AllOK() {
		t.Errorf("expected all ok, got %d of %d", len(rs.OK()), len(hosts))
	}
}

func TestResultSet_EmptyIsComplete(t *testing.T) {
	rs := NewResultSet(nil)
	if !rs.Complete() || !rs.AllOK() {
		t.Error("empty result set is trivially complete")
	}
}

func TestHostResult_Accessors(t *testing.T) {
	tasks := []TaskResult{{Task: "one"}, {Task: "two"}}
	cause := errors.New("bad")

	cases := []struct {
		name      string
		outcome   Outcome
		status    Status
		taskCount int
		err       error
	}{
		{"success", Success{Tasks: tasks}, StatusOK, 2, nil},
		{"failure", Failure{Tasks: tasks[:1], Err: cause}, StatusFailed, 1, cause},
		{"unreachable", Unreachable{Err: cause}, StatusUnreachable, 0, cause},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := &HostResult{Host: "h", Outcome: tc.outcome}
			if r.Status() != tc.status {
				t.Errorf("Status = %s, want %s", r.Status(), tc.status)
			}
			if len(r.Tasks()) != tc.taskCount {
				t.Errorf("Tasks = %d, want %d", len(r.Tasks()), tc.taskCount)
			}
			if r.Err() != tc.err {
				t.Errorf("Err = %v, want %v", r.Err(), tc.err)
			}
		})
	}
}

func mustRecord(t *testing.T, rs *ResultSet, r *HostResult) {
	t.Helper()
	if err := rs.Record(r); err != nil {
		t.Fatalf("Record(%s): %v", r.Host, err)
	}
}
