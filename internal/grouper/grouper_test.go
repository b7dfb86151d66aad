package grouper

import (
	"strings"
	"testing"
)

func outputs(pairs ...string) []Output {
	var out []Output
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Output{Host: pairs[i], Stdout: []byte(pairs[i+1])})
	}
	return out
}

func TestByOutput_AllIdentical(t *testing.T) {
	groups := ByOutput(outputs(
		"host-c", "up 3 days\n",
		"host-a", "up 3 days\n",
		"host-b", "up 3 days\n",
	))
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	g := groups[0]
	if !g.IsNorm {
		t.Error("single group should be the norm")
	}
	if strings.Join(g.Hosts, ",") != "host-a,host-b,host-c" {
		t.Errorf("hosts = %v, want sorted", g.Hosts)
	}
	if g.Diff != "" {
		t.Errorf("norm should have no diff, got %q", g.Diff)
	}
}

func TestByOutput_NormIsLargest(t *testing.T) {
	groups := ByOutput(outputs(
		"odd", "Debian 11\n",
		"a", "Debian 12\n",
		"b", "Debian 12\n",
	))
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if !groups[0].IsNorm || strings.Join(groups[0].Hosts, ",") != "a,b" {
		t.Errorf("norm = %+v", groups[0])
	}
	out := groups[1]
	if out.IsNorm || out.Hosts[0] != "odd" {
		t.Errorf("outlier = %+v", out)
	}
	if !strings.Contains(out.Diff, "-Debian 12") || !strings.Contains(out.Diff, "+Debian 11") {
		t.Errorf("diff = %q", out.Diff)
	}
}

func TestByOutput_TieGoesToFirstSeen(t *testing.T) {
	groups := ByOutput(outputs("x", "one", "y", "two"))
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Hosts[0] != "x" {
		t.Errorf("norm should be first seen, got %v", groups[0].Hosts)
	}
}

func TestByOutput_Empty(t *testing.T) {
	if groups := ByOutput(nil); groups != nil {
		t.Errorf("expected nil, got %v", groups)
	}
}

func TestUnifiedDiff(t *testing.T) {
	a := "line1\nline2\nline3\n"
	b := "line1\nchanged\nline3\n"

	diff := unifiedDiff(a, b)

	if !strings.Contains(diff, "-line2") {
		t.Errorf("diff should contain '-line2', got:\n%s", diff)
	}
	if !strings.Contains(diff, "+changed") {
		t.Errorf("diff should contain '+changed', got:\n%s", diff)
	}
	if !strings.Contains(diff, " line1") {
		t.Errorf("diff should contain ' line1' (context), got:\n%s", diff)
	}
}

func TestUnifiedDiff_LargeInputSkipsLCS(t *testing.T) {
	a := strings.Repeat("same\n", maxDiffLines+1)
	b := "other\n"
	diff := unifiedDiff(a, b)
	if strings.Count(diff, "\n-same") != maxDiffLines+1 {
		t.Errorf("expected every norm line removed")
	}
	if !strings.HasSuffix(diff, "+other\n") {
		t.Errorf("diff should end with the addition, got tail %q", diff[len(diff)-20:])
	}
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"a\n", 1},
		{"a\nb\n", 2},
		{"a\nb", 2},
	}

	for _, tc := range tests {
		got := splitLines(tc.input)
		if len(got) != tc.want {
			t.Errorf("splitLines(%q) = %d lines, want %d", tc.input, len(got), tc.want)
		}
	}
}
