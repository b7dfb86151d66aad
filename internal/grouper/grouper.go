// Package grouper collapses hosts that produced identical output so a
// report can show one block per distinct output instead of one per host.
package grouper

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Output is one host's final output.
type Output struct {
	Host   string
	Stdout []byte
}

// Group is a set of hosts that produced identical output.
type Group struct {
	Hosts  []string
	Stdout []byte
	IsNorm bool   // true for the largest group
	Diff   string // unified diff vs the norm group; empty for the norm itself
}

// ByOutput groups outputs by identical stdout. The largest group is the
// norm and comes first; on a tie the group seen first wins. Every other
// group carries a diff against the norm. Host names within a group are
// sorted.
func ByOutput(outputs []Output) []Group {
	if len(outputs) == 0 {
		return nil
	}

	type groupData struct {
		hosts  []string
		stdout []byte
	}
	groups := make(map[string]*groupData)
	var order []string

	for _, o := range outputs {
		sum := sha256.Sum256(o.Stdout)
		key := hex.EncodeToString(sum[:])
		g, ok := groups[key]
		if !ok {
			g = &groupData{stdout: o.Stdout}
			groups[key] = g
			order = append(order, key)
		}
		g.hosts = append(g.hosts, o.Host)
	}

	normKey := order[0]
	for _, k := range order[1:] {
		if len(groups[k].hosts) > len(groups[normKey].hosts) {
			normKey = k
		}
	}
	norm := groups[normKey]
	sort.Strings(norm.hosts)

	out := []Group{{Hosts: norm.hosts, Stdout: norm.stdout, IsNorm: true}}
	for _, k := range order {
		if k == normKey {
			continue
		}
		g := groups[k]
		sort.Strings(g.hosts)
		out = append(out, Group{
			Hosts:  g.hosts,
			Stdout: g.stdout,
			Diff:   unifiedDiff(string(norm.stdout), string(g.stdout)),
		})
	}
	return out
}

// maxDiffLines is the maximum number of lines (in either input) before
// the diff engine gives up computing an LCS and falls back to showing
// the full removal/addition. This avoids O(n*m) blowup on very large outputs.
const maxDiffLines = 500

// unifiedDiff computes a simple unified diff between two strings.
func unifiedDiff(a, b string) string {
	aLines := splitLines(a)
	bLines := splitLines(b)

	var out strings.Builder
	out.WriteString("--- norm\n+++ outlier\n")
	line := func(prefix, text string) {
		out.WriteString(prefix)
		out.WriteString(text)
		out.WriteByte('\n')
	}

	// Large outputs skip the LCS and show a full removal/addition.
	var lcs []string
	if len(aLines) <= maxDiffLines && len(bLines) <= maxDiffLines {
		lcs = computeLCS(aLines, bLines)
	}

	ai, bi := 0, 0
	for _, common := range lcs {
		for ai < len(aLines) && aLines[ai] != common {
			line("-", aLines[ai])
			ai++
		}
		for bi < len(bLines) && bLines[bi] != common {
			line("+", bLines[bi])
			bi++
		}
		line(" ", common)
		ai++
		bi++
	}
	for ; ai < len(aLines); ai++ {
		line("-", aLines[ai])
	}
	for ; bi < len(bLines); bi++ {
		line("+", bLines[bi])
	}
	return out.String()
}

// splitLines splits a string into lines, handling the trailing newline gracefully.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	// Remove trailing empty element from a trailing newline.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// computeLCS returns the longest common subsequence of two string slices.
func computeLCS(a, b []string) []string {
	m, n := len(a), len(b)
	// Build DP table.
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if a[i-1] == b[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else if dp[i-1][j] >= dp[i][j-1] {
				dp[i][j] = dp[i-1][j]
			} else {
				dp[i][j] = dp[i][j-1]
			}
		}
	}

	// Backtrack to find the LCS.
	lcs := make([]string, 0, dp[m][n])
	i, j := m, n
	for i > 0 && j > 0 {
		if a[i-1] == b[j-1] {
			lcs = append(lcs, a[i-1])
			i--
			j--
		} else if dp[i-1][j] >= dp[i][j-1] {
			i--
		} else {
			j--
		}
	}
	// Reverse.
	for l, r := 0, len(lcs)-1; l < r; l, r = l+1, r-1 {
		lcs[l], lcs[r] = lcs[r], lcs[l]
	}
	return lcs
}
