package selector

import (
	"fmt"
	"path"
	"strings"

	"github.com/agent462/corral/internal/config"
)

// Filter narrows hosts to those matched by a --limit expression.
//
// The expression is a comma-separated list of glob patterns matched against
// host names. A pattern prefixed with ! removes matching hosts instead;
// exclusions apply after every inclusion. "all" (or an expression made only
// of exclusions) starts from the full inventory. Inventory order is kept.
func Filter(hosts []config.Host, expr string) ([]config.Host, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" || expr == "all" {
		return hosts, nil
	}

	var include, exclude []string
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		neg := strings.HasPrefix(part, "!")
		pattern := strings.TrimPrefix(part, "!")
		if pattern == "" {
			return nil, fmt.Errorf("invalid pattern %q", part)
		}
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		if neg {
			exclude = append(exclude, pattern)
		} else {
			include = append(include, pattern)
		}
	}

	var out []config.Host
	for _, h := range hosts {
		if len(include) > 0 && !matchAny(include, h.Name) {
			continue
		}
		if matchAny(exclude, h.Name) {
			continue
		}
		out = append(out, h)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no hosts match %q", expr)
	}
	return out, nil
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if p == "all" {
			return true
		}
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}
