package ratelimit

import "strings"

// exempt paths are never limited, whatever the rules say.
var exemptPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

func isExempt(path, method string) bool {
	return method == "GET" && exemptPaths[path]
}

// Match returns the first rule with a route covering method and path, or nil.
func Match(path, method string, rules []Rule) *Rule {
	for i := range rules {
		for _, route := range rules[i].Routes {
			if route.Method == method && matchSegments(route.Pattern, path) {
				return &rules[i]
			}
		}
	}
	return nil
}

func matchSegments(pattern, path string) bool {
	if pattern == path {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return false
	}
	want := strings.Split(strings.Trim(pattern, "/"), "/")
	got := strings.Split(strings.Trim(path, "/"), "/")
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if want[i] == "*" {
			if got[i] == "" {
				return false
			}
			continue
		}
		if want[i] != got[i] {
			return false
		}
	}
	return true
}
