// Package match evaluates commit messages against the configured promotion
// rules. Matching is pure: no repository access, no side effects.
package match

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/Ariequ/svn-auto-merge/internal/svn"
)

// Mode selects how the rule set combines.
type Mode string

const (
	// ModeAll requires every rule to match (the default).
	ModeAll Mode = "all"
	// ModeAny requires at least one rule to match.
	ModeAny Mode = "any"
)

// Rule is one named, compiled pattern.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// Matcher holds the compiled rule set for one run. Rules are compiled once
// at load time; evaluation never re-parses patterns.
type Matcher struct {
	rules []Rule
	mode  Mode
}

// Compile builds a Matcher from the configured name → pattern mapping.
// Patterns match case-insensitively against the commit log message. A
// pattern that does not compile is a configuration error.
func Compile(patterns map[string]string, mode Mode) (*Matcher, error) {
	switch mode {
	case "":
		mode = ModeAll
	case ModeAll, ModeAny:
	default:
		return nil, fmt.Errorf("unknown match mode %q (want %q or %q)", mode, ModeAll, ModeAny)
	}

	names := make([]string, 0, len(patterns))
	for name := range patterns {
		names = append(names, name)
	}
	sort.Strings(names)

	rules := make([]Rule, 0, len(names))
	for _, name := range names {
		re, err := regexp.Compile("(?i)" + patterns[name])
		if err != nil {
			return nil, fmt.Errorf("invalid pattern for rule %q: %w", name, err)
		}
		rules = append(rules, Rule{Name: name, Pattern: re})
	}

	return &Matcher{rules: rules, mode: mode}, nil
}

// Matches reports whether the revision qualifies for promotion.
func (m *Matcher) Matches(rev svn.Revision) bool {
	matched, _ := m.Explain(rev)
	return matched
}

// Explain evaluates the rule set and also returns the names of rules the
// message did not satisfy, for outcome detail. An empty rule set matches
// nothing: the agent promotes nothing until rules are configured.
func (m *Matcher) Explain(rev svn.Revision) (bool, []string) {
	if len(m.rules) == 0 {
		return false, nil
	}

	var failed []string
	matchedAny := false
	for _, rule := range m.rules {
		if rule.Pattern.MatchString(rev.Message) {
			matchedAny = true
		} else {
			failed = append(failed, rule.Name)
		}
	}

	if m.mode == ModeAny {
		return matchedAny, failed
	}
	return len(failed) == 0, failed
}

// Mode returns the configured combination mode.
func (m *Matcher) Mode() Mode {
	return m.mode
}

// RuleNames returns the rule names in evaluation order.
func (m *Matcher) RuleNames() []string {
	names := make([]string, len(m.rules))
	for i, rule := range m.rules {
		names[i] = rule.Name
	}
	return names
}
