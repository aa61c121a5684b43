// Package normalize turns Markdown cell fragments into index-ready plain text.
//
// It handles the inline subset notebooks actually use (headings, emphasis,
// strikethrough, inline code, links and images). It is not a Markdown parser.
package normalize

import "regexp"

var titleRe = regexp.MustCompile(`\A#[ \t]+([^\n]*\S)`)

// Normalizer applies an ordered list of rules to a fragment.
type Normalizer struct {
	rules []Rule
}

// New returns a Normalizer running rules in the given order.
// With no rules it uses DefaultRules.
func New(rules ...Rule) *Normalizer {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Normalizer{rules: rules}
}

// Clean runs the pipeline over fragment.
func (n *Normalizer) Clean(fragment string) string {
	for _, r := range n.rules {
		fragment = r.Apply(fragment)
	}
	return fragment
}

// MatchTitle returns the level-1 heading text at the very start of fragment,
// cleaned of inline markup, or "" if the fragment does not start with one.
func (n *Normalizer) MatchTitle(fragment string) string {
	m := titleRe.FindStringSubmatch(fragment)
	if m == nil {
		return ""
	}
	return n.Clean(m[1])
}

// Normalize returns the candidate title and the cleaned text of fragment.
func (n *Normalizer) Normalize(fragment string) (title, cleaned string) {
	return n.MatchTitle(fragment), n.Clean(fragment)
}

var std = New()

// Normalize runs the default pipeline. See (*Normalizer).Normalize.
func Normalize(fragment string) (title, cleaned string) {
	return std.Normalize(fragment)
}

// MatchTitle runs the default title matcher. See (*Normalizer).MatchTitle.
func MatchTitle(fragment string) string {
	return std.MatchTitle(fragment)
}
