package normalize

import (
	"regexp"
	"strings"
)

// maxPasses bounds the fixpoint loop of boundary-aware rules. Adjacent matches
// share their boundary character, so one ReplaceAll cannot see both.
const maxPasses = 8

// Rule is one rewrite step of the cleaning pipeline.
type Rule interface {
	// Name identifies the rule in logs and tests.
	Name() string
	// Match reports whether Apply would change text.
	Match(text string) bool
	// Apply returns text with the rule's markup rewritten.
	Apply(text string) string
}

type regexRule struct {
	name     string
	re       *regexp.Regexp
	repl     string
	fixpoint bool
}

func (r *regexRule) Name() string { return r.name }

func (r *regexRule) Match(text string) bool { return r.re.MatchString(text) }

func (r *regexRule) Apply(text string) string {
	if !r.fixpoint {
		return r.re.ReplaceAllString(text, r.repl)
	}
	for i := 0; i < maxPasses; i++ {
		next := r.re.ReplaceAllString(text, r.repl)
		if next == text {
			break
		}
		text = next
	}
	return text
}

// chain applies several rules as one step.
type chain struct {
	name  string
	rules []Rule
}

func (c *chain) Name() string { return c.name }

func (c *chain) Match(text string) bool {
	for _, r := range c.rules {
		if r.Match(text) {
			return true
		}
	}
	return false
}

func (c *chain) Apply(text string) string {
	for _, r := range c.rules {
		text = r.Apply(text)
	}
	return text
}

type trimRule struct{}

func (trimRule) Name() string             { return "trim" }
func (trimRule) Match(text string) bool   { return text != strings.TrimSpace(text) }
func (trimRule) Apply(text string) string { return strings.TrimSpace(text) }

// The rules below are exported individually so they can be tested and
// reordered in isolation. DefaultRules returns them in pipeline order.
var (
	// MainHeading strips "# " at the start of a line, keeping the heading text.
	// "#tag" is left alone because the marker must be followed by blanks.
	MainHeading Rule = &regexRule{
		name: "main_heading",
		re:   regexp.MustCompile(`(?m)^#[ \t]+`),
	}

	// SubHeading strips "##", "###", ... markers at the start of a line.
	SubHeading Rule = &regexRule{
		name: "sub_heading",
		re:   regexp.MustCompile(`(?m)^[ \t]*#{2,}[ \t]+`),
	}

	// Separator drops lines made only of "==" or "--" runs (rules, setext underlines).
	Separator Rule = &regexRule{
		name: "separator",
		re:   regexp.MustCompile(`(?m)^[ \t]*(?:={2,}|-{2,})[ \t]*(?:\r?\n|$)`),
	}

	// StrongEmphasis collapses **x** and __x__.
	StrongEmphasis Rule = &chain{
		name: "strong_emphasis",
		rules: []Rule{
			&regexRule{
				name: "strong_asterisk",
				re:   regexp.MustCompile(`\*\*([^\n]+?)\*\*`),
				repl: "${1}",
			},
			&regexRule{
				name:     "strong_underscore",
				re:       regexp.MustCompile(`(?m)(^|[^\w])__([^\n]+?)__([^\w]|$)`),
				repl:     "${1}${2}${3}",
				fixpoint: true,
			},
		},
	}

	// Emphasis collapses *x* and _x_. Underscores inside identifiers such as
	// snake_case are not emphasis.
	Emphasis Rule = &chain{
		name: "emphasis",
		rules: []Rule{
			&regexRule{
				name: "emphasis_asterisk",
				re:   regexp.MustCompile(`\*([^*\s](?:[^*\n]*[^*\s])?)\*`),
				repl: "${1}",
			},
			&regexRule{
				name:     "emphasis_underscore",
				re:       regexp.MustCompile(`(?m)(^|[^\w])_([^_\n]+?)_([^\w]|$)`),
				repl:     "${1}${2}${3}",
				fixpoint: true,
			},
		},
	}

	// Strikethrough collapses ~~x~~.
	Strikethrough Rule = &regexRule{
		name: "strikethrough",
		re:   regexp.MustCompile(`~~([^~\n]+?)~~`),
		repl: "${1}",
	}

	// InlineCode collapses `x`.
	InlineCode Rule = &regexRule{
		name: "inline_code",
		re:   regexp.MustCompile("`([^`\n]+)`"),
		repl: "${1}",
	}

	// Links keeps the alt text of images and the text of links, dropping targets.
	Links Rule = &chain{
		name: "links",
		rules: []Rule{
			&regexRule{
				name: "image",
				re:   regexp.MustCompile(`!\[([^\]\n]*)\]\([^)\n]*\)`),
				repl: "${1}",
			},
			&regexRule{
				name: "link",
				re:   regexp.MustCompile(`\[([^\]\n]+)\]\([^)\n]*\)`),
				repl: "${1}",
			},
		},
	}

	// Trim removes leading and trailing whitespace.
	Trim Rule = trimRule{}
)

// DefaultRules returns the cleaning pipeline in order. Later rules assume the
// earlier ones already removed heading markers and separators.
func DefaultRules() []Rule {
	return []Rule{
		MainHeading,
		SubHeading,
		Separator,
		StrongEmphasis,
		Emphasis,
		Strikethrough,
		InlineCode,
		Links,
		Trim,
	}
}
