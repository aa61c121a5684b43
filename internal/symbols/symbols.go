// Package symbols pulls dependency and declaration names out of code cells
// with line-anchored patterns. Lines it does not recognise are skipped,
// never reported.
package symbols

import (
	"regexp"
	"strings"
)

// Result holds the names found in one fragment, in line order and then
// comma order. Duplicates are kept.
type Result struct {
	Dependencies []string `json:"dependencies"`
	Types        []string `json:"types"`
	Callables    []string `json:"callables"`
}

// Extractor scans a code fragment.
type Extractor interface {
	Extract(fragment string) Result
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(fragment string) Result

// Extract calls f.
func (f ExtractorFunc) Extract(fragment string) Result { return f(fragment) }

var registry = map[string]Extractor{
	"python": ExtractorFunc(Python),
}

// ForLanguage returns the extractor for a kernel language name such as
// "python". Matching is case-insensitive.
func ForLanguage(name string) (Extractor, bool) {
	e, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	return e, ok
}

var (
	importRe     = regexp.MustCompile(`^import\s+([\w., ]+)$`)
	fromImportRe = regexp.MustCompile(`^from\s+([\w.]+)\s+import\s+([\w., ]+)$`)
	classRe      = regexp.MustCompile(`^class\s+(\w+)\s*:$`)
	defRe        = regexp.MustCompile(`^(?:async\s+)?def\s+(\w+)\s*\(.*\)\s*(?:->[^:]+)?:$`)
)

// Python extracts imports, bare class declarations and function definitions.
//
//	import a, b        -> a, b
//	import numpy as np -> numpy
//	from p import a, b -> p.a, p.b
//	from . import a    -> (skipped)
//	class Name:        -> Name (types)
//	def f(x):          -> f (callables)
func Python(fragment string) Result {
	var res Result
	for _, line := range strings.Split(fragment, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := importRe.FindStringSubmatch(line); m != nil {
			res.Dependencies = append(res.Dependencies, splitNames(m[1], "")...)
			continue
		}
		if m := fromImportRe.FindStringSubmatch(line); m != nil {
			// Relative imports name local modules, not dependencies.
			if strings.HasPrefix(m[1], ".") {
				continue
			}
			res.Dependencies = append(res.Dependencies, splitNames(m[2], m[1]+".")...)
			continue
		}
		if m := classRe.FindStringSubmatch(line); m != nil {
			res.Types = append(res.Types, m[1])
			continue
		}
		if m := defRe.FindStringSubmatch(line); m != nil {
			res.Callables = append(res.Callables, m[1])
		}
	}
	return res
}

// splitNames splits a comma list, drops "as" aliases and empty items, and
// prefixes every name.
func splitNames(list, prefix string) []string {
	var out []string
	for _, item := range strings.Split(list, ",") {
		fields := strings.Fields(item)
		if len(fields) == 0 {
			continue
		}
		// "x as y" keeps x; anything else with spaces is not a name.
		if len(fields) != 1 && !(len(fields) == 3 && fields[1] == "as") {
			continue
		}
		out = append(out, prefix+fields[0])
	}
	return out
}
