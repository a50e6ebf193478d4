// Package pattern implements glob matching over slash-separated paths.
//
// The syntax is the shell subset used by the find endpoint: `*` matches any
// run of characters within a single segment, `?` matches exactly one
// character, and a segment that is exactly `**` matches zero or more whole
// segments. Every string is a valid pattern; there is no error case.
package pattern

import "strings"

// segment is one slash-delimited component of a compiled pattern.
type segment struct {
	text      string // literal text, possibly containing * and ? glyphs
	recursive bool   // segment was exactly "**"
}

// Pattern is a compiled glob pattern. Immutable once compiled.
type Pattern struct {
	raw      string
	segments []segment
}

// Compile parses a glob string into a Pattern. It accepts every input:
// unmatchable patterns compile fine and simply never match. Empty segments
// produced by a leading, trailing, or doubled slash are dropped.
func Compile(raw string) Pattern {
	parts := strings.Split(raw, "/")
	segments := make([]segment, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "":
			// no-op boundary, not an error
		case "**":
			segments = append(segments, segment{recursive: true})
		default:
			segments = append(segments, segment{text: part})
		}
	}
	return Pattern{raw: raw, segments: segments}
}

// String returns the original pattern text, verbatim.
func (p Pattern) String() string {
	return p.raw
}

// Match reports whether path matches the pattern. The path is split on "/"
// and matched segment by segment; the whole path and the whole pattern must
// be consumed for a match. Match is a pure function of its inputs.
func (p Pattern) Match(path string) bool {
	var parts []string
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return matchSegments(p.segments, parts)
}

// matchSegments aligns pattern segments against path segments. Literal
// segments consume exactly one path segment each; a recursive segment tries
// consuming zero path segments first, then one more on each backtrack.
// Recursion depth is bounded by the number of remaining path segments.
func matchSegments(segments []segment, parts []string) bool {
	for {
		if len(segments) == 0 {
			return len(parts) == 0
		}
		if segments[0].recursive {
			for skip := 0; skip <= len(parts); skip++ {
				if matchSegments(segments[1:], parts[skip:]) {
					return true
				}
			}
			return false
		}
		if len(parts) == 0 {
			return false
		}
		if !matchChars(segments[0].text, parts[0]) {
			return false
		}
		segments = segments[1:]
		parts = parts[1:]
	}
}

// matchChars matches a single literal pattern segment against a single path
// segment. `*` matches zero or more characters, `?` exactly one; neither can
// cross a slash because segments are pre-split. Standard greedy matching
// with backtracking on the most recent `*`.
func matchChars(pattern, s string) bool {
	p := []rune(pattern)
	t := []rune(s)

	pi, ti := 0, 0
	star, starTi := -1, 0
	for ti < len(t) {
		switch {
		case pi < len(p) && (p[pi] == '?' || p[pi] == t[ti]):
			pi++
			ti++
		case pi < len(p) && p[pi] == '*':
			star, starTi = pi, ti
			pi++
		case star >= 0:
			starTi++
			pi, ti = star+1, starTi
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}
