// Package uri parses URI path templates and matches concrete request paths
// against them.
//
// A template is a sequence of "/"-separated segments. A segment starting with
// ':' binds one path segment to a positional parameter:
//
//	/hello/:name          → 1 parameter
//	/users/:id/books/:isbn → 2 parameters
//
// Matching is segment-wise and case-sensitive. The template and the path must
// have the same number of segments; there is no implicit wildcard suffix.
package uri

import "strings"

// ParamMarker prefixes a template segment that binds a parameter.
const ParamMarker = ':'

const separator = "/"

type segment struct {
	value     string
	isParam   bool
	paramName string
}

// Pattern is a compiled path template. It is immutable and safe for
// concurrent use.
type Pattern struct {
	raw      string
	segments []segment
	params   int
}

// Compile parses a template into a Pattern.
func Compile(template string) *Pattern {
	segments := parseSegments(template)

	params := 0
	for _, seg := range segments {
		if seg.isParam {
			params++
		}
	}

	return &Pattern{
		raw:      template,
		segments: segments,
		params:   params,
	}
}

// parseSegments splits a template on "/" keeping empty segments, so that
// "/a" and "/a/" have different segment counts.
func parseSegments(template string) []segment {
	parts := strings.Split(template, separator)
	segments := make([]segment, 0, len(parts))

	for _, part := range parts {
		if len(part) > 0 && part[0] == ParamMarker {
			segments = append(segments, segment{
				value:     part,
				isParam:   true,
				paramName: part[1:],
			})
			continue
		}
		segments = append(segments, segment{value: part})
	}

	return segments
}

// String returns the raw template.
func (p *Pattern) String() string {
	return p.raw
}

// ParamsCount returns the number of parameter segments.
func (p *Pattern) ParamsCount() int {
	return p.params
}

// ParamNames returns the parameter names in declaration order.
func (p *Pattern) ParamNames() []string {
	names := make([]string, 0, p.params)
	for _, seg := range p.segments {
		if seg.isParam {
			names = append(names, seg.paramName)
		}
	}
	return names
}

// Match reports whether path matches the pattern and returns the extracted
// parameter values in declaration order. A parameter matches exactly one
// non-empty segment, so "/hello/" does not match "/hello/:name"; register
// "/hello/" separately to serve it.
func (p *Pattern) Match(path string) ([]string, bool) {
	if strings.Count(path, separator)+1 != len(p.segments) {
		return nil, false
	}

	values := make([]string, 0, p.params)
	rest := path

	for i, seg := range p.segments {
		var part string
		if i == len(p.segments)-1 {
			part = rest
		} else {
			idx := strings.Index(rest, separator)
			part, rest = rest[:idx], rest[idx+1:]
		}

		if seg.isParam {
			if part == "" {
				return nil, false
			}
			values = append(values, part)
			continue
		}

		if part != seg.value {
			return nil, false
		}
	}

	return values, true
}

// ParamsCount counts the parameter segments of a template.
func ParamsCount(template string) int {
	return Compile(template).ParamsCount()
}

// Match matches path against template. Parameters never bind empty
// segments. See Pattern.Match.
func Match(template, path string) ([]string, bool) {
	return Compile(template).Match(path)
}
