package uri

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		template string
		expected int
	}{
		{template: "/", expected: 0},
		{template: "", expected: 0},
		{template: "/hello", expected: 0},
		{template: "/hello/:name", expected: 1},
		{template: "/say/:what/how/:loud", expected: 2},
		{template: "/:a/:b/:c", expected: 3},
		{template: "/:a/:b/:c/:d", expected: 4},
		{template: "/time:stamp", expected: 0},
		{template: "/a/:b/", expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, ParamsCount(tt.template))
			assert.Equal(t, tt.expected, Compile(tt.template).ParamsCount())
		})
	}
}

func TestMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		template string
		path     string
		matched  bool
		params   []string
	}{
		{name: "root", template: "/", path: "/", matched: true, params: []string{}},
		{name: "literal", template: "/hello", path: "/hello", matched: true, params: []string{}},
		{name: "literal case sensitive", template: "/hello", path: "/Hello", matched: false},
		{name: "one param", template: "/hello/:name", path: "/hello/bob", matched: true, params: []string{"bob"}},
		{
			name:     "params in order",
			template: "/say/:what/how/:loud",
			path:     "/say/hi/how/very",
			matched:  true,
			params:   []string{"hi", "very"},
		},
		{
			name:     "four params",
			template: "/:a/:b/:c/:d",
			path:     "/1/2/3/4",
			matched:  true,
			params:   []string{"1", "2", "3", "4"},
		},
		{name: "literal mismatch", template: "/hello/:name", path: "/bye/bob", matched: false},
		{name: "shorter path", template: "/hello/:name", path: "/hello", matched: false},
		{name: "longer path", template: "/hello/:name", path: "/hello/bob/extra", matched: false},
		{name: "trailing slash differs", template: "/hello", path: "/hello/", matched: false},
		{name: "empty param segment", template: "/hello/:name", path: "/hello/", matched: false},
		{name: "param keeps dots", template: "/files/:name", path: "/files/a.txt", matched: true, params: []string{"a.txt"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			params, ok := Match(tt.template, tt.path)
			assert.Equal(t, tt.matched, ok)
			if tt.matched {
				assert.Equal(t, tt.params, params)
			} else {
				assert.Nil(t, params)
			}
		})
	}
}

func TestMatch_ParamsFollowMarkers(t *testing.T) {
	t.Parallel()

	// For every template, a path built by substituting each marker with a
	// value yields exactly those values, in position.
	templates := []string{"/:a", "/x/:a/y", "/:a/:b", "/p/:a/q/:b/:c", "/:a/:b/:c/:d"}

	for _, template := range templates {
		pattern := Compile(template)

		parts := strings.Split(template, "/")
		var expected []string
		for i, part := range parts {
			if strings.HasPrefix(part, ":") {
				value := fmt.Sprintf("v%d", i)
				parts[i] = value
				expected = append(expected, value)
			}
		}

		params, ok := pattern.Match(strings.Join(parts, "/"))
		require.True(t, ok, template)
		assert.Equal(t, expected, params, template)
		assert.Len(t, params, pattern.ParamsCount(), template)
	}
}

func TestMatch_SegmentCountMismatchNeverMatches(t *testing.T) {
	t.Parallel()

	pattern := Compile("/:a/:b")

	for _, path := range []string{"", "/", "/x", "/x/y/z", "/x/y/z/w", "x/y/z"} {
		_, ok := pattern.Match(path)
		assert.False(t, ok, path)
	}
}

func TestPattern_Accessors(t *testing.T) {
	t.Parallel()

	pattern := Compile("/users/:id/books/:isbn")

	assert.Equal(t, "/users/:id/books/:isbn", pattern.String())
	assert.Equal(t, []string{"id", "isbn"}, pattern.ParamNames())
	assert.Equal(t, 2, pattern.ParamsCount())
}
