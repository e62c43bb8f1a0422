package issues

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/hotpatch/internal/resource"
)

func issue(severity, category, title string) Issue {
	return Issue{Severity: severity, Category: category, FilePath: "app/page.js", Title: title}
}

func TestAggregator_OrdersBySeverityThenCategory(t *testing.T) {
	agg := NewAggregator()

	_, changed := agg.Set(resource.Resource{Path: "a.js"}.Key(), []Issue{issue("warning", "other", "unused variable")})
	assert.True(t, changed)

	list, changed := agg.Set(resource.Resource{Path: "b.js"}.Key(), []Issue{issue("bug", "parse", "unexpected token")})
	assert.True(t, changed)

	require.Len(t, list, 2)
	assert.Equal(t, "bug", list[0].Severity)
	assert.Equal(t, "parse", list[0].Category)
	assert.Equal(t, "warning", list[1].Severity)
}

func TestAggregator_DeduplicatesAcrossResources(t *testing.T) {
	agg := NewAggregator()
	same := issue("error", "resolve", "module not found")

	agg.Set(resource.Resource{Path: "a.js"}.Key(), []Issue{same})
	list, changed := agg.Set(resource.Resource{Path: "b.js"}.Key(), []Issue{same})

	assert.False(t, changed, "an identical issue from another resource does not change the list")
	assert.Len(t, list, 1)
}

func TestAggregator_RemovingLastReferenceKeepsDuplicate(t *testing.T) {
	agg := NewAggregator()
	same := issue("error", "resolve", "module not found")
	a := resource.Resource{Path: "a.js"}.Key()
	b := resource.Resource{Path: "b.js"}.Key()

	agg.Set(a, []Issue{same})
	agg.Set(b, []Issue{same})

	list, changed := agg.Set(a, nil)
	assert.False(t, changed)
	assert.Len(t, list, 1)

	list, changed = agg.Set(b, nil)
	assert.True(t, changed)
	assert.Empty(t, list)
}

func TestAggregator_UnchangedSetIsNotReported(t *testing.T) {
	agg := NewAggregator()
	key := resource.Resource{Path: "a.js"}.Key()

	_, changed := agg.Set(key, nil)
	assert.False(t, changed)

	agg.Set(key, []Issue{issue("info", "other", "hello")})
	_, changed = agg.Set(key, []Issue{issue("info", "other", "hello")})
	assert.False(t, changed)
}

func TestAggregator_Reset(t *testing.T) {
	agg := NewAggregator()
	assert.False(t, agg.Reset())

	agg.Set(resource.Resource{Path: "a.js"}.Key(), []Issue{issue("log", "other", "x")})
	assert.True(t, agg.Reset())
	assert.Empty(t, agg.Issues())
}

func TestSort_UnlistedLast(t *testing.T) {
	list := []Issue{
		issue("hint", "parse", "unlisted severity"),
		issue("error", "linting", "unlisted category"),
		issue("error", "typescript", "typescript"),
		issue("fatal", "other", "fatal"),
	}

	Sort(list)

	titles := make([]string, len(list))
	for n, i := range list {
		titles[n] = i.Title
	}
	assert.Equal(t, []string{"fatal", "typescript", "unlisted category", "unlisted severity"}, titles)
}

func TestIssue_Format(t *testing.T) {
	i := Issue{
		Severity:          "error",
		Category:          "parse",
		FilePath:          "app/page.js",
		Title:             "Unexpected token",
		Description:       "Expected '}'\ngot EOF",
		DocumentationLink: "https://example.com/docs",
		Source:            &Source{Ident: "app/page.js", Start: Position{Line: 2, Column: 4}},
	}

	assert.Equal(t, "ERROR - [parse] app/page.js:3:5\n  Unexpected token\n\n  Expected '}'\n  got EOF\n\n  Documentation: https://example.com/docs", i.Format())
}
