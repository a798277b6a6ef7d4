package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterBuildsPositionalClause(t *testing.T) {
	var f Filter
	assert.Empty(t, f.Where())

	f.Add("gym = ?", "UAN")
	f.Add("(name ILIKE ? OR phone ILIKE ?)", "%ana%")
	limit := f.Bind(20)

	assert.Equal(t, "WHERE gym = $1 AND (name ILIKE $2 OR phone ILIKE $2)", f.Where())
	assert.Equal(t, "$3", limit)
	assert.Equal(t, []any{"UAN", "%ana%", 20}, f.Args())
}

func TestLikePatternEscapesWildcards(t *testing.T) {
	assert.Equal(t, `%50\%\_off%`, LikePattern("50%_off"))
}
