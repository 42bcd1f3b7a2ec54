package dict

import (
	"testing"

	"github.com/lemenkov/pspp-go/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecodeToUnicode_DisambiguatesCollision(t *testing.T) {
	d := New(nil)
	mustVar(t, d, "FOO", value.NumericWidth)
	mustVar(t, d, "BAR", value.NumericWidth)

	// Force a post-recode collision by giving the second variable the same
	// folded name as the first would produce.
	d.vars[1].Name = d.vars[0].Name

	require.NoError(t, d.RecodeToUnicode())

	assert.NotEqual(t, d.vars[0].Name.String(), d.vars[1].Name.String())
	assert.Contains(t, d.vars[1].Name.String(), "Var1")
}
