package registration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRow(t *testing.T) {
	reg, err := FromRow(1, []string{" Alice ", "alice@x.com", "Session 1, Session 2"})
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Row)
	assert.Equal(t, "Alice", reg.Name)
	assert.Equal(t, "alice@x.com", reg.Email)
	assert.Equal(t, []string{"Session 1", "Session 2"}, reg.Sessions)
}

func TestFromRowMissingFields(t *testing.T) {
	cases := map[string][]string{
		"empty email":    {"Bob", "", "Session 1"},
		"blank name":     {"   ", "bob@x.com", "Session 1"},
		"short row":      {"Bob", "bob@x.com"},
		"nothing at all": {},
		"blank sessions": {"Bob", "bob@x.com", "  "},
	}
	for name, cells := range cases {
		t.Run(name, func(t *testing.T) {
			reg, err := FromRow(4, cells)
			assert.Nil(t, reg)
			assert.ErrorIs(t, err, ErrMissingField)
		})
	}
}

func TestSplitSessions(t *testing.T) {
	assert.Equal(t, []string{"Session 2", "Session 1"}, SplitSessions("Session 2,, Session 1 ,session 2"))
	assert.Empty(t, SplitSessions(" , "))
}
