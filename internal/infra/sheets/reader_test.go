package sheets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToCells(t *testing.T) {
	got := toCells([][]interface{}{
		{"Name", "Email", "Sessions"},
		{"Alice", "alice@x.com"},
		{"Bob", nil, 2.0},
		{},
	})

	assert.Equal(t, [][]string{
		{"Name", "Email", "Sessions"},
		{"Alice", "alice@x.com"},
		{"Bob", "", "2"},
		{},
	}, got)
}
