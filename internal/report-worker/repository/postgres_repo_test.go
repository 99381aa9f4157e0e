package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierJSON(t *testing.T) {
	b, err := tierJSON(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(b))

	b, err = tierJSON(map[string]string{"1": "10.00", "3": "0.50"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"1":"10.00","3":"0.50"}`, string(b))
}

func TestAmount(t *testing.T) {
	assert.Equal(t, "0", amount(""))
	assert.Equal(t, "12.34", amount("12.34"))
}
