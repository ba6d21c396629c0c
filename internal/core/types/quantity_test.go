package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantity(t *testing.T) {
	q, err := ParseQuantity("12.5")
	require.NoError(t, err)
	assert.Equal(t, Quantity(125_000), q)

	q, err = ParseQuantity("-3")
	require.NoError(t, err)
	assert.Equal(t, Quantity(-30_000), q)

	// Digits beyond the fourth decimal place are rounded.
	q, err = ParseQuantity("0.00005")
	require.NoError(t, err)
	assert.Equal(t, Quantity(1), q)

	_, err = ParseQuantity("not a number")
	assert.Error(t, err)
}

func TestQuantityString(t *testing.T) {
	assert.Equal(t, "12.5000", Quantity(125_000).String())
	assert.Equal(t, "-0.0001", Quantity(-1).String())
	assert.Equal(t, "0.0000", Quantity(0).String())
}

func TestQuantityJSONRoundTrip(t *testing.T) {
	b, err := json.Marshal(Quantity(125_000))
	require.NoError(t, err)
	assert.Equal(t, "12.5000", string(b))

	var q Quantity
	require.NoError(t, json.Unmarshal([]byte("7.25"), &q))
	assert.Equal(t, Quantity(72_500), q)

	// String form is accepted as well.
	require.NoError(t, json.Unmarshal([]byte(`"7.25"`), &q))
	assert.Equal(t, Quantity(72_500), q)
}

func TestQuantityMin(t *testing.T) {
	a := MustQuantity("3")
	b := MustQuantity("5")
	assert.Equal(t, a, a.Min(b))
	assert.Equal(t, a, b.Min(a))
}
