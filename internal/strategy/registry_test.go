package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterSpread(NewSimpleSpread(d("0.02")))
	reg.RegisterAmount(NewSimpleAmount(d("10"), d("1")))

	s, err := reg.Spread("simple")
	require.NoError(t, err)
	assert.Equal(t, "simple", s.Name())

	a, err := reg.Amount("simple")
	require.NoError(t, err)
	assert.Equal(t, "simple", a.Name())

	_, err = reg.Spread("missing")
	assert.Error(t, err)
	_, err = reg.Amount("missing")
	assert.Error(t, err)

	spreads, amounts := reg.List()
	assert.Equal(t, []string{"simple"}, spreads)
	assert.Equal(t, []string{"simple"}, amounts)
}
