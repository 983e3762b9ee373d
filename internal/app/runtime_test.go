package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTestModeFlagForms(t *testing.T) {
	cases := map[string]bool{
		"1":     true,
		"true":  true,
		"TRUE":  true,
		"t":     true,
		"0":     false,
		"false": false,
		"":      false,
		"yes":   false,
	}
	for value, want := range cases {
		t.Setenv(testModeEnv, value)
		RefreshTestMode()
		require.Equal(t, want, InTestMode(), "value %q", value)
	}

	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	require.False(t, InTestMode())
}
