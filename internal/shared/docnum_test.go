package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatDocNumber(t *testing.T) {
	require.Equal(t, "PO0000000001", FormatDocNumber("PO", 1))
	require.Equal(t, "PR0000000005", FormatDocNumber("PR", 5))
	require.Equal(t, "TR0000123456", FormatDocNumber("TR", 123456))
}
