package purchase

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTarget_LevelCodesAreUpperCase(t *testing.T) {
	lower, err := NewTarget(" Level ", " b1 ")
	require.NoError(t, err)
	require.Equal(t, Level("B1"), lower)
	require.Equal(t, "level:B1", lower.String())
	require.Equal(t, "lvl-B1", lower.Reference())

	course, err := NewTarget("course", "b1-grammar")
	require.NoError(t, err)
	require.Equal(t, Course("b1-grammar"), course)

	_, err = NewTarget("bundle", "x")
	require.ErrorIs(t, err, ErrInvalidKind)
	_, err = NewTarget("level", "  ")
	require.ErrorIs(t, err, ErrEmptyID)
}
