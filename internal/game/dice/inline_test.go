package dice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/loreforge/internal/game/dice"
	"github.com/cory-johannsen/loreforge/internal/testutil"
)

func TestRollInline_Multiplier(t *testing.T) {
	out, err := dice.RollInline("2d6x10 gp", testutil.DieFaces(3, 4))
	require.NoError(t, err)
	assert.Equal(t, "70 gp", out)
}

func TestRollInline_UnicodeMultiplierWithSpaces(t *testing.T) {
	out, err := dice.RollInline("3d6 × 100 cp", testutil.DieFaces(1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, "600 cp", out)
}

func TestRollInline_MultipleSpansInOrder(t *testing.T) {
	out, err := dice.RollInline("d4+1 goblins and 1d6 wolves", testutil.DieFaces(2, 5))
	require.NoError(t, err)
	assert.Equal(t, "3 goblins and 5 wolves", out)
}

func TestRollInline_NoNotationUnchanged(t *testing.T) {
	src := testutil.NewFixedSource()
	out, err := dice.RollInline("A dusty tankard", src)
	require.NoError(t, err)
	assert.Equal(t, "A dusty tankard", out)
	ints, _ := src.Draws()
	assert.Zero(t, ints)
}

func TestRollInline_IgnoresWordsContainingD(t *testing.T) {
	out, err := dice.RollInline("Sword of d20 Gold", testutil.DieFaces(11))
	require.NoError(t, err)
	assert.Equal(t, "Sword of 11 Gold", out)
}

func TestRollInline_RejectsOutOfRangeSpan(t *testing.T) {
	_, err := dice.RollInline("500d6 gp", testutil.NewFixedSource())
	assert.ErrorIs(t, err, dice.ErrCountOutOfRange)
}

func TestRollInline_RejectsOversizedMultiplier(t *testing.T) {
	_, err := dice.RollInline("2d6x9223372036854775807 gp", testutil.NewFixedSource())
	assert.ErrorIs(t, err, dice.ErrSyntax)

	out, err := dice.RollInline("1d6x1000000 cp", testutil.DieFaces(6))
	require.NoError(t, err)
	assert.Equal(t, "6000000 cp", out)
}

func TestRoller_RollInline(t *testing.T) {
	roller := dice.NewLoggedRoller(testutil.DieFaces(6), zaptest.NewLogger(t))
	out, err := roller.RollInline("1d6 torches")
	require.NoError(t, err)
	assert.Equal(t, "6 torches", out)
}
