package content_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/loreforge/internal/content"
	"github.com/cory-johannsen/loreforge/internal/game/encounter"
	"github.com/cory-johannsen/loreforge/internal/testutil"
)

func TestRow_String(t *testing.T) {
	cases := []struct {
		row  content.Row
		want string
	}{
		{content.Row{Kind: content.KindText, Text: "a brass ring"}, "a brass ring"},
		{content.Row{Kind: content.KindLoot, Loot: &content.Loot{Name: "gold pieces", Amount: "12 gp"}}, "12 gp gold pieces"},
		{content.Row{Kind: content.KindLoot, Loot: &content.Loot{Name: "bag of holding"}}, "bag of holding"},
		{content.Row{Kind: content.KindRoom, Room: &content.Room{Name: "Crypt", Feature: "3 sarcophagi"}}, "Crypt: 3 sarcophagi"},
		{content.Row{Kind: content.KindRoom, Room: &content.Room{Name: "Vault"}}, "Vault"},
		{content.Row{Kind: content.KindEncounter, Encounter: &content.EncounterRow{
			Monster: "goblins", CR: encounter.NewCR(1, 4), Count: "4",
		}}, "4 goblins (CR 1/4)"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.row.String())
	}
}

func TestRow_Roll_DoesNotMutateOriginal(t *testing.T) {
	orig := content.Row{Kind: content.KindLoot, Loot: &content.Loot{Name: "gold pieces", Amount: "2d6x10 gp"}}
	rolled, err := orig.Roll(testutil.DieFaces(3, 4))
	require.NoError(t, err)
	assert.Equal(t, "70 gp", rolled.Loot.Amount)
	assert.Equal(t, "2d6x10 gp", orig.Loot.Amount)
}

func TestRow_Roll_RoomFieldsInOrder(t *testing.T) {
	r := content.Row{Kind: content.KindRoom, Room: &content.Room{Name: "Well", Feature: "a 3d10 foot drop"}}
	src := testutil.DieFaces(1, 2, 3)
	rolled, err := r.Roll(src)
	require.NoError(t, err)
	assert.Equal(t, "a 6 foot drop", rolled.Room.Feature)
	ints, _ := src.Draws()
	assert.Equal(t, 3, ints)
}

func TestRow_Roll_EncounterCount(t *testing.T) {
	r := content.Row{Kind: content.KindEncounter, Encounter: &content.EncounterRow{
		Monster: "wolves", CR: encounter.NewCR(1, 4), Count: "1d4+2",
	}}
	rolled, err := r.Roll(testutil.DieFaces(3))
	require.NoError(t, err)
	assert.Equal(t, "5", rolled.Encounter.Count)
	assert.Equal(t, "1d4+2", r.Encounter.Count)
}

func TestRow_Roll_EncounterCountThatCanRollZeroIsRejected(t *testing.T) {
	r := content.Row{Kind: content.KindEncounter, Encounter: &content.EncounterRow{
		Monster: "rats", CR: encounter.NewCR(1, 8), Count: "1d4-3",
	}}
	src := testutil.NewFixedSource()
	_, err := r.Roll(src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must never roll below 1")
	ints, _ := src.Draws()
	assert.Zero(t, ints, "no draws are taken for a rejected count")

	r.Encounter.Count = "1d4-0"
	rolled, err := r.Roll(testutil.DieFaces(1))
	require.NoError(t, err)
	assert.Equal(t, "1", rolled.Encounter.Count)
}

func TestRow_Roll_InvalidCount(t *testing.T) {
	for _, count := range []string{"0", "-2", "lots", "0d6", "2d6-2", "d2-1"} {
		r := content.Row{Kind: content.KindEncounter, Encounter: &content.EncounterRow{
			Monster: "x", CR: encounter.Whole(1), Count: count,
		}}
		_, err := r.Roll(testutil.NewFixedSource())
		assert.Error(t, err, "count %q", count)
	}
}

func TestEncounterRow_Group(t *testing.T) {
	e := content.EncounterRow{Monster: "owlbear", CR: encounter.Whole(3), Count: "2"}
	g, err := e.Group(testutil.NewFixedSource())
	require.NoError(t, err)
	assert.Equal(t, encounter.Group{CR: encounter.Whole(3), Count: 2}, g)
}
