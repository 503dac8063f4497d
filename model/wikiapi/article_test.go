package wikiapi

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSpell(t *testing.T) {
	raw := `Level: 3
School: Evocation
Casting Time: 1 action
Range: 150 feet
Classes: Sorcerer, Wizard
A bright streak flashes from your pointing finger.`

	pd, err := Parse(ContentSpell, raw)
	require.NoError(t, err)
	require.NotNil(t, pd.Spell)
	assert.Nil(t, pd.Monster)
	assert.Equal(t, 3, pd.Spell.Level)
	assert.Equal(t, "Evocation", pd.Spell.School)
	assert.Equal(t, "1 action", pd.Spell.CastingTime)
	assert.Equal(t, []string{"Sorcerer", "Wizard"}, pd.Spell.Classes)
	assert.Equal(t, "A bright streak flashes from your pointing finger.", pd.Spell.Description)
}

func TestParseCantrip(t *testing.T) {
	pd, err := Parse(ContentSpell, "Level: Cantrip\nSchool: Conjuration")
	require.NoError(t, err)
	assert.Equal(t, 0, pd.Spell.Level)
}

func TestParseMonster(t *testing.T) {
	raw := `Size: Medium
Type: Undead
Armor Class: 13 (natural armor)
Hit Points: 22 (5d8)
Challenge: 1/2`

	pd, err := Parse(ContentMonster, raw)
	require.NoError(t, err)
	require.NotNil(t, pd.Monster)
	assert.Equal(t, 13, pd.Monster.ArmorClass)
	assert.Equal(t, "22 (5d8)", pd.Monster.HitPoints)
	assert.Equal(t, "1/2", pd.Monster.ChallengeRating)
}

func TestParseMonsterBadArmorClass(t *testing.T) {
	_, err := Parse(ContentMonster, "Armor Class: high")
	assert.Error(t, err)
}

func TestParseMagicItemAndLore(t *testing.T) {
	pd, err := Parse(ContentMagicItem, "Type: Wondrous item\nRarity: Rare\nAttunement: required")
	require.NoError(t, err)
	assert.Equal(t, "rare", pd.MagicItem.Rarity)
	assert.True(t, pd.MagicItem.RequiresAttunement)

	pd, err = Parse(ContentLore, "The Sea Ghost is an abandoned manor.\nCategories: Saltmarsh, Haunts")
	require.NoError(t, err)
	assert.Equal(t, "The Sea Ghost is an abandoned manor.", pd.Lore.Summary)
	assert.Equal(t, []string{"Saltmarsh", "Haunts"}, pd.Lore.Categories)
}

func TestParseLongLines(t *testing.T) {
	long := strings.Repeat("a", 70*1024)

	t.Run("Fields after a long line are kept", func(t *testing.T) {
		pd, err := Parse(ContentSpell, "Level: 3\nSchool: Evocation\n"+long+"\nRange: 150 feet\n")
		require.NoError(t, err)
		assert.Equal(t, "150 feet", pd.Spell.Range)
		assert.Equal(t, long, pd.Spell.Description)
	})

	t.Run("Line over the limit is an error", func(t *testing.T) {
		_, err := Parse(ContentSpell, "Level: 3\n"+strings.Repeat("a", MaxLineSize+1)+"\nRange: 150 feet")
		assert.ErrorContains(t, err, "longer than")
	})
}

func TestParseUnknownContentType(t *testing.T) {
	_, err := Parse(ContentType("recipe"), "x")
	assert.Error(t, err)
}

func TestBucketFor(t *testing.T) {
	assert.Equal(t, BucketMagicItems, BucketFor(ContentMagicItem))
	assert.Equal(t, BucketSpells, BucketFor(ContentSpell))
	assert.Equal(t, BucketMonsters, BucketFor(ContentMonster))
	assert.Equal(t, BucketOther, BucketFor(ContentLore))
	assert.Equal(t, BucketOther, BucketFor(ContentType("recipe")))
}

func TestContentTypeFromString(t *testing.T) {
	ct, err := ContentTypeFromString(" Magic_Item ")
	require.NoError(t, err)
	assert.Equal(t, ContentMagicItem, ct)
	_, err = ContentTypeFromString("recipe")
	assert.Error(t, err)
}
