package internal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDatabaseUnsupportedDriver(t *testing.T) {
	_, err := OpenDatabase("mysql", "whatever")
	assert.Error(t, err)
}

func TestMigrateCreatesEveryTable(t *testing.T) {
	db, err := OpenDatabase("sqlite", filepath.Join(t.TempDir(), "codex.db"))
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	// migrating twice must be a no-op
	require.NoError(t, Migrate(db))

	for _, table := range []string{
		"game_editions",
		"campaigns",
		"adventures",
		"sessions",
		"characters",
		"locations",
		"quests",
		"magic_items",
		"relations",
		"character_diary_entries",
		"location_diary_entries",
		"quest_diary_entries",
		"wiki_articles",
		"wiki_article_entities",
		"magic_item_assignments",
	} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}
