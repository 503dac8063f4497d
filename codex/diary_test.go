package codex

import (
	"context"
	"fmt"
	"testing"

	"github.com/phturb/campaign-codex-backend-go/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiary(t *testing.T) {
	e := setupTest(t)
	ctx := context.Background()
	c := e.campaign(t, "Ghosts of Saltmarsh")
	q := e.quest(t, c.ID, "Retrieve the Lost Map")
	elara := e.character(t, c.ID, "Elara", model.CharacterPC)

	t.Run("Missing owner is not found", func(t *testing.T) {
		_, err := e.svc.Diary.CreateEntry(ctx, model.KindQuest, 999, DiaryInput{
			Description: "Nothing here",
			Date:        "2024-01-01",
		})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, int64(0), e.count(t, "quest_diary_entries"))
	})

	t.Run("Entries round trip and come back ordered by date", func(t *testing.T) {
		later, err := e.svc.Diary.CreateEntry(ctx, model.KindQuest, q.ID, DiaryInput{
			Description: "Found the map in the alchemist's house",
			Date:        "2024-01-12",
		})
		require.NoError(t, err)
		assert.Equal(t, "2024-01-12", later.Date)
		assert.Equal(t, "Found the map in the alchemist's house", later.Description)

		_, err = e.svc.Diary.CreateEntry(ctx, model.KindQuest, q.ID, DiaryInput{
			Description: "Hired by Eliander Fireborn",
			Date:        "2024-01-05",
		})
		require.NoError(t, err)

		entries, err := e.svc.Diary.ListEntries(ctx, model.KindQuest, q.ID)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "2024-01-05", entries[0].Date)
		assert.Equal(t, "2024-01-12", entries[1].Date)
		for _, en := range entries {
			assert.NotNil(t, en.LinkedEntities)
			assert.Empty(t, en.LinkedEntities)
			assert.Equal(t, 1, en.Version)
		}
		assert.Contains(t, e.rv.Paths(), fmt.Sprintf("/quests/%d", q.ID))
	})

	t.Run("Validation", func(t *testing.T) {
		_, err := e.svc.Diary.CreateEntry(ctx, model.KindQuest, q.ID, DiaryInput{
			Description: "  ",
			Date:        "12/01/2024",
			LinkedEntities: []model.LinkedEntity{
				{Type: "dragon", ID: 1},
			},
		})
		require.ErrorIs(t, err, ErrValidation)
		fields := ResultFromError(err).Fields
		assert.Contains(t, fields, "description")
		assert.Contains(t, fields, "date")
		assert.Contains(t, fields, "linkedEntities[0].type")

		_, err = e.svc.Diary.CreateEntry(ctx, model.KindMagicItem, 1, DiaryInput{Description: "x", Date: "2024-01-01"})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("Linked entity names are captured at write time", func(t *testing.T) {
		en, err := e.svc.Diary.CreateEntry(ctx, model.KindQuest, q.ID, DiaryInput{
			Description: "Elara decoded the map",
			Date:        "2024-01-20",
			LinkedEntities: []model.LinkedEntity{
				{Type: model.KindCharacter, ID: elara.ID},
			},
		})
		require.NoError(t, err)
		require.Len(t, en.LinkedEntities, 1)
		assert.Equal(t, "Elara", en.LinkedEntities[0].Name)

		renamed := *elara
		renamed.Name = "Elara Moonwhisper"
		_, err = e.svc.Entities.Characters.Update(ctx, elara.ID, &renamed)
		require.NoError(t, err)

		entries, err := e.svc.Diary.ListEntries(ctx, model.KindQuest, q.ID)
		require.NoError(t, err)
		assert.Equal(t, "Elara", entries[len(entries)-1].LinkedEntities[0].Name)
	})

	t.Run("Mismatched owner never mutates", func(t *testing.T) {
		other := e.quest(t, c.ID, "Find the Sea Ghost")
		entries, err := e.svc.Diary.ListEntries(ctx, model.KindQuest, q.ID)
		require.NoError(t, err)
		target := entries[0]

		_, err = e.svc.Diary.UpdateEntry(ctx, model.KindQuest, target.ID, other.ID, DiaryInput{
			Description: "tampered",
			Date:        "2024-02-01",
		})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, e.svc.Diary.DeleteEntry(ctx, model.KindQuest, target.ID, other.ID), ErrNotFound)

		after, err := e.svc.Diary.ListEntries(ctx, model.KindQuest, q.ID)
		require.NoError(t, err)
		assert.Equal(t, len(entries), len(after))
		assert.Equal(t, target.Description, after[0].Description)
	})

	t.Run("Update with expected version", func(t *testing.T) {
		entries, err := e.svc.Diary.ListEntries(ctx, model.KindQuest, q.ID)
		require.NoError(t, err)
		target := entries[0]

		v := target.Version
		updated, err := e.svc.Diary.UpdateEntry(ctx, model.KindQuest, target.ID, q.ID, DiaryInput{
			Description:     target.Description,
			Date:            target.Date,
			IsImportant:     true,
			ExpectedVersion: &v,
		})
		require.NoError(t, err)
		assert.True(t, updated.IsImportant)
		assert.Equal(t, v+1, updated.Version)

		_, err = e.svc.Diary.UpdateEntry(ctx, model.KindQuest, target.ID, q.ID, DiaryInput{
			Description:     "stale write",
			Date:            target.Date,
			ExpectedVersion: &v,
		})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("Delete", func(t *testing.T) {
		entries, err := e.svc.Diary.ListEntries(ctx, model.KindQuest, q.ID)
		require.NoError(t, err)
		require.NoError(t, e.svc.Diary.DeleteEntry(ctx, model.KindQuest, entries[0].ID, q.ID))
		after, err := e.svc.Diary.ListEntries(ctx, model.KindQuest, q.ID)
		require.NoError(t, err)
		assert.Len(t, after, len(entries)-1)
	})

	t.Run("Npc diaries live with characters", func(t *testing.T) {
		ezra := e.character(t, c.ID, "Old Ezra", model.CharacterNPC)
		_, err := e.svc.Diary.CreateEntry(ctx, model.KindNPC, ezra.ID, DiaryInput{Description: "Warned the party", Date: "2024-01-06"})
		require.NoError(t, err)
		entries, err := e.svc.Diary.ListEntries(ctx, model.KindCharacter, ezra.ID)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}
