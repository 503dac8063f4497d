package codex

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/phturb/campaign-codex-backend-go/model"
	"github.com/phturb/campaign-codex-backend-go/model/wikiapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViews(t *testing.T) {
	e := setupTest(t)
	ctx := context.Background()
	c := e.campaign(t, "Ghosts of Saltmarsh")
	adv := e.adventure(t, c.ID, "Tomb of Martek")
	elara := e.character(t, c.ID, "Elara", model.CharacterPC)
	ezra := e.character(t, c.ID, "Old Ezra", model.CharacterNPC)

	t.Run("Empty sides are empty arrays", func(t *testing.T) {
		v, err := e.svc.Views.CharacterView(ctx, elara.ID)
		require.NoError(t, err)
		assert.NotNil(t, v.MagicItems)
		assert.Empty(t, v.MagicItems)
		assert.Empty(t, v.Diary)
		assert.Empty(t, v.Relations)

		raw, err := json.Marshal(v)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"magicItems":[]`)
		assert.NotContains(t, string(raw), "null]")
	})

	t.Run("Character page", func(t *testing.T) {
		for _, name := range []string{"Trident of Fish Command", "Cloak of the Manta Ray"} {
			m := e.magicItem(t, c.ID, name)
			_, err := e.svc.Assignments.Assign(ctx, AssignInput{MagicItemID: m.ID, Holder: elara.Ref()})
			require.NoError(t, err)
		}
		spell, err := e.svc.Wiki.ImportArticle(ctx, ArticleInput{Title: "Shield", ContentType: wikiapi.ContentSpell, RawContent: "Level: 1"})
		require.NoError(t, err)
		_, err = e.svc.Wiki.LinkArticle(ctx, LinkInput{Entity: elara.Ref(), WikiArticleID: spell.ID})
		require.NoError(t, err)
		_, err = e.svc.Diary.CreateEntry(ctx, model.KindCharacter, elara.ID, DiaryInput{Description: "Arrived in Saltmarsh", Date: "2024-01-02"})
		require.NoError(t, err)
		_, err = e.svc.Relations.CreateRelation(ctx, RelationInput{
			CampaignID:   c.ID,
			Source:       ezra.Ref(),
			Target:       elara.Ref(),
			RelationType: "ally",
		})
		require.NoError(t, err)

		v, err := e.svc.Views.CharacterView(ctx, elara.ID)
		require.NoError(t, err)
		assert.Equal(t, "Elara", v.Entity.Name)
		require.Len(t, v.MagicItems, 2)
		// sorted by name
		assert.Equal(t, "Cloak of the Manta Ray", v.MagicItems[0].Name)
		assert.Equal(t, "rare", v.MagicItems[0].Rarity)
		assert.Equal(t, "manual", v.MagicItems[0].Source)
		require.Len(t, v.Wiki.Spells, 1)
		assert.Equal(t, "Shield", v.Wiki.Spells[0].Title)
		assert.Empty(t, v.Wiki.Monsters)
		require.Len(t, v.Diary, 1)
		require.Len(t, v.Relations, 1)
		assert.Equal(t, "Old Ezra", v.Relations[0].OtherName)
	})

	t.Run("Location and quest pages", func(t *testing.T) {
		loc := e.location(t, c.ID, "Saltmarsh")
		lv, err := e.svc.Views.LocationView(ctx, loc.ID)
		require.NoError(t, err)
		assert.Empty(t, lv.MagicItems)
		assert.Empty(t, lv.Wiki.Spells)

		q := e.quest(t, c.ID, "Retrieve the Lost Map")
		qv, err := e.svc.Views.QuestView(ctx, q.ID)
		require.NoError(t, err)
		assert.Equal(t, model.QuestActive, qv.Entity.Status)

		_, err = e.svc.Views.QuestView(ctx, 999)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Campaign overview", func(t *testing.T) {
		o, err := e.svc.Views.CampaignOverview(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, o.Adventures, 1)
		assert.Equal(t, "tomb-of-martek", o.Adventures[0].Slug)
		assert.Equal(t, int64(1), o.Counts.Adventures)
		assert.Equal(t, int64(1), o.Counts.Characters)
		assert.Equal(t, int64(1), o.Counts.NPCs)
		assert.Equal(t, int64(2), o.Counts.MagicItems)
		assert.Equal(t, int64(1), o.Counts.Relations)

		empty := e.campaign(t, "Empty")
		o, err = e.svc.Views.CampaignOverview(ctx, empty.ID)
		require.NoError(t, err)
		assert.NotNil(t, o.Adventures)
		assert.Empty(t, o.Adventures)
	})

	t.Run("Adventure by slug", func(t *testing.T) {
		aid := adv.ID
		for _, d := range []string{"2024-02-10", "2024-02-03"} {
			_, err := e.svc.Entities.Sessions.Create(ctx, &model.Session{CampaignID: c.ID, AdventureID: &aid, Title: "Session " + d, Date: d})
			require.NoError(t, err)
		}
		v, err := e.svc.Views.AdventureView(ctx, "tomb-of-martek")
		require.NoError(t, err)
		require.Len(t, v.Sessions, 2)
		assert.Equal(t, "2024-02-03", v.Sessions[0].Date)
		assert.NotNil(t, v.Quests)
		assert.Empty(t, v.Quests)

		_, err = e.svc.Views.AdventureView(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
