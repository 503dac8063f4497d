package codex

import (
	"context"
	"testing"

	"github.com/phturb/campaign-codex-backend-go/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestE2ECampaignFlow(t *testing.T) {
	e := setupTest(t)
	ctx := context.Background()

	var c *model.Campaign
	var adv *model.Adventure
	var elara *model.Character
	var ezra *model.Character

	t.Run("Create campaign and adventure", func(t *testing.T) {
		var err error
		c, err = e.svc.Entities.Campaigns.Create(ctx, &model.Campaign{Title: "Ghosts of Saltmarsh", Status: model.StatusActive})
		require.NoError(t, err)
		adv, err = e.svc.Entities.Adventures.Create(ctx, &model.Adventure{CampaignID: c.ID, Title: "Tomb of Martek"})
		require.NoError(t, err)
		assert.Equal(t, c.ID, adv.CampaignID)
	})

	t.Run("Create characters in the adventure", func(t *testing.T) {
		var err error
		elara, err = e.svc.Entities.Characters.Create(ctx, &model.Character{
			CampaignID:    c.ID,
			AdventureID:   &adv.ID,
			Name:          "Elara",
			CharacterType: model.CharacterPC,
		})
		require.NoError(t, err)
		ezra, err = e.svc.Entities.Characters.Create(ctx, &model.Character{
			CampaignID:    c.ID,
			Name:          "Old Ezra",
			CharacterType: model.CharacterNPC,
		})
		require.NoError(t, err)
	})

	t.Run("Relate Old Ezra to Elara", func(t *testing.T) {
		_, err := e.svc.Relations.CreateRelation(ctx, RelationInput{
			CampaignID:    c.ID,
			Source:        model.EntityRef{Kind: model.KindNPC, ID: ezra.ID},
			Target:        model.EntityRef{Kind: model.KindCharacter, ID: elara.ID},
			RelationType:  "ally",
			Bidirectional: true,
		})
		require.NoError(t, err)

		rels, err := e.svc.Relations.ListRelationsForEntity(ctx, model.EntityRef{Kind: model.KindCharacter, ID: elara.ID}, nil)
		require.NoError(t, err)
		require.Len(t, rels, 1)
		assert.Equal(t, "Old Ezra", rels[0].OtherName)
		assert.Equal(t, "ally", rels[0].Relation.RelationType)
		assert.True(t, rels[0].Relation.Bidirectional)
	})

	t.Run("Duplicate relation leaves the count at one", func(t *testing.T) {
		_, err := e.svc.Relations.CreateRelation(ctx, RelationInput{
			CampaignID:   c.ID,
			Source:       model.EntityRef{Kind: model.KindNPC, ID: ezra.ID},
			Target:       model.EntityRef{Kind: model.KindCharacter, ID: elara.ID},
			RelationType: "ally",
		})
		res := ResultFromError(err)
		assert.False(t, res.Success)
		assert.Equal(t, ErrorDuplicate, res.ErrorType)

		n, err := e.svc.Relations.CountRelations(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("Quest diary timeline", func(t *testing.T) {
		q, err := e.svc.Entities.Quests.Create(ctx, &model.Quest{CampaignID: c.ID, AdventureID: &adv.ID, Title: "Retrieve the Lost Map"})
		require.NoError(t, err)
		for _, d := range []string{"2024-01-12", "2024-01-05"} {
			_, err := e.svc.Diary.CreateEntry(ctx, model.KindQuest, q.ID, DiaryInput{Description: "Entry " + d, Date: d})
			require.NoError(t, err)
		}

		v, err := e.svc.Views.QuestView(ctx, q.ID)
		require.NoError(t, err)
		require.Len(t, v.Diary, 2)
		assert.Equal(t, "2024-01-05", v.Diary[0].Date)
		assert.Equal(t, "2024-01-12", v.Diary[1].Date)
		for _, en := range v.Diary {
			assert.Empty(t, en.LinkedEntities)
		}
	})
}
