package codex

import (
	"fmt"

	"github.com/phturb/campaign-codex-backend-go/model"
	"gorm.io/gorm"
)

// Deletion policy: an owner takes everything it owns with it. Campaigns own adventures
// and everything scoped to the campaign, adventures own what is scoped to the adventure,
// and referenceable entities own the edges, diary entries and wiki links that point at
// them. Wiki articles are shared and are never removed through an entity.

// purgeEdges deletes every relation, assignment, wiki link and diary entry attached to
// the entities of kind with the given ids.
func purgeEdges(tx *gorm.DB, kind model.EntityKind, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	kinds := kindStrings(kind.Aliases())
	if err := tx.Where("(source_type IN ? AND source_id IN ?) OR (target_type IN ? AND target_id IN ?)",
		kinds, ids, kinds, ids).Delete(&model.Relation{}).Error; err != nil {
		return databaseError("purge relations", err)
	}
	if err := tx.Where("entity_type IN ? AND entity_id IN ?", kinds, ids).
		Delete(&model.MagicItemAssignment{}).Error; err != nil {
		return databaseError("purge assignments", err)
	}
	if kind == model.KindMagicItem {
		if err := tx.Where("magic_item_id IN ?", ids).Delete(&model.MagicItemAssignment{}).Error; err != nil {
			return databaseError("purge item assignments", err)
		}
	}
	if err := tx.Where("entity_type IN ? AND entity_id IN ?", kinds, ids).
		Delete(&model.WikiArticleEntity{}).Error; err != nil {
		return databaseError("purge wiki links", err)
	}
	if table := kind.DiaryTable(); table != "" {
		if err := tx.Table(table).Where("entity_id IN ?", ids).Delete(&model.DiaryEntry{}).Error; err != nil {
			return databaseError("purge "+table, err)
		}
	}
	return nil
}

type scopedTable struct {
	model any
	kind  model.EntityKind
}

var scopedTables = []scopedTable{
	{&model.Character{}, model.KindCharacter},
	{&model.Location{}, model.KindLocation},
	{&model.Quest{}, model.KindQuest},
	{&model.MagicItem{}, model.KindMagicItem},
}

// removeScoped deletes sessions and referenceable entities matching column = id.
func removeScoped(tx *gorm.DB, column string, id uint) error {
	cond := fmt.Sprintf("%s = ?", column)
	for _, st := range scopedTables {
		var ids []uint
		if err := tx.Model(st.model).Where(cond, id).Pluck("id", &ids).Error; err != nil {
			return databaseError("collect "+string(st.kind), err)
		}
		if err := purgeEdges(tx, st.kind, ids); err != nil {
			return err
		}
		if len(ids) == 0 {
			continue
		}
		if err := tx.Where("id IN ?", ids).Delete(st.model).Error; err != nil {
			return databaseError("delete "+string(st.kind), err)
		}
	}
	if err := tx.Where(cond, id).Delete(&model.Session{}).Error; err != nil {
		return databaseError("delete sessions", err)
	}
	return nil
}

func removeAdventure(tx *gorm.DB, a *model.Adventure) error {
	return removeScoped(tx, "adventure_id", a.ID)
}

func removeCampaign(tx *gorm.DB, c *model.Campaign) error {
	if err := removeScoped(tx, "campaign_id", c.ID); err != nil {
		return err
	}
	if err := tx.Where("campaign_id = ?", c.ID).Delete(&model.Adventure{}).Error; err != nil {
		return databaseError("delete adventures", err)
	}
	// edges whose endpoints lived in another campaign are still owned by this one
	if err := tx.Where("campaign_id = ?", c.ID).Delete(&model.Relation{}).Error; err != nil {
		return databaseError("delete relations", err)
	}
	if err := tx.Where("campaign_id = ?", c.ID).Delete(&model.MagicItemAssignment{}).Error; err != nil {
		return databaseError("delete assignments", err)
	}
	return nil
}

// removeEdition refuses to delete an edition still referenced by a campaign; editions
// are shared reference data, not owners.
func removeEdition(tx *gorm.DB, e *model.GameEdition) error {
	var n int64
	if err := tx.Model(&model.Campaign{}).Where("game_edition_id = ?", e.ID).Count(&n).Error; err != nil {
		return databaseError("check edition usage", err)
	}
	if n > 0 {
		return conflict("game edition %q is used by %d campaign(s)", e.Name, n)
	}
	return nil
}
