package codex

import (
	"fmt"

	"github.com/phturb/campaign-codex-backend-go/model"
	"gorm.io/gorm"
)

type resolved struct {
	Ref        model.EntityRef
	Name       string
	CampaignID uint
	Found      bool
}

type nameRow struct {
	ID            uint
	Name          string
	CampaignID    uint
	CharacterType model.CharacterType
}

// display column per entity table
var nameColumns = map[string]string{
	"characters":  "name",
	"locations":   "name",
	"quests":      "title",
	"magic_items": "name",
}

// resolveRefs looks every reference up in its kind's table with one query per table.
// References of unknown kinds or to missing rows come back with Found unset. Found
// character references carry the canonical kind of the row (npc or character).
func resolveRefs(tx *gorm.DB, refs []model.EntityRef) (map[model.EntityRef]resolved, error) {
	byTable := map[string][]uint{}
	for _, r := range refs {
		if t := r.Kind.Table(); t != "" {
			byTable[t] = append(byTable[t], r.ID)
		}
	}
	found := make(map[string]map[uint]nameRow, len(byTable))
	for table, ids := range byTable {
		cols := fmt.Sprintf("id, %s AS name, campaign_id", nameColumns[table])
		if table == "characters" {
			cols += ", character_type"
		}
		var rows []nameRow
		if err := tx.Table(table).
			Select(cols).
			Where("id IN ?", ids).
			Scan(&rows).Error; err != nil {
			return nil, databaseError("resolve "+table, err)
		}
		m := make(map[uint]nameRow, len(rows))
		for _, row := range rows {
			m[row.ID] = row
		}
		found[table] = m
	}
	out := make(map[model.EntityRef]resolved, len(refs))
	for _, r := range refs {
		row, ok := found[r.Kind.Table()][r.ID]
		ref := r
		if ok && r.Kind.Table() == "characters" {
			ref.Kind = model.KindForCharacter(row.CharacterType)
		}
		out[r] = resolved{Ref: ref, Name: row.Name, CampaignID: row.CampaignID, Found: ok}
	}
	return out, nil
}

// resolveRef resolves one reference, failing with not found when it does not exist.
func resolveRef(tx *gorm.DB, ref model.EntityRef) (resolved, error) {
	if !ref.Kind.Valid() {
		return resolved{}, fieldErrors{"entityType": fmt.Sprintf("unsupported entity type %q", ref.Kind)}.err()
	}
	res, err := resolveRefs(tx, []model.EntityRef{ref})
	if err != nil {
		return resolved{}, err
	}
	r := res[ref]
	if !r.Found {
		return r, notFound("%s %d not found", ref.Kind, ref.ID)
	}
	return r, nil
}

func exists(tx *gorm.DB, table any, id uint) (bool, error) {
	var n int64
	if err := tx.Model(table).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
