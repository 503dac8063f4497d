package codex

import (
	"fmt"

	"github.com/phturb/campaign-codex-backend-go/model"
	"gorm.io/gorm"
)

// edge is the uniqueness identity of a row in one of the edge tables
// (relations, magic item assignments, wiki links).
type edge struct {
	label string
	table any
	conds map[string]any
}

func relationEdge(r *model.Relation) edge {
	return edge{
		label: fmt.Sprintf("relation %s -[%s]-> %s", r.Source(), r.RelationType, r.Target()),
		table: &model.Relation{},
		conds: map[string]any{
			"campaign_id":   r.CampaignID,
			"source_type":   kindStrings(r.SourceType.Aliases()),
			"source_id":     r.SourceID,
			"target_type":   kindStrings(r.TargetType.Aliases()),
			"target_id":     r.TargetID,
			"relation_type": r.RelationType,
		},
	}
}

func assignmentEdge(a *model.MagicItemAssignment) edge {
	return edge{
		label: fmt.Sprintf("assignment of magic item %d to %s:%d", a.MagicItemID, a.EntityType, a.EntityID),
		table: &model.MagicItemAssignment{},
		conds: map[string]any{
			"entity_type":   kindStrings(a.EntityType.Aliases()),
			"entity_id":     a.EntityID,
			"magic_item_id": a.MagicItemID,
		},
	}
}

func wikiLinkEdge(l *model.WikiArticleEntity) edge {
	return edge{
		label: fmt.Sprintf("link of wiki article %d to %s:%d", l.WikiArticleID, l.EntityType, l.EntityID),
		table: &model.WikiArticleEntity{},
		conds: map[string]any{
			"entity_type":     kindStrings(l.EntityType.Aliases()),
			"entity_id":       l.EntityID,
			"wiki_article_id": l.WikiArticleID,
		},
	}
}

// ensureUnique rejects e when another row (other than exceptID) already has its identity.
func ensureUnique(tx *gorm.DB, e edge, exceptID uint) error {
	q := tx.Model(e.table).Where(e.conds)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return databaseError("check "+e.label, err)
	}
	if n > 0 {
		return duplicate("%s already exists", e.label)
	}
	return nil
}

func kindStrings(kinds []model.EntityKind) []string {
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, string(k))
	}
	return out
}
