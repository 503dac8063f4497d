package codex

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phturb/campaign-codex-backend-go/internal"
	"github.com/phturb/campaign-codex-backend-go/model"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// Dangling is a row holding a reference that no longer resolves.
type Dangling struct {
	Table string          `json:"table"`
	ID    uint            `json:"id"`
	Ref   model.EntityRef `json:"ref"`
}

type AuditReport struct {
	CheckedAt    time.Time  `json:"checkedAt"`
	Relations    []Dangling `json:"relations"`
	Assignments  []Dangling `json:"assignments"`
	WikiLinks    []Dangling `json:"wikiLinks"`
	DiaryEntries []Dangling `json:"diaryEntries"`
}

func (r *AuditReport) Total() int {
	return len(r.Relations) + len(r.Assignments) + len(r.WikiLinks) + len(r.DiaryEntries)
}

func (r *AuditReport) Clean() bool {
	return r.Total() == 0
}

// Auditor walks the edge tables looking for soft references whose target is gone.
type Auditor interface {
	Audit(ctx context.Context) (*AuditReport, error)
}

type auditor struct {
	d internal.Dependencies
}

var _ Auditor = (*auditor)(nil)

func NewAuditor(d internal.Dependencies) Auditor {
	return &auditor{d: d}
}

// wikiArticleKind only labels dangling article references in reports; it is never stored.
const wikiArticleKind model.EntityKind = "wiki_article"

type pending struct {
	table string
	id    uint
	ref   model.EntityRef
	into  *[]Dangling
}

func (a *auditor) Audit(ctx context.Context) (*AuditReport, error) {
	slog.Info("[Audit] - checking soft references")
	r := &AuditReport{
		CheckedAt:    time.Now().UTC(),
		Relations:    []Dangling{},
		Assignments:  []Dangling{},
		WikiLinks:    []Dangling{},
		DiaryEntries: []Dangling{},
	}
	err := a.d.Database(ctx).Transaction(func(tx *gorm.DB) error {
		var checks []pending

		var rels []model.Relation
		if err := tx.Select("id", "source_type", "source_id", "target_type", "target_id").Find(&rels).Error; err != nil {
			return databaseError("audit relations", err)
		}
		for _, rel := range rels {
			checks = append(checks,
				pending{"relations", rel.ID, rel.Source(), &r.Relations},
				pending{"relations", rel.ID, rel.Target(), &r.Relations})
		}

		var asg []model.MagicItemAssignment
		if err := tx.Select("id", "entity_type", "entity_id", "magic_item_id").Find(&asg).Error; err != nil {
			return databaseError("audit assignments", err)
		}
		for _, as := range asg {
			checks = append(checks,
				pending{"magic_item_assignments", as.ID, model.EntityRef{Kind: as.EntityType, ID: as.EntityID}, &r.Assignments},
				pending{"magic_item_assignments", as.ID, model.EntityRef{Kind: model.KindMagicItem, ID: as.MagicItemID}, &r.Assignments})
		}

		var links []model.WikiArticleEntity
		if err := tx.Select("id", "entity_type", "entity_id", "wiki_article_id").Find(&links).Error; err != nil {
			return databaseError("audit wiki links", err)
		}
		var articles []uint
		if err := tx.Model(&model.WikiArticle{}).Pluck("id", &articles).Error; err != nil {
			return databaseError("audit wiki articles", err)
		}
		known := make(map[uint]bool, len(articles))
		for _, id := range articles {
			known[id] = true
		}
		for _, l := range links {
			checks = append(checks, pending{"wiki_article_entities", l.ID, model.EntityRef{Kind: l.EntityType, ID: l.EntityID}, &r.WikiLinks})
			if !known[l.WikiArticleID] {
				r.WikiLinks = append(r.WikiLinks, Dangling{
					Table: "wiki_article_entities",
					ID:    l.ID,
					Ref:   model.EntityRef{Kind: wikiArticleKind, ID: l.WikiArticleID},
				})
			}
		}

		for _, kind := range []model.EntityKind{model.KindCharacter, model.KindLocation, model.KindQuest} {
			var entries []model.DiaryEntry
			if err := tx.Table(kind.DiaryTable()).Select("id", "entity_id").Find(&entries).Error; err != nil {
				return databaseError("audit "+kind.DiaryTable(), err)
			}
			for _, e := range entries {
				checks = append(checks, pending{kind.DiaryTable(), e.ID, model.EntityRef{Kind: kind, ID: e.EntityID}, &r.DiaryEntries})
			}
		}

		refs := make([]model.EntityRef, 0, len(checks))
		for _, c := range checks {
			refs = append(refs, c.ref)
		}
		found, err := resolveRefs(tx, refs)
		if err != nil {
			return err
		}
		for _, c := range checks {
			if !found[c.ref].Found {
				*c.into = append(*c.into, Dangling{Table: c.table, ID: c.id, Ref: c.ref})
			}
		}
		return nil
	})
	if err != nil {
		slog.Error(fmt.Sprintf("[Audit] - failed : %s", err.Error()))
		return nil, err
	}
	if r.Clean() {
		slog.Info("[Audit] - no dangling references")
	} else {
		slog.Warn(fmt.Sprintf("[Audit] - %d dangling references (relations %d, assignments %d, wiki links %d, diary entries %d)",
			r.Total(), len(r.Relations), len(r.Assignments), len(r.WikiLinks), len(r.DiaryEntries)))
	}
	return r, nil
}

// ScheduleAudit registers the audit on c with a standard five field cron spec.
func ScheduleAudit(ctx context.Context, c *cron.Cron, spec string, a Auditor) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		if _, err := a.Audit(ctx); err != nil {
			slog.Error(fmt.Sprintf("[ScheduleAudit] - scheduled audit failed : %s", err.Error()))
		}
	})
	if err != nil {
		return 0, fmt.Errorf("schedule audit %q: %w", spec, err)
	}
	slog.Info(fmt.Sprintf("[ScheduleAudit] - audit scheduled with %q", spec))
	return id, nil
}
