package codex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phturb/campaign-codex-backend-go/internal"
	"github.com/phturb/campaign-codex-backend-go/model"
	"gorm.io/gorm"
)

type DiaryExport struct {
	Characters []model.DiaryEntry `json:"characters"`
	Locations  []model.DiaryEntry `json:"locations"`
	Quests     []model.DiaryEntry `json:"quests"`
}

// CampaignExport is a self-contained snapshot of one campaign and the wiki articles it
// links to.
type CampaignExport struct {
	ExportID     string                      `json:"exportId"`
	ExportedAt   time.Time                   `json:"exportedAt"`
	Campaign     model.Campaign              `json:"campaign"`
	Adventures   []model.Adventure           `json:"adventures"`
	Sessions     []model.Session             `json:"sessions"`
	Characters   []model.Character           `json:"characters"`
	Locations    []model.Location            `json:"locations"`
	Quests       []model.Quest               `json:"quests"`
	MagicItems   []model.MagicItem           `json:"magicItems"`
	Relations    []model.Relation            `json:"relations"`
	Assignments  []model.MagicItemAssignment `json:"assignments"`
	Diary        DiaryExport                 `json:"diary"`
	WikiLinks    []model.WikiArticleEntity   `json:"wikiLinks"`
	WikiArticles []model.WikiArticle         `json:"wikiArticles"`
}

type Exporter interface {
	ExportCampaign(ctx context.Context, id uint) (*CampaignExport, error)
}

type exporter struct {
	d internal.Dependencies
}

var _ Exporter = (*exporter)(nil)

func NewExporter(d internal.Dependencies) Exporter {
	return &exporter{d: d}
}

func ids[T any](rows []T, id func(*T) uint) []uint {
	out := make([]uint, 0, len(rows))
	for i := range rows {
		out = append(out, id(&rows[i]))
	}
	return out
}

func findIn[T any](tx *gorm.DB, column string, values []uint) ([]T, error) {
	out := make([]T, 0)
	if len(values) == 0 {
		return out, nil
	}
	if err := tx.Where(column+" IN ?", values).Order("id").Find(&out).Error; err != nil {
		return nil, databaseError(fmt.Sprintf("export %T", out), err)
	}
	return out, nil
}

func diaryIn(tx *gorm.DB, kind model.EntityKind, owners []uint) ([]model.DiaryEntry, error) {
	out := make([]model.DiaryEntry, 0)
	if len(owners) == 0 {
		return out, nil
	}
	if err := tx.Table(kind.DiaryTable()).Where("entity_id IN ?", owners).Order("entity_id, date, id").Find(&out).Error; err != nil {
		return nil, databaseError("export "+kind.DiaryTable(), err)
	}
	return out, nil
}

func (e *exporter) ExportCampaign(ctx context.Context, id uint) (*CampaignExport, error) {
	out := &CampaignExport{ExportID: uuid.NewString(), ExportedAt: time.Now().UTC()}
	slog.Info(fmt.Sprintf("[ExportCampaign] - export %s of campaign %d", out.ExportID, id))
	err := e.d.Database(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("GameEdition").First(&out.Campaign, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("campaign %d not found", id)
			}
			return databaseError("get campaign", err)
		}
		scope := []uint{id}
		var err error
		if out.Adventures, err = findIn[model.Adventure](tx, "campaign_id", scope); err != nil {
			return err
		}
		if out.Sessions, err = findIn[model.Session](tx, "campaign_id", scope); err != nil {
			return err
		}
		if out.Characters, err = findIn[model.Character](tx, "campaign_id", scope); err != nil {
			return err
		}
		if out.Locations, err = findIn[model.Location](tx, "campaign_id", scope); err != nil {
			return err
		}
		if out.Quests, err = findIn[model.Quest](tx, "campaign_id", scope); err != nil {
			return err
		}
		if out.MagicItems, err = findIn[model.MagicItem](tx, "campaign_id", scope); err != nil {
			return err
		}
		if out.Relations, err = findIn[model.Relation](tx, "campaign_id", scope); err != nil {
			return err
		}
		if out.Assignments, err = findIn[model.MagicItemAssignment](tx, "campaign_id", scope); err != nil {
			return err
		}

		characters := ids(out.Characters, func(c *model.Character) uint { return c.ID })
		locations := ids(out.Locations, func(l *model.Location) uint { return l.ID })
		quests := ids(out.Quests, func(q *model.Quest) uint { return q.ID })
		items := ids(out.MagicItems, func(m *model.MagicItem) uint { return m.ID })
		if out.Diary.Characters, err = diaryIn(tx, model.KindCharacter, characters); err != nil {
			return err
		}
		if out.Diary.Locations, err = diaryIn(tx, model.KindLocation, locations); err != nil {
			return err
		}
		if out.Diary.Quests, err = diaryIn(tx, model.KindQuest, quests); err != nil {
			return err
		}

		out.WikiLinks = make([]model.WikiArticleEntity, 0)
		for _, owned := range []struct {
			kind model.EntityKind
			ids  []uint
		}{
			{model.KindCharacter, characters},
			{model.KindLocation, locations},
			{model.KindQuest, quests},
			{model.KindMagicItem, items},
		} {
			if len(owned.ids) == 0 {
				continue
			}
			var links []model.WikiArticleEntity
			if err := tx.Where("entity_type IN ? AND entity_id IN ?", kindStrings(owned.kind.Aliases()), owned.ids).
				Order("id").Find(&links).Error; err != nil {
				return databaseError("export wiki links", err)
			}
			out.WikiLinks = append(out.WikiLinks, links...)
		}
		articles := ids(out.WikiLinks, func(l *model.WikiArticleEntity) uint { return l.WikiArticleID })
		out.WikiArticles, err = findIn[model.WikiArticle](tx, "id", articles)
		return err
	})
	if err != nil {
		slog.Warn(fmt.Sprintf("[ExportCampaign] - export %s failed : %s", out.ExportID, err.Error()))
		return nil, err
	}
	slog.Info(fmt.Sprintf("[ExportCampaign] - export %s done: %d relations, %d wiki links",
		out.ExportID, len(out.Relations), len(out.WikiLinks)))
	return out, nil
}
