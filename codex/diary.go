package codex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phturb/campaign-codex-backend-go/internal"
	"github.com/phturb/campaign-codex-backend-go/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type DiaryInput struct {
	Description     string               `json:"description"`
	Date            string               `json:"date"`
	LinkedEntities  []model.LinkedEntity `json:"linkedEntities"`
	IsImportant     bool                 `json:"isImportant"`
	ExpectedVersion *int                 `json:"expectedVersion,omitempty"`
}

// Diary keeps the dated timeline of characters, locations and quests. Entries are
// addressed by (entry id, owner id); an entry never answers for another owner.
type Diary interface {
	CreateEntry(ctx context.Context, kind model.EntityKind, entityID uint, in DiaryInput) (*model.DiaryEntry, error)
	ListEntries(ctx context.Context, kind model.EntityKind, entityID uint) ([]model.DiaryEntry, error)
	UpdateEntry(ctx context.Context, kind model.EntityKind, entryID, entityID uint, in DiaryInput) (*model.DiaryEntry, error)
	DeleteEntry(ctx context.Context, kind model.EntityKind, entryID, entityID uint) error
}

type diary struct {
	d  internal.Dependencies
	rv Revalidator
}

var _ Diary = (*diary)(nil)

func NewDiary(d internal.Dependencies, rv Revalidator) Diary {
	return &diary{d: d, rv: rv}
}

func diaryTable(kind model.EntityKind) (string, error) {
	t := kind.DiaryTable()
	if t == "" {
		return "", fieldErrors{"entityType": fmt.Sprintf("%s has no diary", kind)}.err()
	}
	return t, nil
}

func ownerExists(tx *gorm.DB, kind model.EntityKind, id uint) error {
	var n int64
	if err := tx.Table(kind.Table()).Where("id = ?", id).Count(&n).Error; err != nil {
		return databaseError("check diary owner", err)
	}
	if n == 0 {
		return notFound("%s %d not found", kind, id)
	}
	return nil
}

func validateDiaryInput(in *DiaryInput) error {
	f := fieldErrors{}
	required(f, "description", &in.Description)
	in.Date = strings.TrimSpace(in.Date)
	if in.Date == "" {
		f.add("date", "date is required")
	} else if !validDate(in.Date) {
		f.add("date", "date must be formatted YYYY-MM-DD")
	}
	for i, le := range in.LinkedEntities {
		if !le.Type.Valid() {
			f.add(fmt.Sprintf("linkedEntities[%d].type", i), "unsupported entity type %q", le.Type)
		}
		if le.ID == 0 {
			f.add(fmt.Sprintf("linkedEntities[%d].id", i), "id is required")
		}
	}
	return f.err()
}

// snapshotLinks fills in names left empty by the caller. The stored name is a snapshot
// and is not refreshed when the linked entity is renamed.
func snapshotLinks(tx *gorm.DB, links []model.LinkedEntity) (datatypes.JSONSlice[model.LinkedEntity], error) {
	out := datatypes.JSONSlice[model.LinkedEntity]{}
	var missing []model.EntityRef
	for _, le := range links {
		le.Name = strings.TrimSpace(le.Name)
		if le.Name == "" {
			missing = append(missing, model.EntityRef{Kind: le.Type, ID: le.ID})
		}
		out = append(out, le)
	}
	if len(missing) == 0 {
		return out, nil
	}
	names, err := resolveRefs(tx, missing)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Name == "" {
			out[i].Name = names[model.EntityRef{Kind: out[i].Type, ID: out[i].ID}].Name
		}
	}
	return out, nil
}

func (dy *diary) CreateEntry(ctx context.Context, kind model.EntityKind, entityID uint, in DiaryInput) (*model.DiaryEntry, error) {
	slog.Info(fmt.Sprintf("[CreateEntry] - new diary entry for %s %d", kind, entityID))
	table, err := diaryTable(kind)
	if err != nil {
		return nil, err
	}
	if err := validateDiaryInput(&in); err != nil {
		return nil, err
	}
	var e model.DiaryEntry
	err = dy.d.Database(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ownerExists(tx, kind, entityID); err != nil {
			return err
		}
		links, err := snapshotLinks(tx, in.LinkedEntities)
		if err != nil {
			return err
		}
		e = model.DiaryEntry{
			EntityID:       entityID,
			Description:    in.Description,
			Date:           in.Date,
			LinkedEntities: links,
			IsImportant:    in.IsImportant,
			Version:        1,
		}
		if err := tx.Table(table).Create(&e).Error; err != nil {
			return databaseError("create diary entry", err)
		}
		return nil
	})
	if err != nil {
		slog.Warn(fmt.Sprintf("[CreateEntry] - rejected : %s", err.Error()))
		return nil, err
	}
	dy.rv.Revalidate(kind.Path(entityID))
	return &e, nil
}

func (dy *diary) ListEntries(ctx context.Context, kind model.EntityKind, entityID uint) ([]model.DiaryEntry, error) {
	if _, err := diaryTable(kind); err != nil {
		return nil, err
	}
	db := dy.d.Database(ctx)
	if err := ownerExists(db, kind, entityID); err != nil {
		return nil, err
	}
	return listDiary(db, kind, entityID)
}

func listDiary(db *gorm.DB, kind model.EntityKind, entityID uint) ([]model.DiaryEntry, error) {
	out := make([]model.DiaryEntry, 0)
	if err := db.Table(kind.DiaryTable()).
		Where("entity_id = ?", entityID).
		Order("date ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, databaseError("list diary entries", err)
	}
	return out, nil
}

func findEntry(tx *gorm.DB, table string, entryID, entityID uint) (model.DiaryEntry, error) {
	var e model.DiaryEntry
	if err := tx.Table(table).Where("id = ? AND entity_id = ?", entryID, entityID).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return e, notFound("diary entry %d not found for entity %d", entryID, entityID)
		}
		return e, databaseError("get diary entry", err)
	}
	return e, nil
}

func (dy *diary) UpdateEntry(ctx context.Context, kind model.EntityKind, entryID, entityID uint, in DiaryInput) (*model.DiaryEntry, error) {
	slog.Info(fmt.Sprintf("[UpdateEntry] - updating diary entry %d of %s %d", entryID, kind, entityID))
	table, err := diaryTable(kind)
	if err != nil {
		return nil, err
	}
	if err := validateDiaryInput(&in); err != nil {
		return nil, err
	}
	var e model.DiaryEntry
	err = dy.d.Database(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := findEntry(tx, table, entryID, entityID)
		if err != nil {
			return err
		}
		if in.ExpectedVersion != nil && *in.ExpectedVersion != cur.Version {
			return conflict("diary entry %d is at version %d, not %d", entryID, cur.Version, *in.ExpectedVersion)
		}
		links, err := snapshotLinks(tx, in.LinkedEntities)
		if err != nil {
			return err
		}
		res := tx.Table(table).
			Where("id = ? AND entity_id = ? AND version = ?", entryID, entityID, cur.Version).
			Updates(map[string]any{
				"description":     in.Description,
				"date":            in.Date,
				"linked_entities": links,
				"is_important":    in.IsImportant,
				"version":         cur.Version + 1,
				"updated_at":      time.Now(),
			})
		if res.Error != nil {
			return databaseError("update diary entry", res.Error)
		}
		if res.RowsAffected == 0 {
			return conflict("diary entry %d was modified concurrently", entryID)
		}
		e, err = findEntry(tx, table, entryID, entityID)
		return err
	})
	if err != nil {
		slog.Warn(fmt.Sprintf("[UpdateEntry] - rejected : %s", err.Error()))
		return nil, err
	}
	dy.rv.Revalidate(kind.Path(entityID))
	return &e, nil
}

func (dy *diary) DeleteEntry(ctx context.Context, kind model.EntityKind, entryID, entityID uint) error {
	table, err := diaryTable(kind)
	if err != nil {
		return err
	}
	res := dy.d.Database(ctx).Table(table).
		Where("id = ? AND entity_id = ?", entryID, entityID).
		Delete(&model.DiaryEntry{})
	if res.Error != nil {
		return databaseError("delete diary entry", res.Error)
	}
	if res.RowsAffected == 0 {
		slog.Warn(fmt.Sprintf("[DeleteEntry] - no diary entry %d for %s %d", entryID, kind, entityID))
		return notFound("diary entry %d not found for entity %d", entryID, entityID)
	}
	slog.Info(fmt.Sprintf("[DeleteEntry] - diary entry %d of %s %d deleted", entryID, kind, entityID))
	dy.rv.Revalidate(kind.Path(entityID))
	return nil
}
