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
	"gorm.io/gorm/clause"
)

type AssignInput struct {
	MagicItemID uint                   `json:"magicItemId"`
	Holder      model.EntityRef        `json:"holder"`
	Source      model.AssignmentSource `json:"source"`
	Notes       string                 `json:"notes"`
	Metadata    map[string]any         `json:"metadata,omitempty"`
}

// Assignments records which characters, locations or quests hold a magic item.
type Assignments interface {
	Assign(ctx context.Context, in AssignInput) (*model.MagicItemAssignment, error)
	Unassign(ctx context.Context, id uint) error
	ListForHolder(ctx context.Context, ref model.EntityRef) ([]model.MagicItemAssignment, error)
	ListForItem(ctx context.Context, magicItemID uint) ([]model.MagicItemAssignment, error)
}

type assignments struct {
	d  internal.Dependencies
	rv Revalidator
}

var _ Assignments = (*assignments)(nil)

func NewAssignments(d internal.Dependencies, rv Revalidator) Assignments {
	return &assignments{d: d, rv: rv}
}

func (s *assignments) Assign(ctx context.Context, in AssignInput) (*model.MagicItemAssignment, error) {
	slog.Info(fmt.Sprintf("[Assign] - assigning magic item %d to %s", in.MagicItemID, in.Holder))
	f := fieldErrors{}
	if in.MagicItemID == 0 {
		f.add("magicItemId", "magicItemId is required")
	}
	checkRef(f, "holder", in.Holder)
	if in.Holder.Kind == model.KindMagicItem {
		f.add("holder.type", "a magic item cannot hold another magic item")
	}
	switch in.Source {
	case "":
		in.Source = model.SourceManual
	case model.SourceManual, model.SourceWiki:
	default:
		f.add("source", "unknown assignment source %q", in.Source)
	}
	if err := f.err(); err != nil {
		return nil, err
	}
	var a model.MagicItemAssignment
	err := s.d.Database(ctx).Transaction(func(tx *gorm.DB) error {
		var item model.MagicItem
		if err := tx.Select("id", "campaign_id").First(&item, in.MagicItemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("magic item %d not found", in.MagicItemID)
			}
			return databaseError("get magic item", err)
		}
		holder, err := resolveRef(tx, in.Holder)
		if err != nil {
			return err
		}
		if holder.CampaignID != item.CampaignID {
			return fieldErrors{"holder": "holder belongs to another campaign"}.err()
		}
		a = model.MagicItemAssignment{
			CampaignID:  item.CampaignID,
			EntityType:  holder.Ref.Kind,
			EntityID:    holder.Ref.ID,
			MagicItemID: item.ID,
			Source:      in.Source,
			Notes:       strings.TrimSpace(in.Notes),
			Metadata:    datatypes.JSONMap(in.Metadata),
			AssignedAt:  time.Now(),
		}
		if err := ensureUnique(tx, assignmentEdge(&a), 0); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(&a).Error; err != nil {
			return databaseError("create assignment", err)
		}
		if err := tx.Preload("MagicItem").First(&a, a.ID).Error; err != nil {
			return databaseError("reload assignment", err)
		}
		return nil
	})
	if err != nil {
		slog.Warn(fmt.Sprintf("[Assign] - rejected : %s", err.Error()))
		return nil, err
	}
	s.rv.Revalidate(a.EntityType.Path(a.EntityID), model.KindMagicItem.Path(a.MagicItemID))
	return &a, nil
}

func (s *assignments) Unassign(ctx context.Context, id uint) error {
	var a model.MagicItemAssignment
	err := s.d.Database(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&a, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("assignment %d not found", id)
			}
			return databaseError("get assignment", err)
		}
		if err := tx.Delete(&a).Error; err != nil {
			return databaseError("delete assignment", err)
		}
		return nil
	})
	if err != nil {
		slog.Warn(fmt.Sprintf("[Unassign] - %s", err.Error()))
		return err
	}
	slog.Info(fmt.Sprintf("[Unassign] - assignment %d removed", id))
	s.rv.Revalidate(a.EntityType.Path(a.EntityID), model.KindMagicItem.Path(a.MagicItemID))
	return nil
}

func (s *assignments) ListForHolder(ctx context.Context, ref model.EntityRef) ([]model.MagicItemAssignment, error) {
	if !ref.Kind.Valid() {
		return nil, fieldErrors{"entityType": fmt.Sprintf("unsupported entity type %q", ref.Kind)}.err()
	}
	out := make([]model.MagicItemAssignment, 0)
	if err := s.d.Database(ctx).
		Preload("MagicItem").
		Where("entity_type IN ? AND entity_id = ?", kindStrings(ref.Kind.Aliases()), ref.ID).
		Order("id").
		Find(&out).Error; err != nil {
		return nil, databaseError("list assignments", err)
	}
	return out, nil
}

func (s *assignments) ListForItem(ctx context.Context, magicItemID uint) ([]model.MagicItemAssignment, error) {
	db := s.d.Database(ctx)
	ok, err := exists(db, &model.MagicItem{}, magicItemID)
	if err != nil {
		return nil, databaseError("check magic item", err)
	}
	if !ok {
		return nil, notFound("magic item %d not found", magicItemID)
	}
	out := make([]model.MagicItemAssignment, 0)
	if err := db.Where("magic_item_id = ?", magicItemID).Order("id").Find(&out).Error; err != nil {
		return nil, databaseError("list assignments", err)
	}
	return out, nil
}
