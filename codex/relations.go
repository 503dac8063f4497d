package codex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/phturb/campaign-codex-backend-go/codex/view"
	"github.com/phturb/campaign-codex-backend-go/internal"
	"github.com/phturb/campaign-codex-backend-go/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const metricLimit = 100

type RelationInput struct {
	CampaignID    uint                   `json:"campaignId"`
	Source        model.EntityRef        `json:"source"`
	Target        model.EntityRef        `json:"target"`
	RelationType  string                 `json:"relationType"`
	Description   string                 `json:"description"`
	Bidirectional bool                   `json:"bidirectional"`
	Metadata      model.RelationMetadata `json:"metadata"`
	// ExpectedVersion turns an update into a compare-and-swap when set.
	ExpectedVersion *int `json:"expectedVersion,omitempty"`
}

type RelationLedger interface {
	CreateRelation(ctx context.Context, in RelationInput) (*model.Relation, error)
	GetRelation(ctx context.Context, id uint) (*model.Relation, error)
	UpdateRelation(ctx context.Context, id uint, in RelationInput) (*model.Relation, error)
	DeleteRelation(ctx context.Context, id uint) error
	ListRelationsForEntity(ctx context.Context, ref model.EntityRef, campaignID *uint) ([]view.Relation, error)
	CountRelations(ctx context.Context, campaignID uint) (int64, error)
}

type relationLedger struct {
	d  internal.Dependencies
	rv Revalidator
}

var _ RelationLedger = (*relationLedger)(nil)

func NewRelationLedger(d internal.Dependencies, rv Revalidator) RelationLedger {
	return &relationLedger{d: d, rv: rv}
}

func checkRef(f fieldErrors, field string, ref model.EntityRef) {
	if !ref.Kind.Valid() {
		f.add(field+".type", "unsupported entity type %q", ref.Kind)
	}
	if ref.ID == 0 {
		f.add(field+".id", "%s id is required", field)
	}
}

func normalizeMetadata(f fieldErrors, m *model.RelationMetadata) {
	if m.Kind == "" {
		switch {
		case m.Metrics != nil:
			m.Kind = model.MetadataMetrics
		case len(m.Custom) > 0:
			m.Kind = model.MetadataCustom
		}
	}
	switch m.Kind {
	case "":
	case model.MetadataMetrics:
		m.Custom = nil
		if m.Metrics == nil {
			f.add("metadata.metrics", "metrics are required for metrics metadata")
			return
		}
		for name, v := range map[string]int{
			"strength": m.Metrics.Strength,
			"trust":    m.Metrics.Trust,
			"fear":     m.Metrics.Fear,
			"respect":  m.Metrics.Respect,
		} {
			if v < -metricLimit || v > metricLimit {
				f.add("metadata.metrics."+name, "must be between %d and %d", -metricLimit, metricLimit)
			}
		}
	case model.MetadataCustom:
		m.Metrics = nil
		if len(m.Custom) == 0 {
			f.add("metadata.custom", "custom metadata cannot be empty")
		}
	default:
		f.add("metadata.kind", "unknown metadata kind %q", m.Kind)
	}
}

func validateRelationInput(in *RelationInput) error {
	f := fieldErrors{}
	requireCampaign(f, in.CampaignID)
	checkRef(f, "source", in.Source)
	checkRef(f, "target", in.Target)
	in.RelationType = strings.ToLower(strings.TrimSpace(in.RelationType))
	if in.RelationType == "" {
		f.add("relationType", "relationType is required")
	}
	in.Description = strings.TrimSpace(in.Description)
	normalizeMetadata(f, &in.Metadata)
	return f.err()
}

// resolveEndpoints checks that both endpoints exist and returns them with canonical kinds.
func resolveEndpoints(tx *gorm.DB, in RelationInput) (resolved, resolved, error) {
	src, err := resolveRef(tx, in.Source)
	if err != nil {
		return resolved{}, resolved{}, err
	}
	tgt, err := resolveRef(tx, in.Target)
	if err != nil {
		return resolved{}, resolved{}, err
	}
	if src.Ref == tgt.Ref {
		return resolved{}, resolved{}, fieldErrors{"target": "an entity cannot relate to itself"}.err()
	}
	return src, tgt, nil
}

func (l *relationLedger) CreateRelation(ctx context.Context, in RelationInput) (*model.Relation, error) {
	slog.Info(fmt.Sprintf("[CreateRelation] - %s -[%s]-> %s in campaign %d", in.Source, in.RelationType, in.Target, in.CampaignID))
	if err := validateRelationInput(&in); err != nil {
		return nil, err
	}
	var r model.Relation
	err := l.d.Database(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := exists(tx, &model.Campaign{}, in.CampaignID)
		if err != nil {
			return databaseError("check campaign", err)
		}
		if !ok {
			return notFound("campaign %d not found", in.CampaignID)
		}
		src, tgt, err := resolveEndpoints(tx, in)
		if err != nil {
			return err
		}
		r = model.Relation{
			CampaignID:    in.CampaignID,
			SourceType:    src.Ref.Kind.Canonical(),
			SourceID:      src.Ref.ID,
			TargetType:    tgt.Ref.Kind.Canonical(),
			TargetID:      tgt.Ref.ID,
			RelationType:  in.RelationType,
			Description:   in.Description,
			Bidirectional: in.Bidirectional,
			Metadata:      datatypes.NewJSONType(in.Metadata),
			Version:       1,
		}
		// the reverse direction is a different edge, even when bidirectional
		if err := ensureUnique(tx, relationEdge(&r), 0); err != nil {
			return err
		}
		if err := tx.Create(&r).Error; err != nil {
			return databaseError("create relation", err)
		}
		return nil
	})
	if err != nil {
		slog.Warn(fmt.Sprintf("[CreateRelation] - rejected : %s", err.Error()))
		return nil, err
	}
	l.rv.Revalidate(r.Source().Path(), r.Target().Path(), campaignPath(r.CampaignID))
	return &r, nil
}

func (l *relationLedger) GetRelation(ctx context.Context, id uint) (*model.Relation, error) {
	var r model.Relation
	if err := l.d.Database(ctx).First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("relation %d not found", id)
		}
		return nil, databaseError("get relation", err)
	}
	return &r, nil
}

// UpdateRelation replaces the mutable fields of a relation. The new identity is checked
// against every other row of the campaign, and the write only lands on the version it
// was computed from.
func (l *relationLedger) UpdateRelation(ctx context.Context, id uint, in RelationInput) (*model.Relation, error) {
	slog.Info(fmt.Sprintf("[UpdateRelation] - updating relation %d", id))
	var r model.Relation
	var stale []string
	err := l.d.Database(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&r, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("relation %d not found", id)
			}
			return databaseError("get relation", err)
		}
		if in.CampaignID == 0 {
			in.CampaignID = r.CampaignID
		}
		if err := validateRelationInput(&in); err != nil {
			return err
		}
		if in.CampaignID != r.CampaignID {
			return fieldErrors{"campaignId": "a relation cannot move to another campaign"}.err()
		}
		if in.ExpectedVersion != nil && *in.ExpectedVersion != r.Version {
			return conflict("relation %d is at version %d, not %d", id, r.Version, *in.ExpectedVersion)
		}
		src, tgt, err := resolveEndpoints(tx, in)
		if err != nil {
			return err
		}
		stale = []string{r.Source().Path(), r.Target().Path()}
		prev := r.Version
		r.SourceType, r.SourceID = src.Ref.Kind.Canonical(), src.Ref.ID
		r.TargetType, r.TargetID = tgt.Ref.Kind.Canonical(), tgt.Ref.ID
		r.RelationType = in.RelationType
		r.Description = in.Description
		r.Bidirectional = in.Bidirectional
		r.Metadata = datatypes.NewJSONType(in.Metadata)
		r.Version = prev + 1
		if err := ensureUnique(tx, relationEdge(&r), r.ID); err != nil {
			return err
		}
		res := tx.Model(&model.Relation{}).Where("id = ? AND version = ?", r.ID, prev).Updates(map[string]any{
			"source_type":   string(r.SourceType),
			"source_id":     r.SourceID,
			"target_type":   string(r.TargetType),
			"target_id":     r.TargetID,
			"relation_type": r.RelationType,
			"description":   r.Description,
			"bidirectional": r.Bidirectional,
			"metadata":      r.Metadata,
			"version":       r.Version,
			"updated_at":    time.Now(),
		})
		if res.Error != nil {
			return databaseError("update relation", res.Error)
		}
		if res.RowsAffected == 0 {
			return conflict("relation %d was modified concurrently", id)
		}
		if err := tx.First(&r, id).Error; err != nil {
			return databaseError("reload relation", err)
		}
		return nil
	})
	if err != nil {
		slog.Warn(fmt.Sprintf("[UpdateRelation] - rejected : %s", err.Error()))
		return nil, err
	}
	l.rv.Revalidate(append(stale, r.Source().Path(), r.Target().Path(), campaignPath(r.CampaignID))...)
	return &r, nil
}

func (l *relationLedger) DeleteRelation(ctx context.Context, id uint) error {
	var r model.Relation
	err := l.d.Database(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&r, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("relation %d not found", id)
			}
			return databaseError("get relation", err)
		}
		if err := tx.Delete(&r).Error; err != nil {
			return databaseError("delete relation", err)
		}
		return nil
	})
	if err != nil {
		slog.Warn(fmt.Sprintf("[DeleteRelation] - %s", err.Error()))
		return err
	}
	slog.Info(fmt.Sprintf("[DeleteRelation] - relation %d deleted", id))
	l.rv.Revalidate(r.Source().Path(), r.Target().Path(), campaignPath(r.CampaignID))
	return nil
}

func (l *relationLedger) ListRelationsForEntity(ctx context.Context, ref model.EntityRef, campaignID *uint) ([]view.Relation, error) {
	if !ref.Kind.Valid() {
		return nil, fieldErrors{"entityType": fmt.Sprintf("unsupported entity type %q", ref.Kind)}.err()
	}
	return listRelations(l.d.Database(ctx), ref, campaignID)
}

func (l *relationLedger) CountRelations(ctx context.Context, campaignID uint) (int64, error) {
	var n int64
	if err := l.d.Database(ctx).Model(&model.Relation{}).Where("campaign_id = ?", campaignID).Count(&n).Error; err != nil {
		return 0, databaseError("count relations", err)
	}
	return n, nil
}

// listRelations returns every edge touching ref, each seen from ref's side with the
// other endpoint's name resolved through its kind's table.
func listRelations(db *gorm.DB, ref model.EntityRef, campaignID *uint) ([]view.Relation, error) {
	kinds := kindStrings(ref.Kind.Aliases())
	q := db.Where("((source_type IN ? AND source_id = ?) OR (target_type IN ? AND target_id = ?))",
		kinds, ref.ID, kinds, ref.ID)
	if campaignID != nil {
		q = q.Where("campaign_id = ?", *campaignID)
	}
	var rels []model.Relation
	if err := q.Order("id").Find(&rels).Error; err != nil {
		return nil, databaseError("list relations", err)
	}
	out := make([]view.Relation, 0, len(rels))
	others := make([]model.EntityRef, 0, len(rels))
	for _, r := range rels {
		vr := view.Relation{Relation: r, Direction: view.Outgoing, Other: r.Target()}
		if !(slices.Contains(kinds, string(r.SourceType)) && r.SourceID == ref.ID) {
			vr.Direction = view.Incoming
			vr.Other = r.Source()
		}
		out = append(out, vr)
		others = append(others, vr.Other)
	}
	names, err := resolveRefs(db, others)
	if err != nil {
		return nil, err
	}
	for i := range out {
		res := names[out[i].Other]
		out[i].OtherName = res.Name
		out[i].Missing = !res.Found
		if res.Found {
			out[i].Other = res.Ref
		}
	}
	return out, nil
}
