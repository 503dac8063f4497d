package codex

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/phturb/campaign-codex-backend-go/codex/view"
	"github.com/phturb/campaign-codex-backend-go/internal"
	"github.com/phturb/campaign-codex-backend-go/model"
	"gorm.io/gorm"
)

// Views composes the read side. Nothing is cached; every call re-runs its queries.
type Views interface {
	CharacterView(ctx context.Context, id uint) (*view.Entity[model.Character], error)
	LocationView(ctx context.Context, id uint) (*view.Entity[model.Location], error)
	QuestView(ctx context.Context, id uint) (*view.Entity[model.Quest], error)
	CampaignOverview(ctx context.Context, id uint) (*view.CampaignOverview, error)
	AdventureView(ctx context.Context, slug string) (*view.Adventure, error)
}

type views struct {
	d internal.Dependencies
}

var _ Views = (*views)(nil)

func NewViews(d internal.Dependencies) Views {
	return &views{d: d}
}

// jsonArray returns the dialect's expression aggregating one JSON object per joined
// row. Rows where present is NULL (left join without a match) add a null element.
// pairs alternates keys and column expressions.
func jsonArray(db *gorm.DB, present string, pairs ...string) string {
	fields := make([]string, 0, len(pairs))
	for i := 0; i+1 < len(pairs); i += 2 {
		fields = append(fields, fmt.Sprintf("'%s', %s", pairs[i], pairs[i+1]))
	}
	obj := strings.Join(fields, ", ")
	if db.Dialector.Name() == "postgres" {
		return fmt.Sprintf("COALESCE(json_agg(CASE WHEN %s IS NULL THEN NULL ELSE json_build_object(%s) END), '[]'::json)::text",
			present, obj)
	}
	return fmt.Sprintf("json_group_array(json(CASE WHEN %s IS NULL THEN NULL ELSE json_object(%s) END))", present, obj)
}

// aggregate runs q, which must select a single aggregate column, and decodes it.
// No row means the anchor entity does not exist.
func aggregate[T any](q *gorm.DB, what string) ([]T, error) {
	var raw sql.NullString
	if err := q.Row().Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("%s not found", what)
		}
		return nil, databaseError("aggregate "+what, err)
	}
	out, err := view.ParseAggregate[T](raw.String)
	if err != nil {
		return nil, databaseError("decode "+what, err)
	}
	return out, nil
}

func assignedItems(db *gorm.DB, ref model.EntityRef) ([]view.AssignedItem, error) {
	q := db.Table(ref.Kind.Table()+" AS e").
		Select(jsonArray(db, "m.id",
			"assignmentId", "a.id",
			"magicItemId", "m.id",
			"name", "m.name",
			"itemType", "m.item_type",
			"rarity", "m.rarity",
			"source", "a.source",
			"notes", "a.notes",
		)).
		Joins("LEFT JOIN magic_item_assignments a ON a.entity_id = e.id AND a.entity_type IN ?", kindStrings(ref.Kind.Aliases())).
		Joins("LEFT JOIN magic_items m ON m.id = a.magic_item_id").
		Where("e.id = ?", ref.ID).
		Group("e.id")
	items, err := aggregate[view.AssignedItem](q, ref.String())
	if err != nil {
		return nil, err
	}
	view.SortItems(items)
	return items, nil
}

func linkedArticles(db *gorm.DB, ref model.EntityRef) ([]view.LinkedArticle, error) {
	q := db.Table(ref.Kind.Table()+" AS e").
		Select(jsonArray(db, "w.id",
			"linkId", "l.id",
			"articleId", "w.id",
			"title", "w.title",
			"contentType", "w.content_type",
			"relationshipType", "l.relationship_type",
		)).
		Joins("LEFT JOIN wiki_article_entities l ON l.entity_id = e.id AND l.entity_type IN ?", kindStrings(ref.Kind.Aliases())).
		Joins("LEFT JOIN wiki_articles w ON w.id = l.wiki_article_id").
		Where("e.id = ?", ref.ID).
		Group("e.id")
	articles, err := aggregate[view.LinkedArticle](q, ref.String())
	if err != nil {
		return nil, err
	}
	view.SortArticles(articles)
	return articles, nil
}

// composeEntity gathers the sides of an entity page with one query per side, so the
// one-to-many joins never multiply each other.
func composeEntity[T any](db *gorm.DB, e T, ref model.EntityRef, campaignID uint) (*view.Entity[T], error) {
	items, err := assignedItems(db, ref)
	if err != nil {
		return nil, err
	}
	articles, err := linkedArticles(db, ref)
	if err != nil {
		return nil, err
	}
	diary, err := listDiary(db, ref.Kind, ref.ID)
	if err != nil {
		return nil, err
	}
	rels, err := listRelations(db, ref, &campaignID)
	if err != nil {
		return nil, err
	}
	return &view.Entity[T]{
		Entity:     e,
		MagicItems: items,
		Wiki:       view.Bucketize(articles),
		Diary:      diary,
		Relations:  rels,
	}, nil
}

func first[T any](db *gorm.DB, what string, id uint) (*T, error) {
	var v T
	if err := db.First(&v, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("%s %d not found", what, id)
		}
		return nil, databaseError("get "+what, err)
	}
	return &v, nil
}

func (v *views) CharacterView(ctx context.Context, id uint) (*view.Entity[model.Character], error) {
	db := v.d.Database(ctx)
	c, err := first[model.Character](db, "character", id)
	if err != nil {
		return nil, err
	}
	return composeEntity(db, *c, c.Ref(), c.CampaignID)
}

func (v *views) LocationView(ctx context.Context, id uint) (*view.Entity[model.Location], error) {
	db := v.d.Database(ctx)
	l, err := first[model.Location](db, "location", id)
	if err != nil {
		return nil, err
	}
	return composeEntity(db, *l, model.EntityRef{Kind: model.KindLocation, ID: l.ID}, l.CampaignID)
}

func (v *views) QuestView(ctx context.Context, id uint) (*view.Entity[model.Quest], error) {
	db := v.d.Database(ctx)
	q, err := first[model.Quest](db, "quest", id)
	if err != nil {
		return nil, err
	}
	return composeEntity(db, *q, model.EntityRef{Kind: model.KindQuest, ID: q.ID}, q.CampaignID)
}

func (v *views) CampaignOverview(ctx context.Context, id uint) (*view.CampaignOverview, error) {
	db := v.d.Database(ctx)
	var c model.Campaign
	if err := db.Preload("GameEdition").First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("campaign %d not found", id)
		}
		return nil, databaseError("get campaign", err)
	}
	q := db.Table("campaigns AS c").
		Select(jsonArray(db, "a.id",
			"id", "a.id",
			"title", "a.title",
			"slug", "a.slug",
			"status", "a.status",
		)).
		Joins("LEFT JOIN adventures a ON a.campaign_id = c.id").
		Where("c.id = ?", id).
		Group("c.id")
	adventures, err := aggregate[view.AdventureSummary](q, fmt.Sprintf("campaign %d", id))
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(adventures, func(a, b view.AdventureSummary) int { return cmp.Compare(a.ID, b.ID) })

	var counts view.Counts
	for _, cnt := range []struct {
		target *int64
		model  any
		where  string
		args   []any
	}{
		{&counts.Adventures, &model.Adventure{}, "", nil},
		{&counts.Sessions, &model.Session{}, "", nil},
		{&counts.Characters, &model.Character{}, "character_type <> ?", []any{model.CharacterNPC}},
		{&counts.NPCs, &model.Character{}, "character_type = ?", []any{model.CharacterNPC}},
		{&counts.Locations, &model.Location{}, "", nil},
		{&counts.Quests, &model.Quest{}, "", nil},
		{&counts.MagicItems, &model.MagicItem{}, "", nil},
		{&counts.Relations, &model.Relation{}, "", nil},
	} {
		cq := db.Model(cnt.model).Where("campaign_id = ?", id)
		if cnt.where != "" {
			cq = cq.Where(cnt.where, cnt.args...)
		}
		if err := cq.Count(cnt.target).Error; err != nil {
			return nil, databaseError("count campaign content", err)
		}
	}
	return &view.CampaignOverview{Campaign: c, Adventures: adventures, Counts: counts}, nil
}

func (v *views) AdventureView(ctx context.Context, slug string) (*view.Adventure, error) {
	db := v.d.Database(ctx)
	var a model.Adventure
	if err := db.Where("slug = ?", slug).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("adventure %q not found", slug)
		}
		return nil, databaseError("get adventure", err)
	}
	what := fmt.Sprintf("adventure %q", slug)
	sq := db.Table("adventures AS a").
		Select(jsonArray(db, "s.id",
			"id", "s.id",
			"title", "s.title",
			"date", "s.date",
		)).
		Joins("LEFT JOIN sessions s ON s.adventure_id = a.id").
		Where("a.id = ?", a.ID).
		Group("a.id")
	sessions, err := aggregate[view.SessionSummary](sq, what)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(sessions, func(x, y view.SessionSummary) int {
		return cmp.Or(cmp.Compare(x.Date, y.Date), cmp.Compare(x.ID, y.ID))
	})
	qq := db.Table("adventures AS a").
		Select(jsonArray(db, "q.id",
			"id", "q.id",
			"title", "q.title",
			"status", "q.status",
			"priority", "q.priority",
		)).
		Joins("LEFT JOIN quests q ON q.adventure_id = a.id").
		Where("a.id = ?", a.ID).
		Group("a.id")
	quests, err := aggregate[view.QuestSummary](qq, what)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(quests, func(x, y view.QuestSummary) int { return cmp.Compare(x.ID, y.ID) })
	return &view.Adventure{Adventure: a, Sessions: sessions, Quests: quests}, nil
}
