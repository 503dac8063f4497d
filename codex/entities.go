package codex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phturb/campaign-codex-backend-go/internal"
	"github.com/phturb/campaign-codex-backend-go/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ListFilter struct {
	CampaignID  *uint
	AdventureID *uint
}

type EntityStore[T any] interface {
	Create(ctx context.Context, v *T) (*T, error)
	Get(ctx context.Context, id uint) (*T, error)
	List(ctx context.Context, f ListFilter) ([]T, error)
	Update(ctx context.Context, id uint, v *T) (*T, error)
	Delete(ctx context.Context, id uint) error
}

// Record is satisfied by pointers to every model embedding model.Model.
type Record[T any] interface {
	*T
	Base() *model.Model
}

type hooks[T any] struct {
	name string
	// prepare validates and normalizes v before it is written; id is 0 on create
	prepare func(tx *gorm.DB, v *T, id uint) error
	// remove deletes what depends on v before v itself is deleted
	remove  func(tx *gorm.DB, v *T) error
	paths   func(v *T) []string
	created func(ctx context.Context, v *T)
	// campaign points at the owning campaign id of scoped records, which never changes
	campaign func(v *T) *uint
	filter   func(q *gorm.DB, f ListFilter) *gorm.DB
	order    string
	preload  []string
}

type store[T any, P Record[T]] struct {
	d  internal.Dependencies
	rv Revalidator
	h  hooks[T]
}

var _ EntityStore[model.Campaign] = (*store[model.Campaign, *model.Campaign])(nil)

func (s *store[T, P]) Create(ctx context.Context, v *T) (*T, error) {
	base := P(v).Base()
	base.ID = 0
	err := s.d.Database(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.h.prepare(tx, v, 0); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(v).Error; err != nil {
			return databaseError("create "+s.h.name, err)
		}
		return nil
	})
	if err != nil {
		slog.Warn(fmt.Sprintf("[Create] - failed to create %s : %s", s.h.name, err.Error()))
		return nil, err
	}
	slog.Info(fmt.Sprintf("[Create] - %s %d created", s.h.name, base.ID))
	s.rv.Revalidate(s.h.paths(v)...)
	if s.h.created != nil {
		s.h.created(ctx, v)
	}
	return s.Get(ctx, base.ID)
}

func (s *store[T, P]) Get(ctx context.Context, id uint) (*T, error) {
	var v T
	q := s.d.Database(ctx)
	for _, p := range s.h.preload {
		q = q.Preload(p)
	}
	if err := q.First(&v, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("%s %d not found", s.h.name, id)
		}
		return nil, databaseError("get "+s.h.name, err)
	}
	return &v, nil
}

func (s *store[T, P]) List(ctx context.Context, f ListFilter) ([]T, error) {
	q := s.d.Database(ctx).Model(new(T))
	if s.h.filter != nil {
		q = s.h.filter(q, f)
	}
	for _, p := range s.h.preload {
		q = q.Preload(p)
	}
	if s.h.order != "" {
		q = q.Order(s.h.order)
	}
	out := make([]T, 0)
	if err := q.Find(&out).Error; err != nil {
		return nil, databaseError("list "+s.h.name, err)
	}
	return out, nil
}

// Update replaces every mutable field of the record. Last write wins.
func (s *store[T, P]) Update(ctx context.Context, id uint, v *T) (*T, error) {
	var stale []string
	err := s.d.Database(ctx).Transaction(func(tx *gorm.DB) error {
		var existing T
		if err := tx.First(&existing, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("%s %d not found", s.h.name, id)
			}
			return databaseError("get "+s.h.name, err)
		}
		base := P(v).Base()
		base.ID = id
		base.CreatedAt = P(&existing).Base().CreatedAt
		if s.h.campaign != nil {
			cur, next := *s.h.campaign(&existing), s.h.campaign(v)
			if *next == 0 {
				*next = cur
			}
			if *next != cur {
				return fieldErrors{"campaignId": fmt.Sprintf("a %s cannot move to another campaign", s.h.name)}.err()
			}
		}
		if err := s.h.prepare(tx, v, id); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(v).Error; err != nil {
			return databaseError("update "+s.h.name, err)
		}
		stale = append(s.h.paths(&existing), s.h.paths(v)...)
		return nil
	})
	if err != nil {
		slog.Warn(fmt.Sprintf("[Update] - failed to update %s %d : %s", s.h.name, id, err.Error()))
		return nil, err
	}
	slog.Info(fmt.Sprintf("[Update] - %s %d updated", s.h.name, id))
	s.rv.Revalidate(stale...)
	return s.Get(ctx, id)
}

// Delete removes the record and, through the remove hook, everything it owns.
func (s *store[T, P]) Delete(ctx context.Context, id uint) error {
	var stale []string
	err := s.d.Database(ctx).Transaction(func(tx *gorm.DB) error {
		var existing T
		if err := tx.First(&existing, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("%s %d not found", s.h.name, id)
			}
			return databaseError("get "+s.h.name, err)
		}
		if s.h.remove != nil {
			if err := s.h.remove(tx, &existing); err != nil {
				return err
			}
		}
		if err := tx.Delete(&existing).Error; err != nil {
			return databaseError("delete "+s.h.name, err)
		}
		stale = s.h.paths(&existing)
		return nil
	})
	if err != nil {
		slog.Warn(fmt.Sprintf("[Delete] - failed to delete %s %d : %s", s.h.name, id, err.Error()))
		return err
	}
	slog.Info(fmt.Sprintf("[Delete] - %s %d deleted", s.h.name, id))
	s.rv.Revalidate(stale...)
	return nil
}

func byCampaign(q *gorm.DB, f ListFilter) *gorm.DB {
	if f.CampaignID != nil {
		q = q.Where("campaign_id = ?", *f.CampaignID)
	}
	return q
}

func byCampaignAndAdventure(q *gorm.DB, f ListFilter) *gorm.DB {
	q = byCampaign(q, f)
	if f.AdventureID != nil {
		q = q.Where("adventure_id = ?", *f.AdventureID)
	}
	return q
}

type Entities struct {
	Editions   EntityStore[model.GameEdition]
	Campaigns  EntityStore[model.Campaign]
	Adventures EntityStore[model.Adventure]
	Sessions   EntityStore[model.Session]
	Characters EntityStore[model.Character]
	Locations  EntityStore[model.Location]
	Quests     EntityStore[model.Quest]
	MagicItems EntityStore[model.MagicItem]
}

func NewEntities(d internal.Dependencies, rv Revalidator, n Notifier) *Entities {
	return &Entities{
		Editions: &store[model.GameEdition, *model.GameEdition]{d: d, rv: rv, h: hooks[model.GameEdition]{
			name:    "game edition",
			prepare: prepareEdition,
			remove:  removeEdition,
			paths:   func(*model.GameEdition) []string { return []string{"/editions"} },
			order:   "name",
		}},
		Campaigns: &store[model.Campaign, *model.Campaign]{d: d, rv: rv, h: hooks[model.Campaign]{
			name:    "campaign",
			prepare: prepareCampaign,
			remove:  removeCampaign,
			paths:   func(c *model.Campaign) []string { return []string{"/campaigns", campaignPath(c.ID)} },
			order:   "id",
			preload: []string{"GameEdition"},
		}},
		Adventures: &store[model.Adventure, *model.Adventure]{d: d, rv: rv, h: hooks[model.Adventure]{
			name:    "adventure",
			prepare: prepareAdventure,
			remove:  removeAdventure,
			paths: func(a *model.Adventure) []string {
				return []string{"/adventures/" + a.Slug, campaignPath(a.CampaignID)}
			},
			campaign: func(a *model.Adventure) *uint { return &a.CampaignID },
			filter:   byCampaign,
			order:    "id",
		}},
		Sessions: &store[model.Session, *model.Session]{d: d, rv: rv, h: hooks[model.Session]{
			name:    "session",
			prepare: prepareSession,
			paths: func(s *model.Session) []string {
				return []string{fmt.Sprintf("/sessions/%d", s.ID), campaignPath(s.CampaignID)}
			},
			created: func(ctx context.Context, s *model.Session) {
				if err := n.SessionLogged(ctx, s); err != nil {
					slog.Warn(fmt.Sprintf("[SessionLogged] - failed to announce session %d : %s", s.ID, err.Error()))
				}
			},
			campaign: func(s *model.Session) *uint { return &s.CampaignID },
			filter:   byCampaignAndAdventure,
			order:    "date, id",
		}},
		Characters: &store[model.Character, *model.Character]{d: d, rv: rv, h: hooks[model.Character]{
			name:    "character",
			prepare: prepareCharacter,
			remove: func(tx *gorm.DB, c *model.Character) error {
				return purgeEdges(tx, model.KindCharacter, []uint{c.ID})
			},
			paths: func(c *model.Character) []string {
				return []string{c.Ref().Path(), campaignPath(c.CampaignID)}
			},
			campaign: func(c *model.Character) *uint { return &c.CampaignID },
			filter:   byCampaignAndAdventure,
			order:    "name, id",
		}},
		Locations: &store[model.Location, *model.Location]{d: d, rv: rv, h: hooks[model.Location]{
			name:    "location",
			prepare: prepareLocation,
			remove: func(tx *gorm.DB, l *model.Location) error {
				return purgeEdges(tx, model.KindLocation, []uint{l.ID})
			},
			paths: func(l *model.Location) []string {
				return []string{model.KindLocation.Path(l.ID), campaignPath(l.CampaignID)}
			},
			campaign: func(l *model.Location) *uint { return &l.CampaignID },
			filter:   byCampaignAndAdventure,
			order:    "name, id",
		}},
		Quests: &store[model.Quest, *model.Quest]{d: d, rv: rv, h: hooks[model.Quest]{
			name:    "quest",
			prepare: prepareQuest,
			remove: func(tx *gorm.DB, q *model.Quest) error {
				return purgeEdges(tx, model.KindQuest, []uint{q.ID})
			},
			paths: func(q *model.Quest) []string {
				return []string{model.KindQuest.Path(q.ID), campaignPath(q.CampaignID)}
			},
			campaign: func(q *model.Quest) *uint { return &q.CampaignID },
			filter:   byCampaignAndAdventure,
			order:    "id",
		}},
		MagicItems: &store[model.MagicItem, *model.MagicItem]{d: d, rv: rv, h: hooks[model.MagicItem]{
			name:    "magic item",
			prepare: prepareMagicItem,
			remove: func(tx *gorm.DB, m *model.MagicItem) error {
				return purgeEdges(tx, model.KindMagicItem, []uint{m.ID})
			},
			paths: func(m *model.MagicItem) []string {
				return []string{model.KindMagicItem.Path(m.ID), campaignPath(m.CampaignID)}
			},
			campaign: func(m *model.MagicItem) *uint { return &m.CampaignID },
			filter:   byCampaignAndAdventure,
			order:    "name, id",
		}},
	}
}

var defaultEditions = []model.GameEdition{
	{Name: "Dungeons & Dragons 5th Edition (2014)", Abbreviation: "5e"},
	{Name: "Dungeons & Dragons 5th Edition (2024)", Abbreviation: "5.5e"},
	{Name: "Pathfinder 2nd Edition", Abbreviation: "PF2e"},
}

// SeedEditions inserts the built-in game editions, leaving existing rows untouched.
func SeedEditions(ctx context.Context, d internal.Dependencies) error {
	slog.Info("seeding game editions")
	eds := make([]model.GameEdition, len(defaultEditions))
	copy(eds, defaultEditions)
	if err := d.Database(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&eds).Error; err != nil {
		return databaseError("seed editions", err)
	}
	return nil
}
