package codex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phturb/campaign-codex-backend-go/codex/view"
	"github.com/phturb/campaign-codex-backend-go/internal"
	"github.com/phturb/campaign-codex-backend-go/model"
	"github.com/phturb/campaign-codex-backend-go/model/wikiapi"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultRelationshipType = "reference"

type ArticleInput struct {
	Title       string              `json:"title"`
	ContentType wikiapi.ContentType `json:"contentType"`
	RawContent  string              `json:"rawContent"`
	Source      string              `json:"source"`
}

type LinkInput struct {
	Entity           model.EntityRef `json:"entity"`
	WikiArticleID    uint            `json:"wikiArticleId"`
	RelationshipType string          `json:"relationshipType"`
	RelationshipData map[string]any  `json:"relationshipData,omitempty"`
}

type WikiLinker interface {
	ImportArticle(ctx context.Context, in ArticleInput) (*model.WikiArticle, error)
	GetArticle(ctx context.Context, id uint) (*model.WikiArticle, error)
	ListArticles(ctx context.Context, ct wikiapi.ContentType) ([]model.WikiArticle, error)
	DeleteArticle(ctx context.Context, id uint) error
	LinkArticle(ctx context.Context, in LinkInput) (*model.WikiArticleEntity, error)
	ListLinkedArticles(ctx context.Context, ref model.EntityRef) (view.WikiBuckets, error)
	RemoveWikiItem(ctx context.Context, wikiArticleID uint, ct wikiapi.ContentType, ref model.EntityRef) error
}

type wikiLinker struct {
	d  internal.Dependencies
	rv Revalidator
}

var _ WikiLinker = (*wikiLinker)(nil)

func NewWikiLinker(d internal.Dependencies, rv Revalidator) WikiLinker {
	return &wikiLinker{d: d, rv: rv}
}

// linkedPaths returns the detail paths of every entity linked to the article.
func linkedPaths(tx *gorm.DB, articleID uint) ([]string, error) {
	var links []model.WikiArticleEntity
	if err := tx.Select("entity_type", "entity_id").Where("wiki_article_id = ?", articleID).Find(&links).Error; err != nil {
		return nil, databaseError("list wiki links", err)
	}
	paths := make([]string, 0, len(links))
	for _, l := range links {
		paths = append(paths, l.EntityType.Path(l.EntityID))
	}
	return paths, nil
}

// ImportArticle stores the article, replacing the content of an existing article with
// the same title and content type.
func (w *wikiLinker) ImportArticle(ctx context.Context, in ArticleInput) (*model.WikiArticle, error) {
	slog.Info(fmt.Sprintf("[ImportArticle] - importing %s %q", in.ContentType, in.Title))
	f := fieldErrors{}
	required(f, "title", &in.Title)
	ct, err := wikiapi.ContentTypeFromString(string(in.ContentType))
	if err != nil {
		f.add("contentType", "unsupported content type %q", in.ContentType)
	}
	var parsed wikiapi.ParsedData
	if err == nil {
		if parsed, err = wikiapi.Parse(ct, in.RawContent); err != nil {
			f.add("rawContent", "%s", err.Error())
		}
	}
	if err := f.err(); err != nil {
		return nil, err
	}
	a := model.WikiArticle{
		Title:       in.Title,
		ContentType: ct,
		RawContent:  in.RawContent,
		ParsedData:  datatypes.NewJSONType(parsed),
		Source:      strings.TrimSpace(in.Source),
	}
	var stale []string
	err = w.d.Database(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "title"}, {Name: "content_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"raw_content", "parsed_data", "source", "updated_at"}),
		}).Create(&a).Error; err != nil {
			return databaseError("import wiki article", err)
		}
		if err := tx.Where("title = ? AND content_type = ?", a.Title, a.ContentType).First(&a).Error; err != nil {
			return databaseError("reload wiki article", err)
		}
		paths, err := linkedPaths(tx, a.ID)
		stale = paths
		return err
	})
	if err != nil {
		slog.Warn(fmt.Sprintf("[ImportArticle] - rejected : %s", err.Error()))
		return nil, err
	}
	w.rv.Revalidate(append(stale, "/wiki")...)
	return &a, nil
}

func (w *wikiLinker) GetArticle(ctx context.Context, id uint) (*model.WikiArticle, error) {
	var a model.WikiArticle
	if err := w.d.Database(ctx).First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("wiki article %d not found", id)
		}
		return nil, databaseError("get wiki article", err)
	}
	return &a, nil
}

// ListArticles lists every article, or only those of ct when it is set.
func (w *wikiLinker) ListArticles(ctx context.Context, ct wikiapi.ContentType) ([]model.WikiArticle, error) {
	q := w.d.Database(ctx).Model(&model.WikiArticle{})
	if ct != "" {
		q = q.Where("content_type = ?", ct)
	}
	out := make([]model.WikiArticle, 0)
	if err := q.Order("title, id").Find(&out).Error; err != nil {
		return nil, databaseError("list wiki articles", err)
	}
	return out, nil
}

func (w *wikiLinker) DeleteArticle(ctx context.Context, id uint) error {
	var stale []string
	err := w.d.Database(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := exists(tx, &model.WikiArticle{}, id)
		if err != nil {
			return databaseError("check wiki article", err)
		}
		if !ok {
			return notFound("wiki article %d not found", id)
		}
		if stale, err = linkedPaths(tx, id); err != nil {
			return err
		}
		if err := tx.Where("wiki_article_id = ?", id).Delete(&model.WikiArticleEntity{}).Error; err != nil {
			return databaseError("delete wiki links", err)
		}
		if err := tx.Delete(&model.WikiArticle{}, id).Error; err != nil {
			return databaseError("delete wiki article", err)
		}
		return nil
	})
	if err != nil {
		slog.Warn(fmt.Sprintf("[DeleteArticle] - %s", err.Error()))
		return err
	}
	slog.Info(fmt.Sprintf("[DeleteArticle] - wiki article %d deleted", id))
	w.rv.Revalidate(append(stale, "/wiki")...)
	return nil
}

func (w *wikiLinker) LinkArticle(ctx context.Context, in LinkInput) (*model.WikiArticleEntity, error) {
	slog.Info(fmt.Sprintf("[LinkArticle] - linking wiki article %d to %s", in.WikiArticleID, in.Entity))
	f := fieldErrors{}
	checkRef(f, "entity", in.Entity)
	if in.WikiArticleID == 0 {
		f.add("wikiArticleId", "wikiArticleId is required")
	}
	in.RelationshipType = strings.TrimSpace(in.RelationshipType)
	if in.RelationshipType == "" {
		in.RelationshipType = defaultRelationshipType
	}
	if err := f.err(); err != nil {
		return nil, err
	}
	var l model.WikiArticleEntity
	err := w.d.Database(ctx).Transaction(func(tx *gorm.DB) error {
		ent, err := resolveRef(tx, in.Entity)
		if err != nil {
			return err
		}
		ok, err := exists(tx, &model.WikiArticle{}, in.WikiArticleID)
		if err != nil {
			return databaseError("check wiki article", err)
		}
		if !ok {
			return notFound("wiki article %d not found", in.WikiArticleID)
		}
		l = model.WikiArticleEntity{
			EntityType:       ent.Ref.Kind,
			EntityID:         ent.Ref.ID,
			WikiArticleID:    in.WikiArticleID,
			RelationshipType: in.RelationshipType,
			RelationshipData: datatypes.JSONMap(in.RelationshipData),
		}
		if err := ensureUnique(tx, wikiLinkEdge(&l), 0); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(&l).Error; err != nil {
			return databaseError("create wiki link", err)
		}
		if err := tx.Preload("WikiArticle").First(&l, l.ID).Error; err != nil {
			return databaseError("reload wiki link", err)
		}
		return nil
	})
	if err != nil {
		slog.Warn(fmt.Sprintf("[LinkArticle] - rejected : %s", err.Error()))
		return nil, err
	}
	w.rv.Revalidate(l.EntityType.Path(l.EntityID))
	return &l, nil
}

func (w *wikiLinker) ListLinkedArticles(ctx context.Context, ref model.EntityRef) (view.WikiBuckets, error) {
	if !ref.Kind.Valid() {
		return view.WikiBuckets{}, fieldErrors{"entityType": fmt.Sprintf("unsupported entity type %q", ref.Kind)}.err()
	}
	articles, err := linkedArticles(w.d.Database(ctx), ref)
	if err != nil {
		return view.WikiBuckets{}, err
	}
	return view.Bucketize(articles), nil
}

// RemoveWikiItem detaches one article from one entity. The article itself and its links
// to other entities are kept.
func (w *wikiLinker) RemoveWikiItem(ctx context.Context, wikiArticleID uint, ct wikiapi.ContentType, ref model.EntityRef) error {
	slog.Info(fmt.Sprintf("[RemoveWikiItem] - removing wiki article %d (%s) from %s", wikiArticleID, ct, ref))
	f := fieldErrors{}
	checkRef(f, "entity", ref)
	if wikiArticleID == 0 {
		f.add("wikiArticleId", "wikiArticleId is required")
	}
	if err := f.err(); err != nil {
		return err
	}
	err := w.d.Database(ctx).Transaction(func(tx *gorm.DB) error {
		var a model.WikiArticle
		if err := tx.Select("id", "content_type").First(&a, wikiArticleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("wiki article %d not found", wikiArticleID)
			}
			return databaseError("get wiki article", err)
		}
		if ct != "" && a.ContentType != ct {
			return notFound("wiki article %d is not a %s", wikiArticleID, ct)
		}
		res := tx.Where("wiki_article_id = ? AND entity_type IN ? AND entity_id = ?",
			wikiArticleID, kindStrings(ref.Kind.Aliases()), ref.ID).
			Delete(&model.WikiArticleEntity{})
		if res.Error != nil {
			return databaseError("delete wiki link", res.Error)
		}
		if res.RowsAffected == 0 {
			return notFound("wiki article %d is not linked to %s", wikiArticleID, ref)
		}
		return nil
	})
	if err != nil {
		slog.Warn(fmt.Sprintf("[RemoveWikiItem] - %s", err.Error()))
		return err
	}
	w.rv.Revalidate(ref.Path())
	return nil
}
