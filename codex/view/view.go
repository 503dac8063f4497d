package view

import (
	"encoding/json"
	"sort"

	sharedmodel "github.com/phturb/campaign-codex-backend-go/model"
	"github.com/phturb/campaign-codex-backend-go/model/wikiapi"
)

type Direction string

const (
	Outgoing Direction = "outgoing"
	Incoming Direction = "incoming"
)

// Relation is an edge seen from one of its endpoints.
type Relation struct {
	Relation  sharedmodel.Relation  `json:"relation"`
	Direction Direction             `json:"direction"`
	Other     sharedmodel.EntityRef `json:"other"`
	OtherName string                `json:"otherName"`
	Missing   bool                  `json:"missing,omitempty"`
}

type LinkedArticle struct {
	LinkID           uint                `json:"linkId"`
	ArticleID        uint                `json:"articleId"`
	Title            string              `json:"title"`
	ContentType      wikiapi.ContentType `json:"contentType"`
	RelationshipType string              `json:"relationshipType"`
}

type WikiBuckets struct {
	MagicItems []LinkedArticle `json:"magicItems"`
	Spells     []LinkedArticle `json:"spells"`
	Monsters   []LinkedArticle `json:"monsters"`
	Other      []LinkedArticle `json:"other"`
}

// Bucketize groups articles by the display bucket of their content type, keeping
// the input order inside each bucket.
func Bucketize(articles []LinkedArticle) WikiBuckets {
	b := WikiBuckets{
		MagicItems: []LinkedArticle{},
		Spells:     []LinkedArticle{},
		Monsters:   []LinkedArticle{},
		Other:      []LinkedArticle{},
	}
	for _, a := range articles {
		switch wikiapi.BucketFor(a.ContentType) {
		case wikiapi.BucketMagicItems:
			b.MagicItems = append(b.MagicItems, a)
		case wikiapi.BucketSpells:
			b.Spells = append(b.Spells, a)
		case wikiapi.BucketMonsters:
			b.Monsters = append(b.Monsters, a)
		default:
			b.Other = append(b.Other, a)
		}
	}
	return b
}

type AssignedItem struct {
	AssignmentID uint   `json:"assignmentId"`
	MagicItemID  uint   `json:"magicItemId"`
	Name         string `json:"name"`
	ItemType     string `json:"itemType"`
	Rarity       string `json:"rarity"`
	Source       string `json:"source"`
	Notes        string `json:"notes"`
}

// Entity is the detail page of a character, location or quest.
type Entity[T any] struct {
	Entity     T                        `json:"entity"`
	MagicItems []AssignedItem           `json:"magicItems"`
	Wiki       WikiBuckets              `json:"wiki"`
	Diary      []sharedmodel.DiaryEntry `json:"diary"`
	Relations  []Relation               `json:"relations"`
}

type AdventureSummary struct {
	ID     uint   `json:"id"`
	Title  string `json:"title"`
	Slug   string `json:"slug"`
	Status string `json:"status"`
}

type Counts struct {
	Adventures int64 `json:"adventures"`
	Sessions   int64 `json:"sessions"`
	Characters int64 `json:"characters"`
	NPCs       int64 `json:"npcs"`
	Locations  int64 `json:"locations"`
	Quests     int64 `json:"quests"`
	MagicItems int64 `json:"magicItems"`
	Relations  int64 `json:"relations"`
}

type CampaignOverview struct {
	Campaign   sharedmodel.Campaign `json:"campaign"`
	Adventures []AdventureSummary   `json:"adventures"`
	Counts     Counts               `json:"counts"`
}

type SessionSummary struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
	Date  string `json:"date"`
}

type QuestSummary struct {
	ID       uint   `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

type Adventure struct {
	Adventure sharedmodel.Adventure `json:"adventure"`
	Sessions  []SessionSummary      `json:"sessions"`
	Quests    []QuestSummary        `json:"quests"`
}

// ParseAggregate decodes a JSON array built by the database. Left joins without a
// match contribute null elements, which are dropped, so an empty side yields [].
func ParseAggregate[T any](raw string) ([]T, error) {
	out := make([]T, 0)
	if raw == "" {
		return out, nil
	}
	var items []*T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}
	for _, it := range items {
		if it != nil {
			out = append(out, *it)
		}
	}
	return out, nil
}

func SortArticles(a []LinkedArticle) {
	sort.SliceStable(a, func(i, j int) bool {
		if a[i].Title != a[j].Title {
			return a[i].Title < a[j].Title
		}
		return a[i].LinkID < a[j].LinkID
	})
}

func SortItems(items []AssignedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].AssignmentID < items[j].AssignmentID
	})
}
