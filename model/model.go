package model

import (
	"time"

	"github.com/phturb/campaign-codex-backend-go/model/wikiapi"
	"gorm.io/datatypes"
)

type Model struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (m *Model) Base() *Model {
	return m
}

type Status string

const (
	StatusActive    Status = "active"
	StatusPlanning  Status = "planning"
	StatusCompleted Status = "completed"
	StatusHiatus    Status = "hiatus"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPlanning, StatusCompleted, StatusHiatus:
		return true
	}
	return false
}

type Image struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

type GameEdition struct {
	Model
	Name         string `gorm:"not null;uniqueIndex" json:"name"`
	Abbreviation string `json:"abbreviation"`
}

type Campaign struct {
	Model
	Title         string                      `gorm:"not null" json:"title"`
	Description   string                      `gorm:"type:text" json:"description"`
	Status        Status                      `gorm:"not null" json:"status"`
	StartDate     *string                     `json:"startDate,omitempty"`
	EndDate       *string                     `json:"endDate,omitempty"`
	GameEditionID *uint                       `gorm:"index" json:"gameEditionId,omitempty"`
	GameEdition   *GameEdition                `gorm:"foreignKey:GameEditionID" json:"gameEdition,omitempty"`
	Tags          datatypes.JSONSlice[string] `json:"tags"`
}

type Adventure struct {
	Model
	CampaignID  uint                       `gorm:"not null;index" json:"campaignId"`
	Title       string                     `gorm:"not null" json:"title"`
	Slug        string                     `gorm:"not null;uniqueIndex" json:"slug"`
	Description string                     `gorm:"type:text" json:"description"`
	Status      Status                     `gorm:"not null" json:"status"`
	StartDate   *string                    `json:"startDate,omitempty"`
	EndDate     *string                    `json:"endDate,omitempty"`
	Images      datatypes.JSONSlice[Image] `json:"images"`
}

type Session struct {
	Model
	CampaignID  uint                       `gorm:"not null;index" json:"campaignId"`
	AdventureID *uint                      `gorm:"index" json:"adventureId,omitempty"`
	Title       string                     `gorm:"not null" json:"title"`
	Date        string                     `gorm:"not null;index" json:"date"`
	Notes       string                     `gorm:"type:text" json:"notes"`
	Narrative   *string                    `gorm:"type:text" json:"narrative,omitempty"`
	Images      datatypes.JSONSlice[Image] `json:"images"`
}

type CharacterType string

const (
	CharacterPC      CharacterType = "pc"
	CharacterNPC     CharacterType = "npc"
	CharacterMonster CharacterType = "monster"
)

func (t CharacterType) Valid() bool {
	switch t {
	case CharacterPC, CharacterNPC, CharacterMonster:
		return true
	}
	return false
}

type AbilityScores struct {
	Strength     int `json:"str"`
	Dexterity    int `json:"dex"`
	Constitution int `json:"con"`
	Intelligence int `json:"int"`
	Wisdom       int `json:"wis"`
	Charisma     int `json:"cha"`
}

type CombatStats struct {
	ArmorClass   int `json:"armorClass"`
	HitPoints    int `json:"hitPoints"`
	MaxHitPoints int `json:"maxHitPoints"`
	Speed        int `json:"speed"`
}

type CharacterClass struct {
	Name     string `json:"name"`
	Subclass string `json:"subclass,omitempty"`
	Level    int    `json:"level"`
}

type Character struct {
	Model
	CampaignID    uint                                `gorm:"not null;index" json:"campaignId"`
	AdventureID   *uint                               `gorm:"index" json:"adventureId,omitempty"`
	Name          string                              `gorm:"not null;index" json:"name"`
	CharacterType CharacterType                       `gorm:"not null;index" json:"characterType"`
	Race          string                              `json:"race"`
	Alignment     string                              `json:"alignment"`
	Level         int                                 `json:"level"`
	AbilityScores datatypes.JSONType[AbilityScores]   `json:"abilityScores"`
	CombatStats   datatypes.JSONType[CombatStats]     `json:"combatStats"`
	Classes       datatypes.JSONSlice[CharacterClass] `json:"classes"`
	Backstory     string                              `gorm:"type:text" json:"backstory"`
	Personality   string                              `gorm:"type:text" json:"personality"`
	Tags          datatypes.JSONSlice[string]         `json:"tags"`
	Images        datatypes.JSONSlice[Image]          `json:"images"`
}

func (c *Character) Ref() EntityRef {
	return EntityRef{Kind: KindForCharacter(c.CharacterType), ID: c.ID}
}

type Location struct {
	Model
	CampaignID   uint                        `gorm:"not null;index" json:"campaignId"`
	AdventureID  *uint                       `gorm:"index" json:"adventureId,omitempty"`
	Name         string                      `gorm:"not null" json:"name"`
	LocationType string                      `json:"locationType"`
	Description  string                      `gorm:"type:text" json:"description"`
	Tags         datatypes.JSONSlice[string] `json:"tags"`
	Images       datatypes.JSONSlice[Image]  `json:"images"`
}

type QuestStatus string

const (
	QuestActive    QuestStatus = "active"
	QuestCompleted QuestStatus = "completed"
	QuestFailed    QuestStatus = "failed"
	QuestOnHold    QuestStatus = "on_hold"
)

type QuestPriority string

const (
	PriorityLow      QuestPriority = "low"
	PriorityMedium   QuestPriority = "medium"
	PriorityHigh     QuestPriority = "high"
	PriorityCritical QuestPriority = "critical"
)

type QuestType string

const (
	QuestMain     QuestType = "main"
	QuestSide     QuestType = "side"
	QuestPersonal QuestType = "personal"
	QuestFaction  QuestType = "faction"
)

type Quest struct {
	Model
	CampaignID  uint                        `gorm:"not null;index" json:"campaignId"`
	AdventureID *uint                       `gorm:"index" json:"adventureId,omitempty"`
	Title       string                      `gorm:"not null" json:"title"`
	Description string                      `gorm:"type:text" json:"description"`
	Status      QuestStatus                 `gorm:"not null" json:"status"`
	Priority    QuestPriority               `gorm:"not null" json:"priority"`
	QuestType   QuestType                   `gorm:"not null" json:"questType"`
	DueDate     *string                     `json:"dueDate,omitempty"`
	Tags        datatypes.JSONSlice[string] `json:"tags"`
	Images      datatypes.JSONSlice[Image]  `json:"images"`
}

type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityVeryRare  Rarity = "very_rare"
	RarityLegendary Rarity = "legendary"
	RarityArtifact  Rarity = "artifact"
)

type MagicItemProperties struct {
	RequiresAttunement bool              `json:"requiresAttunement"`
	Charges            *int              `json:"charges,omitempty"`
	Extra              map[string]string `json:"extra,omitempty"`
}

type MagicItem struct {
	Model
	CampaignID  uint                                    `gorm:"not null;index" json:"campaignId"`
	AdventureID *uint                                   `gorm:"index" json:"adventureId,omitempty"`
	Name        string                                  `gorm:"not null" json:"name"`
	ItemType    string                                  `json:"itemType"`
	Rarity      Rarity                                  `json:"rarity,omitempty"`
	Description string                                  `gorm:"type:text" json:"description"`
	Properties  datatypes.JSONType[MagicItemProperties] `json:"properties"`
	Tags        datatypes.JSONSlice[string]             `json:"tags"`
	Images      datatypes.JSONSlice[Image]              `json:"images"`
}

type MetadataKind string

const (
	MetadataMetrics MetadataKind = "metrics"
	MetadataCustom  MetadataKind = "custom"
)

// RelationshipMetrics is the trust/affinity vector attached to character relations.
type RelationshipMetrics struct {
	Strength int `json:"strength"`
	Trust    int `json:"trust"`
	Fear     int `json:"fear"`
	Respect  int `json:"respect"`
}

type RelationMetadata struct {
	Kind    MetadataKind         `json:"kind,omitempty"`
	Metrics *RelationshipMetrics `json:"metrics,omitempty"`
	Custom  map[string]any       `json:"custom,omitempty"`
}

type Relation struct {
	Model
	CampaignID    uint                                 `gorm:"not null;uniqueIndex:idx_relation_edge,priority:1" json:"campaignId"`
	SourceType    EntityKind                           `gorm:"not null;uniqueIndex:idx_relation_edge,priority:2;index:idx_relation_source,priority:1" json:"sourceEntityType"`
	SourceID      uint                                 `gorm:"not null;uniqueIndex:idx_relation_edge,priority:3;index:idx_relation_source,priority:2" json:"sourceEntityId"`
	TargetType    EntityKind                           `gorm:"not null;uniqueIndex:idx_relation_edge,priority:4;index:idx_relation_target,priority:1" json:"targetEntityType"`
	TargetID      uint                                 `gorm:"not null;uniqueIndex:idx_relation_edge,priority:5;index:idx_relation_target,priority:2" json:"targetEntityId"`
	RelationType  string                               `gorm:"not null;uniqueIndex:idx_relation_edge,priority:6" json:"relationType"`
	Description   string                               `gorm:"type:text" json:"description"`
	Bidirectional bool                                 `json:"bidirectional"`
	Metadata      datatypes.JSONType[RelationMetadata] `json:"metadata"`
	Version       int                                  `gorm:"not null" json:"version"`
}

func (r *Relation) Source() EntityRef {
	return EntityRef{Kind: r.SourceType, ID: r.SourceID}
}

func (r *Relation) Target() EntityRef {
	return EntityRef{Kind: r.TargetType, ID: r.TargetID}
}

// LinkedEntity is a snapshot of a reference taken when the diary entry was written.
// Name is not kept in sync with later renames.
type LinkedEntity struct {
	ID   uint       `json:"id"`
	Type EntityKind `json:"type"`
	Name string     `json:"name"`
}

// DiaryEntry is the shape shared by every per-kind diary table.
type DiaryEntry struct {
	Model
	EntityID       uint                              `gorm:"not null;index" json:"entityId"`
	Description    string                            `gorm:"type:text;not null" json:"description"`
	Date           string                            `gorm:"not null;index" json:"date"`
	LinkedEntities datatypes.JSONSlice[LinkedEntity] `json:"linkedEntities"`
	IsImportant    bool                              `json:"isImportant"`
	Version        int                               `gorm:"not null" json:"version"`
}

type CharacterDiaryEntry struct {
	DiaryEntry
}

func (CharacterDiaryEntry) TableName() string {
	return "character_diary_entries"
}

type LocationDiaryEntry struct {
	DiaryEntry
}

func (LocationDiaryEntry) TableName() string {
	return "location_diary_entries"
}

type QuestDiaryEntry struct {
	DiaryEntry
}

func (QuestDiaryEntry) TableName() string {
	return "quest_diary_entries"
}

type WikiArticle struct {
	Model
	Title       string                                 `gorm:"not null;uniqueIndex:idx_wiki_article_key,priority:1" json:"title"`
	ContentType wikiapi.ContentType                    `gorm:"not null;uniqueIndex:idx_wiki_article_key,priority:2" json:"contentType"`
	RawContent  string                                 `gorm:"type:text" json:"rawContent"`
	ParsedData  datatypes.JSONType[wikiapi.ParsedData] `json:"parsedData"`
	Source      string                                 `json:"source"`
}

type WikiArticleEntity struct {
	Model
	EntityType       EntityKind        `gorm:"not null;uniqueIndex:idx_wiki_link,priority:1" json:"entityType"`
	EntityID         uint              `gorm:"not null;uniqueIndex:idx_wiki_link,priority:2" json:"entityId"`
	WikiArticleID    uint              `gorm:"not null;uniqueIndex:idx_wiki_link,priority:3;index" json:"wikiArticleId"`
	WikiArticle      *WikiArticle      `gorm:"foreignKey:WikiArticleID" json:"wikiArticle,omitempty"`
	RelationshipType string            `json:"relationshipType"`
	RelationshipData datatypes.JSONMap `json:"relationshipData,omitempty"`
}

type AssignmentSource string

const (
	SourceManual AssignmentSource = "manual"
	SourceWiki   AssignmentSource = "wiki"
)

type MagicItemAssignment struct {
	Model
	CampaignID  uint              `gorm:"not null;index" json:"campaignId"`
	EntityType  EntityKind        `gorm:"not null;uniqueIndex:idx_assignment_edge,priority:1" json:"entityType"`
	EntityID    uint              `gorm:"not null;uniqueIndex:idx_assignment_edge,priority:2" json:"entityId"`
	MagicItemID uint              `gorm:"not null;uniqueIndex:idx_assignment_edge,priority:3;index" json:"magicItemId"`
	MagicItem   *MagicItem        `gorm:"foreignKey:MagicItemID" json:"magicItem,omitempty"`
	Source      AssignmentSource  `gorm:"not null" json:"source"`
	Notes       string            `gorm:"type:text" json:"notes"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	AssignedAt  time.Time         `json:"assignedAt"`
}

// AllModels lists every table the application migrates.
func AllModels() []any {
	return []any{
		&GameEdition{},
		&Campaign{},
		&Adventure{},
		&Session{},
		&Character{},
		&Location{},
		&Quest{},
		&MagicItem{},
		&Relation{},
		&CharacterDiaryEntry{},
		&LocationDiaryEntry{},
		&QuestDiaryEntry{},
		&WikiArticle{},
		&WikiArticleEntity{},
		&MagicItemAssignment{},
	}
}
