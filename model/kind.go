package model

import (
	"errors"
	"fmt"
	"strings"
)

// EntityKind names the table a soft reference points into.
type EntityKind string

const (
	KindCharacter EntityKind = "character"
	KindNPC       EntityKind = "npc"
	KindLocation  EntityKind = "location"
	KindQuest     EntityKind = "quest"
	KindMagicItem EntityKind = "magic_item"
)

var EntityKinds = []EntityKind{
	KindCharacter,
	KindNPC,
	KindLocation,
	KindQuest,
	KindMagicItem,
}

func EntityKindFromString(k string) (EntityKind, error) {
	switch strings.ToLower(strings.TrimSpace(k)) {
	case string(KindCharacter), "pc", "monster":
		return KindCharacter, nil
	case string(KindNPC):
		return KindNPC, nil
	case string(KindLocation):
		return KindLocation, nil
	case string(KindQuest):
		return KindQuest, nil
	case string(KindMagicItem), "magic-item", "magicitem":
		return KindMagicItem, nil
	}
	return "", errors.New("unsupported entity type")
}

func (k EntityKind) Valid() bool {
	switch k {
	case KindCharacter, KindNPC, KindLocation, KindQuest, KindMagicItem:
		return true
	}
	return false
}

func (k EntityKind) String() string {
	switch k {
	case KindCharacter, KindNPC, KindLocation, KindQuest, KindMagicItem:
		return string(k)
	}
	return "unknown"
}

// Table is the backing table of the kind. Characters and NPCs share one table.
func (k EntityKind) Table() string {
	switch k {
	case KindCharacter, KindNPC:
		return "characters"
	case KindLocation:
		return "locations"
	case KindQuest:
		return "quests"
	case KindMagicItem:
		return "magic_items"
	}
	return ""
}

// DiaryTable is the diary table owned by the kind, empty when the kind keeps no diary.
func (k EntityKind) DiaryTable() string {
	switch k {
	case KindCharacter, KindNPC:
		return CharacterDiaryEntry{}.TableName()
	case KindLocation:
		return LocationDiaryEntry{}.TableName()
	case KindQuest:
		return QuestDiaryEntry{}.TableName()
	}
	return ""
}

// Kinds sharing a table with k, used when matching edges stored under either alias.
func (k EntityKind) Aliases() []EntityKind {
	switch k {
	case KindCharacter, KindNPC:
		return []EntityKind{KindCharacter, KindNPC}
	}
	return []EntityKind{k}
}

// Canonical is the one kind stored for every row of k's table.
func (k EntityKind) Canonical() EntityKind {
	if k == KindNPC {
		return KindCharacter
	}
	return k
}

// Path is the route whose cached view shows the entity.
func (k EntityKind) Path(id uint) string {
	switch k {
	case KindCharacter, KindNPC:
		return fmt.Sprintf("/characters/%d", id)
	case KindLocation:
		return fmt.Sprintf("/locations/%d", id)
	case KindQuest:
		return fmt.Sprintf("/quests/%d", id)
	case KindMagicItem:
		return fmt.Sprintf("/magic-items/%d", id)
	}
	return "/"
}

// KindForCharacter maps a character record onto the reference kind used for it.
func KindForCharacter(ct CharacterType) EntityKind {
	if ct == CharacterNPC {
		return KindNPC
	}
	return KindCharacter
}

type EntityRef struct {
	Kind EntityKind `json:"type"`
	ID   uint       `json:"id"`
}

func (r EntityRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

func (r EntityRef) Path() string {
	return r.Kind.Path(r.ID)
}
