package wikiapi

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type ContentType string

const (
	ContentSpell     ContentType = "spell"
	ContentMonster   ContentType = "monster"
	ContentMagicItem ContentType = "magic-item"
	ContentLore      ContentType = "lore"
)

var ContentTypes = []ContentType{
	ContentSpell,
	ContentMonster,
	ContentMagicItem,
	ContentLore,
}

func ContentTypeFromString(c string) (ContentType, error) {
	switch strings.ToLower(strings.TrimSpace(c)) {
	case string(ContentSpell):
		return ContentSpell, nil
	case string(ContentMonster):
		return ContentMonster, nil
	case string(ContentMagicItem), "magic_item":
		return ContentMagicItem, nil
	case string(ContentLore):
		return ContentLore, nil
	}
	return "", errors.New("unsupported content type")
}

type Spell struct {
	Level       int      `json:"level"`
	School      string   `json:"school,omitempty"`
	CastingTime string   `json:"castingTime,omitempty"`
	Range       string   `json:"range,omitempty"`
	Components  string   `json:"components,omitempty"`
	Duration    string   `json:"duration,omitempty"`
	Classes     []string `json:"classes,omitempty"`
	Description string   `json:"description,omitempty"`
}

type Monster struct {
	Size            string `json:"size,omitempty"`
	Type            string `json:"type,omitempty"`
	Alignment       string `json:"alignment,omitempty"`
	ArmorClass      int    `json:"armorClass,omitempty"`
	HitPoints       string `json:"hitPoints,omitempty"`
	Speed           string `json:"speed,omitempty"`
	ChallengeRating string `json:"challengeRating,omitempty"`
	Description     string `json:"description,omitempty"`
}

type MagicItem struct {
	ItemType           string `json:"itemType,omitempty"`
	Rarity             string `json:"rarity,omitempty"`
	RequiresAttunement bool   `json:"requiresAttunement"`
	Description        string `json:"description,omitempty"`
}

type Lore struct {
	Summary    string   `json:"summary,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// ParsedData holds exactly one variant, matching the article's content type.
type ParsedData struct {
	Spell     *Spell     `json:"spell,omitempty"`
	Monster   *Monster   `json:"monster,omitempty"`
	MagicItem *MagicItem `json:"magicItem,omitempty"`
	Lore      *Lore      `json:"lore,omitempty"`
}

type infobox struct {
	fields map[string]string
	body   []string
}

func (b infobox) description() string {
	return strings.Join(b.body, "\n")
}

func (b infobox) int(key string) (int, error) {
	v, ok := b.fields[key]
	if !ok || v == "" {
		return 0, nil
	}
	// "13 (natural armor)" style values keep only the leading number
	if i := strings.IndexAny(v, " ("); i > 0 {
		v = v[:i]
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", key, err)
	}
	return n, nil
}

// MaxLineSize is the longest single line of raw content Parse accepts.
const MaxLineSize = 1 << 20

func readInfobox(raw string) (infobox, error) {
	b := infobox{fields: map[string]string{}}
	sc := bufio.NewScanner(strings.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if k, v, ok := strings.Cut(line, ":"); ok && isFieldKey(k) {
			b.fields[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
			continue
		}
		b.body = append(b.body, line)
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return infobox{}, fmt.Errorf("a line is longer than %d bytes", MaxLineSize)
		}
		return infobox{}, err
	}
	return b, nil
}

func isFieldKey(k string) bool {
	k = strings.TrimSpace(k)
	if k == "" || len(k) > 32 {
		return false
	}
	for _, r := range k {
		if r != ' ' && r != '-' && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Parse extracts the structured variant for ct from "Key: Value" lines of raw.
// Lines that are not fields become the description.
func Parse(ct ContentType, raw string) (ParsedData, error) {
	b, err := readInfobox(raw)
	if err != nil {
		return ParsedData{}, err
	}
	switch ct {
	case ContentSpell:
		s := &Spell{
			School:      b.fields["school"],
			CastingTime: b.fields["casting time"],
			Range:       b.fields["range"],
			Components:  b.fields["components"],
			Duration:    b.fields["duration"],
			Classes:     splitList(b.fields["classes"]),
			Description: b.description(),
		}
		if strings.EqualFold(b.fields["level"], "cantrip") {
			s.Level = 0
		} else {
			lvl, err := b.int("level")
			if err != nil {
				return ParsedData{}, err
			}
			s.Level = lvl
		}
		return ParsedData{Spell: s}, nil
	case ContentMonster:
		ac, err := b.int("armor class")
		if err != nil {
			return ParsedData{}, err
		}
		return ParsedData{Monster: &Monster{
			Size:            b.fields["size"],
			Type:            b.fields["type"],
			Alignment:       b.fields["alignment"],
			ArmorClass:      ac,
			HitPoints:       b.fields["hit points"],
			Speed:           b.fields["speed"],
			ChallengeRating: b.fields["challenge"],
			Description:     b.description(),
		}}, nil
	case ContentMagicItem:
		att := strings.ToLower(b.fields["attunement"])
		return ParsedData{MagicItem: &MagicItem{
			ItemType:           b.fields["type"],
			Rarity:             strings.ToLower(b.fields["rarity"]),
			RequiresAttunement: att == "yes" || att == "required" || att == "true",
			Description:        b.description(),
		}}, nil
	case ContentLore:
		l := &Lore{Categories: splitList(b.fields["categories"])}
		if len(b.body) > 0 {
			l.Summary = b.body[0]
		}
		return ParsedData{Lore: l}, nil
	}
	return ParsedData{}, fmt.Errorf("unsupported content type %q", ct)
}

type Bucket string

const (
	BucketMagicItems Bucket = "magicItems"
	BucketSpells     Bucket = "spells"
	BucketMonsters   Bucket = "monsters"
	BucketOther      Bucket = "other"
)

var buckets = map[ContentType]Bucket{
	ContentMagicItem: BucketMagicItems,
	ContentSpell:     BucketSpells,
	ContentMonster:   BucketMonsters,
}

// BucketFor returns the display bucket of a content type; unknown types land in other.
func BucketFor(ct ContentType) Bucket {
	if b, ok := buckets[ct]; ok {
		return b
	}
	return BucketOther
}
