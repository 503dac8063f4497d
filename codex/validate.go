package codex

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/phturb/campaign-codex-backend-go/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

func validDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

func checkOptionalDate(f fieldErrors, field string, d *string) {
	if d == nil {
		return
	}
	if !validDate(*d) {
		f.add(field, "date must be formatted YYYY-MM-DD")
	}
}

func checkDateRange(f fieldErrors, start, end *string) {
	checkOptionalDate(f, "startDate", start)
	checkOptionalDate(f, "endDate", end)
	if start != nil && end != nil && validDate(*start) && validDate(*end) && *end < *start {
		f.add("endDate", "end date is before start date")
	}
}

// emptyToNil turns a blank optional string into nil.
func emptyToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func normalizeTags(tags datatypes.JSONSlice[string]) datatypes.JSONSlice[string] {
	out := datatypes.JSONSlice[string]{}
	seen := map[string]bool{}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		seen[strings.ToLower(t)] = true
		out = append(out, t)
	}
	return out
}

func normalizeImages(f fieldErrors, images datatypes.JSONSlice[model.Image]) datatypes.JSONSlice[model.Image] {
	out := datatypes.JSONSlice[model.Image]{}
	for i, img := range images {
		img.URL = strings.TrimSpace(img.URL)
		if img.URL == "" {
			f.add(fmt.Sprintf("images[%d].url", i), "image url is required")
			continue
		}
		out = append(out, img)
	}
	return out
}

func required(f fieldErrors, field string, v *string) {
	*v = strings.TrimSpace(*v)
	if *v == "" {
		f.add(field, "%s is required", field)
	}
}

// checkParents verifies the owning campaign and, when set, that the adventure
// belongs to that same campaign.
func checkParents(tx *gorm.DB, campaignID uint, adventureID *uint) error {
	ok, err := exists(tx, &model.Campaign{}, campaignID)
	if err != nil {
		return databaseError("check campaign", err)
	}
	if !ok {
		return notFound("campaign %d not found", campaignID)
	}
	if adventureID == nil {
		return nil
	}
	var adv model.Adventure
	if err := tx.Select("id", "campaign_id").First(&adv, *adventureID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("adventure %d not found", *adventureID)
		}
		return databaseError("check adventure", err)
	}
	if adv.CampaignID != campaignID {
		return fieldErrors{"adventureId": "adventure belongs to another campaign"}.err()
	}
	return nil
}

func requireCampaign(f fieldErrors, campaignID uint) {
	if campaignID == 0 {
		f.add("campaignId", "campaignId is required")
	}
}

func prepareEdition(tx *gorm.DB, e *model.GameEdition, id uint) error {
	f := fieldErrors{}
	required(f, "name", &e.Name)
	e.Abbreviation = strings.TrimSpace(e.Abbreviation)
	if err := f.err(); err != nil {
		return err
	}
	var n int64
	if err := tx.Model(&model.GameEdition{}).Where("name = ? AND id <> ?", e.Name, id).Count(&n).Error; err != nil {
		return databaseError("check edition name", err)
	}
	if n > 0 {
		return duplicate("game edition %q already exists", e.Name)
	}
	return nil
}

func prepareCampaign(tx *gorm.DB, c *model.Campaign, _ uint) error {
	f := fieldErrors{}
	required(f, "title", &c.Title)
	if c.Status == "" {
		c.Status = model.StatusPlanning
	} else if !c.Status.Valid() {
		f.add("status", "unknown status %q", c.Status)
	}
	c.StartDate, c.EndDate = emptyToNil(c.StartDate), emptyToNil(c.EndDate)
	checkDateRange(f, c.StartDate, c.EndDate)
	c.Tags = normalizeTags(c.Tags)
	c.GameEdition = nil
	if err := f.err(); err != nil {
		return err
	}
	if c.GameEditionID != nil {
		ok, err := exists(tx, &model.GameEdition{}, *c.GameEditionID)
		if err != nil {
			return databaseError("check game edition", err)
		}
		if !ok {
			return notFound("game edition %d not found", *c.GameEditionID)
		}
	}
	return nil
}

func prepareAdventure(tx *gorm.DB, a *model.Adventure, id uint) error {
	f := fieldErrors{}
	requireCampaign(f, a.CampaignID)
	required(f, "title", &a.Title)
	if a.Status == "" {
		a.Status = model.StatusPlanning
	} else if !a.Status.Valid() {
		f.add("status", "unknown status %q", a.Status)
	}
	a.StartDate, a.EndDate = emptyToNil(a.StartDate), emptyToNil(a.EndDate)
	checkDateRange(f, a.StartDate, a.EndDate)
	a.Images = normalizeImages(f, a.Images)
	a.Slug = strings.TrimSpace(a.Slug)
	explicit := a.Slug != ""
	if explicit && Slugify(a.Slug) != a.Slug {
		f.add("slug", "slug may only contain lowercase letters, digits and dashes")
	}
	if !explicit && a.Title != "" && Slugify(a.Title) == "" {
		f.add("slug", "a slug cannot be derived from the title, set one explicitly")
	}
	if err := f.err(); err != nil {
		return err
	}
	if err := checkParents(tx, a.CampaignID, nil); err != nil {
		return err
	}
	if explicit {
		taken, err := slugTaken(tx, a.Slug, id)
		if err != nil {
			return databaseError("check slug", err)
		}
		if taken {
			return duplicate("adventure slug %q is already in use", a.Slug)
		}
		return nil
	}
	slug, err := uniqueSlug(tx, Slugify(a.Title), id)
	if err != nil {
		return databaseError("derive slug", err)
	}
	a.Slug = slug
	return nil
}

func prepareSession(tx *gorm.DB, s *model.Session, _ uint) error {
	f := fieldErrors{}
	requireCampaign(f, s.CampaignID)
	required(f, "title", &s.Title)
	s.Date = strings.TrimSpace(s.Date)
	if s.Date == "" {
		f.add("date", "date is required")
	} else if !validDate(s.Date) {
		f.add("date", "date must be formatted YYYY-MM-DD")
	}
	s.Narrative = emptyToNil(s.Narrative)
	s.Images = normalizeImages(f, s.Images)
	if err := f.err(); err != nil {
		return err
	}
	return checkParents(tx, s.CampaignID, s.AdventureID)
}

func checkScore(f fieldErrors, field string, v int) {
	if v != 0 && (v < 1 || v > 30) {
		f.add("abilityScores."+field, "ability score must be between 1 and 30")
	}
}

func prepareCharacter(tx *gorm.DB, c *model.Character, _ uint) error {
	f := fieldErrors{}
	requireCampaign(f, c.CampaignID)
	required(f, "name", &c.Name)
	if c.CharacterType == "" {
		c.CharacterType = model.CharacterPC
	} else if !c.CharacterType.Valid() {
		f.add("characterType", "characterType must be one of pc, npc, monster")
	}
	if c.Level < 0 {
		f.add("level", "level cannot be negative")
	}
	as := c.AbilityScores.Data()
	checkScore(f, "str", as.Strength)
	checkScore(f, "dex", as.Dexterity)
	checkScore(f, "con", as.Constitution)
	checkScore(f, "int", as.Intelligence)
	checkScore(f, "wis", as.Wisdom)
	checkScore(f, "cha", as.Charisma)
	cs := c.CombatStats.Data()
	if cs.ArmorClass < 0 || cs.HitPoints < 0 || cs.MaxHitPoints < 0 || cs.Speed < 0 {
		f.add("combatStats", "combat stats cannot be negative")
	}
	if cs.MaxHitPoints > 0 && cs.HitPoints > cs.MaxHitPoints {
		f.add("combatStats.hitPoints", "hit points exceed maximum hit points")
	}
	classes := datatypes.JSONSlice[model.CharacterClass]{}
	for i, cl := range c.Classes {
		cl.Name = strings.TrimSpace(cl.Name)
		cl.Subclass = strings.TrimSpace(cl.Subclass)
		if cl.Name == "" {
			f.add(fmt.Sprintf("classes[%d].name", i), "class name is required")
		}
		if cl.Level < 1 {
			f.add(fmt.Sprintf("classes[%d].level", i), "class level must be at least 1")
		}
		classes = append(classes, cl)
	}
	c.Classes = classes
	c.Tags = normalizeTags(c.Tags)
	c.Images = normalizeImages(f, c.Images)
	if err := f.err(); err != nil {
		return err
	}
	return checkParents(tx, c.CampaignID, c.AdventureID)
}

func prepareLocation(tx *gorm.DB, l *model.Location, _ uint) error {
	f := fieldErrors{}
	requireCampaign(f, l.CampaignID)
	required(f, "name", &l.Name)
	l.LocationType = strings.TrimSpace(l.LocationType)
	l.Tags = normalizeTags(l.Tags)
	l.Images = normalizeImages(f, l.Images)
	if err := f.err(); err != nil {
		return err
	}
	return checkParents(tx, l.CampaignID, l.AdventureID)
}

func prepareQuest(tx *gorm.DB, q *model.Quest, _ uint) error {
	f := fieldErrors{}
	requireCampaign(f, q.CampaignID)
	required(f, "title", &q.Title)
	switch q.Status {
	case "":
		q.Status = model.QuestActive
	case model.QuestActive, model.QuestCompleted, model.QuestFailed, model.QuestOnHold:
	default:
		f.add("status", "unknown quest status %q", q.Status)
	}
	switch q.Priority {
	case "":
		q.Priority = model.PriorityMedium
	case model.PriorityLow, model.PriorityMedium, model.PriorityHigh, model.PriorityCritical:
	default:
		f.add("priority", "unknown quest priority %q", q.Priority)
	}
	switch q.QuestType {
	case "":
		q.QuestType = model.QuestSide
	case model.QuestMain, model.QuestSide, model.QuestPersonal, model.QuestFaction:
	default:
		f.add("questType", "unknown quest type %q", q.QuestType)
	}
	q.DueDate = emptyToNil(q.DueDate)
	checkOptionalDate(f, "dueDate", q.DueDate)
	q.Tags = normalizeTags(q.Tags)
	q.Images = normalizeImages(f, q.Images)
	if err := f.err(); err != nil {
		return err
	}
	return checkParents(tx, q.CampaignID, q.AdventureID)
}

func prepareMagicItem(tx *gorm.DB, m *model.MagicItem, _ uint) error {
	f := fieldErrors{}
	requireCampaign(f, m.CampaignID)
	required(f, "name", &m.Name)
	m.ItemType = strings.TrimSpace(m.ItemType)
	switch m.Rarity {
	case "", model.RarityCommon, model.RarityUncommon, model.RarityRare,
		model.RarityVeryRare, model.RarityLegendary, model.RarityArtifact:
	default:
		f.add("rarity", "unknown rarity %q", m.Rarity)
	}
	if p := m.Properties.Data(); p.Charges != nil && *p.Charges < 0 {
		f.add("properties.charges", "charges cannot be negative")
	}
	m.Tags = normalizeTags(m.Tags)
	m.Images = normalizeImages(f, m.Images)
	if err := f.err(); err != nil {
		return err
	}
	return checkParents(tx, m.CampaignID, m.AdventureID)
}
