package codex

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/phturb/campaign-codex-backend-go/model"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

// Slugify folds s to lowercase ASCII words joined by single dashes.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if b.Len() > 0 && !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func slugTaken(tx *gorm.DB, slug string, exceptID uint) (bool, error) {
	var n int64
	q := tx.Model(&model.Adventure{}).Where("slug = ?", slug)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// uniqueSlug returns base, or base-2, base-3... whichever is free first.
func uniqueSlug(tx *gorm.DB, base string, exceptID uint) (string, error) {
	candidate := base
	for i := 2; ; i++ {
		taken, err := slugTaken(tx, candidate, exceptID)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}
