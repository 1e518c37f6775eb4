package pages

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// MaxPermalinkProbes bounds the suffix search of UniquePermalink.
const MaxPermalinkProbes = 1000

var ErrPermalinkExhausted = errors.New("no free permalink found")

var accentMap = map[rune]string{
	'á': "a", 'à': "a", 'ã': "a", 'â': "a", 'ä': "a", 'å': "a", 'ā': "a",
	'é': "e", 'è': "e", 'ê': "e", 'ë': "e", 'ē': "e",
	'í': "i", 'ì': "i", 'î': "i", 'ï': "i", 'ī': "i",
	'ó': "o", 'ò': "o", 'õ': "o", 'ô': "o", 'ö': "o", 'ø': "o", 'ō': "o",
	'ú': "u", 'ù': "u", 'û': "u", 'ü': "u", 'ū': "u",
	'ç': "c", 'ć': "c", 'č': "c",
	'ñ': "n", 'ń': "n",
	'ý': "y", 'ÿ': "y",
	'ß': "ss", 'æ': "ae", 'œ': "oe",
	'Á': "A", 'À': "A", 'Ã': "A", 'Â': "A", 'Ä': "A", 'Å': "A", 'Ā': "A",
	'É': "E", 'È': "E", 'Ê': "E", 'Ë': "E", 'Ē': "E",
	'Í': "I", 'Ì': "I", 'Î': "I", 'Ï': "I", 'Ī': "I",
	'Ó': "O", 'Ò': "O", 'Õ': "O", 'Ô': "O", 'Ö': "O", 'Ø': "O", 'Ō': "O",
	'Ú': "U", 'Ù': "U", 'Û': "U", 'Ü': "U", 'Ū': "U",
	'Ç': "C", 'Ć': "C", 'Č': "C",
	'Ñ': "N", 'Ń': "N",
	'Ý': "Y", 'Ÿ': "Y",
	'Æ': "AE", 'Œ': "OE",
}

var (
	nonPermalink = regexp.MustCompile(`[^a-zA-Z0-9/_|+ -]`)
	separators   = regexp.MustCompile(`[/_|+ -]+`)
)

// Slugify turns a title into a permalink candidate: accents are
// transliterated, separators collapse into single dashes and everything else
// is dropped.
func Slugify(text string) string {
	var b strings.Builder
	for _, r := range text {
		if repl, ok := accentMap[r]; ok {
			b.WriteString(repl)
			continue
		}
		b.WriteRune(r)
	}

	clean := nonPermalink.ReplaceAllString(b.String(), "")
	clean = separators.ReplaceAllString(clean, "-")
	return strings.ToLower(strings.Trim(clean, "-"))
}

// UniquePermalink probes slug, slug-1, slug-2, ... until no other page uses
// it. currentID is the page being edited, which may keep its own permalink.
// Two concurrent callers can still be handed the same value.
func (m *Manager) UniquePermalink(ctx context.Context, slug string, currentID *uint) (permalink string, err error) {
	defer observe("unique_permalink", time.Now(), &err)
	if slug == "" {
		return "", nil
	}

	candidate := slug
	for n := 1; n <= MaxPermalinkProbes; n++ {
		page, err := m.store.First(ctx, ByPermalinkQuery(candidate))
		if err != nil {
			return "", err
		}
		if page == nil || (currentID != nil && page.ID == *currentID) {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", slug, n)
	}
	return "", ErrPermalinkExhausted
}
