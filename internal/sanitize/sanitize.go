// Package sanitize cleans user-supplied text before it is stored or echoed back.
// Every function is idempotent: applying it to its own output changes nothing.
package sanitize

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLength = 100

var (
	tagPattern       = regexp.MustCompile(`<[a-zA-Z/!?][^>]*>`)
	tagOpener        = regexp.MustCompile(`<([a-zA-Z/!?])`)
	spacePattern     = regexp.MustCompile(`[ \t\f\v\r]+`)
	blankLinePattern = regexp.MustCompile(`\n{3,}`)
	slugSeparators   = regexp.MustCompile(`[^a-z0-9]+`)
	phoneDisallowed  = regexp.MustCompile(`[^0-9+\-() ]`)
	fileDisallowed   = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
	repeatedDash     = regexp.MustCompile(`-{2,}`)
)

// Text normalizes free-form text: NFC, no control characters except newlines and tabs,
// no HTML tags, collapsed horizontal whitespace, at most one blank line in a row.
func Text(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, s)
	s = stripTags(s)
	s = strings.ReplaceAll(s, "\t", " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spacePattern.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankLinePattern.ReplaceAllString(s, "\n\n")

	// removing tags or control characters can leave composable sequences behind
	return norm.NFC.String(strings.TrimSpace(s))
}

// SingleLine is Text with line breaks folded into single spaces
func SingleLine(s string) string {
	s = strings.ReplaceAll(Text(s), "\n", " ")
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

// stripTags removes markup until none is left, so that nested fragments
// like "<<b>script>" cannot reassemble into a tag. A "<" that cannot open a tag,
// as in "pressure < 10 bar", is kept.
func stripTags(s string) string {
	for {
		for stripped := tagPattern.ReplaceAllString(s, ""); stripped != s; stripped = tagPattern.ReplaceAllString(s, "") {
			s = stripped
		}
		opened := tagOpener.ReplaceAllString(s, "$1")
		if opened == s {
			return s
		}
		s = opened
	}
}

// Email trims and lowercases an address. Lowercasing can decompose characters
// (İ becomes i + U+0307), so the result is normalized again.
func Email(s string) string {
	s = SingleLine(s)
	for i := 0; i < 4; i++ {
		lowered := norm.NFC.String(strings.ToLower(s))
		if lowered == s {
			break
		}
		s = lowered
	}
	return s
}

// Phone keeps digits, spaces and + - ( )
func Phone(s string) string {
	s = phoneDisallowed.ReplaceAllString(SingleLine(s), "")
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

// Slug builds a URL-safe identifier: diacritics dropped, lowercase ASCII letters
// and digits separated by single dashes.
func Slug(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	slug := slugSeparators.ReplaceAllString(strings.ToLower(folded), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	return slug
}

// FileName reduces an uploaded file name to a safe base name, keeping its extension
func FileName(s string) string {
	s = strings.ReplaceAll(s, "\\", "/")
	s = path.Base(SingleLine(s))
	if s == "." || s == "/" || s == ".." {
		return "file"
	}

	ext := strings.ToLower(path.Ext(s))
	base := strings.TrimSuffix(s, path.Ext(s))

	base = Slug(base)
	ext = fileDisallowed.ReplaceAllString(ext, "")
	ext = repeatedDash.ReplaceAllString(ext, "-")
	if ext == "." {
		ext = ""
	}
	if base == "" {
		base = "file"
	}
	return base + ext
}

// URL accepts absolute http(s) URLs and site-relative paths. Anything else, such as
// javascript: or data: URLs, yields "".
func URL(s string) string {
	s = strings.TrimSpace(SingleLine(s))
	if s == "" {
		return ""
	}

	if strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "//") {
		u, err := url.Parse(s)
		if err != nil || u.Scheme != "" || u.Host != "" {
			return ""
		}
		return strings.TrimSpace(u.String())
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		u.Scheme = strings.ToLower(u.Scheme)
		// an empty fragment is dropped by String, which can expose trailing query spaces
		return strings.TrimSpace(u.String())
	default:
		return ""
	}
}

// Specifications cleans a key/value specification table, dropping empty keys
func Specifications(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		k = SingleLine(k)
		if k == "" {
			continue
		}
		out[k] = SingleLine(v)
	}
	return out
}
