package fetcher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// builtinBoilerplate matches whole lines of site chrome that survive the
// structural strip: skip links, the language selector, the services banner,
// search widgets, breadcrumbs and the account menu.
var builtinBoilerplate = []string{
	`(?i)^skip to (main )?content$`,
	`(?i)^(english|español|русский|українська|tiếng việt|한국어|中文|简体中文|繁體中文|soomaali|tagalog|አማርኛ|日本語|punjabi|ਪੰਜਾਬੀ|language help)$`,
	`(?i)^english\b.*\blanguage help$`,
	`(?i)^sales tax now applies to some services\b`,
	`(?i)^search form - mindbreeze\b`,
	`(?i)^(\d+\.\s*)?home(\s*[›>/»]\s*.*)?$`,
	`(?i)^laws & rules\b.*\blog in$`,
}

// volatileLines are dropped because they change on every render without the
// page content changing.
var volatileLines = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(page\s+)?last\s+(updated|modified|reviewed)\b`),
	regexp.MustCompile(`(?i)^(©|\(c\)|copyright)\s*(\d{4})?`),
}

var (
	cacheBusterToken = regexp.MustCompile(`([?&])(v|ver|cb|_|sid|sessionid|session_id|timestamp|ts)=[A-Za-z0-9._-]+`)
	inlineSpace      = regexp.MustCompile(`[ \t\x{00a0}]+`)
	excessNewlines   = regexp.MustCompile(`\n{3,}`)
)

// Normalizer turns rendered page text into the stable form that is hashed
// and diffed.
type Normalizer struct {
	boilerplate []*regexp.Regexp
}

// NewNormalizer compiles the built-in boilerplate patterns plus extra.
func NewNormalizer(extra []string) (*Normalizer, error) {
	patterns := make([]*regexp.Regexp, 0, len(builtinBoilerplate)+len(extra))
	for _, p := range append(append([]string{}, builtinBoilerplate...), extra...) {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile boilerplate pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}
	return &Normalizer{boilerplate: patterns}, nil
}

// Normalize strips boilerplate and volatile lines, collapses whitespace and
// trims the result.
func (n *Normalizer) Normalize(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(inlineSpace.ReplaceAllString(line, " "))
		if line == "" {
			out = append(out, "")
			continue
		}
		if n.isBoilerplate(line) || isVolatile(line) {
			continue
		}
		line = cacheBusterToken.ReplaceAllString(line, "$1")
		out = append(out, line)
	}

	joined := excessNewlines.ReplaceAllString(strings.Join(out, "\n"), "\n\n")
	return strings.TrimSpace(joined)
}

func (n *Normalizer) isBoilerplate(line string) bool {
	for _, re := range n.boilerplate {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func isVolatile(line string) bool {
	for _, re := range volatileLines {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// Signature returns the hex-encoded SHA-256 digest of normalized text.
func Signature(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
