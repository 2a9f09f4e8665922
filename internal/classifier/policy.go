package classifier

import (
	"fmt"
	"regexp"
)

// Diff is the line-level difference between two versions of a page.
type Diff struct {
	Additions     int
	Deletions     int
	AddedLines    []string
	RemovedLines  []string
	AddedSample   []string
	RemovedSample []string
}

// Policy decides whether a diff is a substantive change.
type Policy func(Diff) bool

// DefaultMaxCosmeticLines is the largest add/delete count still considered
// cosmetic.
const DefaultMaxCosmeticLines = 2

// defaultCosmeticPatterns match lines whose change carries no legal meaning.
var defaultCosmeticPatterns = []string{
	`(?i)^\s*(\w+day,?\s+)?(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4}\s*$`,
	`^\s*\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\s*$`,
	`^\s*\d{4}-\d{2}-\d{2}([t ]\d{2}:\d{2}(:\d{2})?)?\s*$`,
	`(?i)^\s*\d{1,2}:\d{2}(:\d{2})?\s*(am|pm)?\s*$`,
	`(?i)\b(last|page)\s+(updated|modified|reviewed)\b`,
	`(?i)^\s*(©|\(c\)|copyright)\b`,
	`(?i)^\s*[\d,]+\s+(views?|visits?|hits?)\s*$`,
	`^[\s\p{P}\p{S}]*$`,
}

// ThresholdPolicy treats small diffs as cosmetic. With RequireCosmeticMatch
// every changed line must also match a cosmetic pattern.
type ThresholdPolicy struct {
	MaxCosmeticLines     int
	CosmeticPatterns     []*regexp.Regexp
	RequireCosmeticMatch bool
}

// NewThresholdPolicy compiles patterns; nil uses the built-in set.
func NewThresholdPolicy(maxLines int, patterns []string, requireMatch bool) (*ThresholdPolicy, error) {
	if maxLines <= 0 {
		maxLines = DefaultMaxCosmeticLines
	}
	if len(patterns) == 0 {
		patterns = defaultCosmeticPatterns
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile cosmetic pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}

	return &ThresholdPolicy{
		MaxCosmeticLines:     maxLines,
		CosmeticPatterns:     compiled,
		RequireCosmeticMatch: requireMatch,
	}, nil
}

// DefaultPolicy returns the built-in threshold policy.
func DefaultPolicy() Policy {
	p, err := NewThresholdPolicy(DefaultMaxCosmeticLines, nil, true)
	if err != nil {
		panic(err) // built-in patterns are constant
	}
	return p.IsSubstantive
}

// IsSubstantive reports whether d is more than a cosmetic edit.
func (p *ThresholdPolicy) IsSubstantive(d Diff) bool {
	if d.Additions > p.MaxCosmeticLines || d.Deletions > p.MaxCosmeticLines {
		return true
	}
	if !p.RequireCosmeticMatch {
		return false
	}

	for _, line := range d.AddedLines {
		if !p.isCosmetic(line) {
			return true
		}
	}
	for _, line := range d.RemovedLines {
		if !p.isCosmetic(line) {
			return true
		}
	}

	return false
}

func (p *ThresholdPolicy) isCosmetic(line string) bool {
	for _, re := range p.CosmeticPatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
