// Package classifier decides what kind of change a fetch represents for a
// monitored page and whether it matters.
package classifier

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/jonesrussell/north-cloud/pagemonitor/internal/domain"
	"github.com/jonesrussell/north-cloud/pagemonitor/internal/fetcher"
)

// maxSampleLines caps the added/removed samples kept per change.
const maxSampleLines = 10

// Outcome is the classification of one page fetch.
type Outcome string

const (
	OutcomeNew       Outcome = "NEW"
	OutcomeModified  Outcome = "MODIFIED"
	OutcomeRemoved   Outcome = "REMOVED"
	OutcomeUnchanged Outcome = "UNCHANGED"
	OutcomeFailed    Outcome = "FAILED"
)

// ChangeType maps a loggable outcome to its change log type. It returns ""
// for UNCHANGED and FAILED.
func (o Outcome) ChangeType() domain.ChangeType {
	switch o {
	case OutcomeNew:
		return domain.ChangeNew
	case OutcomeModified:
		return domain.ChangeModified
	case OutcomeRemoved:
		return domain.ChangeRemoved
	default:
		return ""
	}
}

// Previous is the stored state of a page before this fetch.
type Previous struct {
	Signature *string
	Text      string
	ErrorType string
}

// Result is the classification of a fetch against the stored state.
type Result struct {
	Outcome       Outcome
	IsSubstantive bool
	Additions     int
	Deletions     int
	AddedSample   []string
	RemovedSample []string
	NewSignature  string
	Err           error
}

// Classifier applies a substantiveness policy to page diffs.
type Classifier struct {
	policy Policy
}

// New creates a Classifier. A nil policy uses DefaultPolicy.
func New(policy Policy) *Classifier {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Classifier{policy: policy}
}

// Classify compares a fetch result (or fetch error) with the stored state.
func (c *Classifier) Classify(prev Previous, res *fetcher.Result, fetchErr error) Result {
	if fetchErr != nil {
		if fetcher.IsNotFound(fetchErr) && prev.Signature != nil &&
			prev.ErrorType != string(fetcher.ErrTypeNotFound) {
			return Result{Outcome: OutcomeRemoved, IsSubstantive: true, Err: fetchErr}
		}
		return Result{Outcome: OutcomeFailed, Err: fetchErr}
	}
	if res == nil {
		return Result{Outcome: OutcomeFailed, Err: fmt.Errorf("classify: no fetch result")}
	}

	if prev.Signature == nil {
		return Result{Outcome: OutcomeNew, IsSubstantive: true, NewSignature: res.Signature}
	}

	if *prev.Signature == res.Signature {
		return Result{Outcome: OutcomeUnchanged, NewSignature: res.Signature}
	}

	if prev.Text == "" {
		return Result{Outcome: OutcomeModified, IsSubstantive: true, NewSignature: res.Signature}
	}

	d := LineDiff(prev.Text, res.Text)
	return Result{
		Outcome:       OutcomeModified,
		IsSubstantive: c.policy(d),
		Additions:     d.Additions,
		Deletions:     d.Deletions,
		AddedSample:   d.AddedSample,
		RemovedSample: d.RemovedSample,
		NewSignature:  res.Signature,
	}
}

// LineDiff counts non-blank inserted and deleted lines between old and new.
func LineDiff(oldText, newText string) Diff {
	a := splitLines(oldText)
	b := splitLines(newText)

	var d Diff
	m := difflib.NewMatcherWithJunk(a, b, false, nil)
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'r':
			d.addRemoved(a[op.I1:op.I2])
			d.addAdded(b[op.J1:op.J2])
		case 'd':
			d.addRemoved(a[op.I1:op.I2])
		case 'i':
			d.addAdded(b[op.J1:op.J2])
		}
	}

	return d
}

func (d *Diff) addAdded(lines []string) {
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		d.Additions++
		d.AddedLines = append(d.AddedLines, l)
		if len(d.AddedSample) < maxSampleLines {
			d.AddedSample = append(d.AddedSample, l)
		}
	}
}

func (d *Diff) addRemoved(lines []string) {
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		d.Deletions++
		d.RemovedLines = append(d.RemovedLines, l)
		if len(d.RemovedSample) < maxSampleLines {
			d.RemovedSample = append(d.RemovedSample, l)
		}
	}
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// Summary describes a change for the change log.
func Summary(outcome Outcome, title, url string, additions, deletions int) string {
	name := title
	if name == "" {
		name = url
	}

	switch outcome {
	case OutcomeNew:
		return fmt.Sprintf("New page detected: %s", name)
	case OutcomeRemoved:
		return fmt.Sprintf("Page removed: %s", name)
	default:
		return fmt.Sprintf("Content changed on %s (+%d/-%d lines)", name, additions, deletions)
	}
}
