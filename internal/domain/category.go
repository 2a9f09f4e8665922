package domain

import (
	"net/url"
	"regexp"
	"strings"
)

// Law categories assigned to monitored pages and ingested documents.
const (
	CategoryRCW             = "RCW Statute"
	CategoryWAC             = "WAC Rule"
	CategoryLegislative     = "Legislative Source"
	CategoryWTD             = "Tax Determination (WTD)"
	CategoryETA             = "Excise Tax Advisory (ETA)"
	CategoryTaxpedia        = "DOR Taxpedia"
	CategoryPublication     = "Tax Publication"
	CategoryIndustryGuide   = "Industry Guide"
	CategoryTaxRate         = "Tax Rate Info"
	CategoryLawRule         = "Tax Law/Rule"
	CategoryGuidanceDefault = "DOR Guidance"
)

var (
	etaPDFPattern  = regexp.MustCompile(`eta.*\.pdf`)
	yearPDFPattern = regexp.MustCompile(`\d{4}\.pdf`)
)

// CategorizeURL maps a URL to a law category from its host and path.
func CategorizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return CategoryGuidanceDefault
	}

	host := strings.ToLower(u.Host)
	path := strings.ToLower(u.Path)
	full := strings.ToLower(raw)

	switch {
	case strings.Contains(host, "app.leg.wa.gov"):
		return categorizeLegislature(path)
	case strings.Contains(host, "taxpedia.dor.wa.gov"):
		return categorizeTaxpedia(path)
	}

	switch {
	case strings.Contains(path, "/tax-research-index/wac-"), strings.Contains(path, "/wac-"):
		return CategoryWAC
	case strings.Contains(path, "excise-tax-advisor"), strings.Contains(path, "/eta"):
		return CategoryETA
	case (etaPDFPattern.MatchString(full) || yearPDFPattern.MatchString(full)) &&
		(strings.Contains(full, "taxpedia") || strings.Contains(full, "eta")):
		return CategoryETA
	case strings.Contains(path, "wtd"), strings.Contains(path, "tax-decision"):
		return CategoryWTD
	case strings.Contains(path, "/forms-publications/"), strings.Contains(path, "/publications"):
		return CategoryPublication
	case strings.Contains(path, "/industry-guides/"), strings.Contains(path, "/education/"):
		return CategoryIndustryGuide
	case strings.Contains(path, "/taxes-rates/"):
		return CategoryTaxRate
	case strings.Contains(path, "/laws-rules/"):
		return CategoryLawRule
	default:
		return CategoryGuidanceDefault
	}
}

func categorizeLegislature(path string) string {
	switch {
	case strings.Contains(path, "/rcw/"):
		return CategoryRCW
	case strings.Contains(path, "/wac/"):
		return CategoryWAC
	default:
		return CategoryLegislative
	}
}

func categorizeTaxpedia(path string) string {
	switch {
	case strings.Contains(path, "wtd"), strings.Contains(path, "tax-decision"), strings.Contains(path, "determination"):
		return CategoryWTD
	case strings.Contains(path, "eta"), strings.Contains(path, "excise-tax-advisor"):
		return CategoryETA
	default:
		return CategoryTaxpedia
	}
}
