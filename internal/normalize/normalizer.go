// Package normalize parses raw citation strings into structured components
// and generates the spelling variants used to match heterogeneous sources.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/citeverify/internal/model"
)

// MaxVariants caps the variant set so spelling combinations cannot explode
const MaxVariants = 30

var (
	// volume, reporter (with optional series), page
	citationRe = regexp.MustCompile(`\b(\d{1,4})\s+([A-Za-z][A-Za-z.&'\s]*?(?:\s?\d{1,2}\s?(?:d|nd|rd|th))?)\s+(\d{1,5})\b`)

	// optional pincite followed by a parenthetical, e.g. ", 495 (1954)" or " (Wash. 2022)"
	parentheticalRe = regexp.MustCompile(`^[\s,\d\-–]*\(([^()]*)\)`)
	yearRe          = regexp.MustCompile(`\b(1[6-9]\d{2}|20\d{2})\b`)

	seriesRe = regexp.MustCompile(`^(.*?)\s*(\d{1,2})\s?(?:d|nd|rd|th)$`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

type parsedCitation struct {
	components model.Components
	reporter   *reporter // nil when the reporter is not in the table
	series     string
}

// Normalize strips whitespace and standardizes the reporter abbreviation.
// It never fails: uninterpretable input comes back whitespace-collapsed with empty components.
func Normalize(citation string) model.NormalizedCitation {
	n := model.NormalizedCitation{Original: citation}

	p, ok := parse(citation)
	if !ok {
		n.Text = collapseSpace(citation)
		return n
	}

	n.Components = p.components
	n.Text = p.components.String()
	if p.reporter != nil {
		n.Known = true
		n.Jurisdiction = p.reporter.jurisdiction
	}
	return n
}

// ExtractComponents decomposes a citation into volume, reporter, page and year.
// Returns the zero Components when no pattern matches.
func ExtractComponents(citation string) model.Components {
	p, ok := parse(citation)
	if !ok {
		return model.Components{}
	}
	return p.components
}

// GenerateVariants returns the rewritten forms of a citation: abbreviation
// synonyms, spacing variants (including a split series, "2 d") and ordinal
// series spellings. The input itself is
// always the first element. Output is deterministic and capped at MaxVariants.
func GenerateVariants(citation string) []string {
	variants := make([]string, 0, MaxVariants)
	seen := make(map[string]bool)
	add := func(v string) {
		if v == "" || seen[v] || len(variants) >= MaxVariants {
			return
		}
		seen[v] = true
		variants = append(variants, v)
	}

	add(citation)

	p, ok := parse(citation)
	if !ok {
		add(collapseSpace(citation))
		return variants
	}

	c := p.components
	add(c.String())

	if p.reporter != nil && p.series != "" {
		// "2 d" as printed in older reports and OCR output
		spelling := p.reporter.spellings[0]
		for _, join := range joins(spelling) {
			add(fmt.Sprintf("%d %s%s%s %d", c.Volume, spelling, join, splitOrdinal(p.series), c.Page))
		}
	}

	if p.reporter == nil {
		// Unknown reporter: only spacing variants around periods
		compact := strings.ReplaceAll(c.Reporter, ". ", ".")
		spaced := strings.TrimSpace(strings.ReplaceAll(compact, ".", ". "))
		add(fmt.Sprintf("%d %s %d", c.Volume, compact, c.Page))
		add(fmt.Sprintf("%d %s %d", c.Volume, spaced, c.Page))
		return variants
	}

	seriesForms := []string{""}
	if p.series != "" {
		seriesForms = []string{p.series}
		if ord := ordinal(p.series); ord != p.series {
			seriesForms = append(seriesForms, ord)
		}
	}

	for _, spelling := range p.reporter.spellings {
		for _, series := range seriesForms {
			if series == "" {
				add(fmt.Sprintf("%d %s %d", c.Volume, spelling, c.Page))
				continue
			}
			for _, join := range joins(spelling) {
				add(fmt.Sprintf("%d %s%s%s %d", c.Volume, spelling, join, series, c.Page))
			}
		}
	}

	return variants
}

// Plausible reports whether a parsed citation could exist. Only known
// reporters with a volume beyond the published range are rejected.
func Plausible(n model.NormalizedCitation) (bool, string) {
	if !n.Interpretable() {
		return true, ""
	}

	c := n.Components
	if c.Volume <= 0 || c.Page <= 0 {
		return false, "volume and page must be positive"
	}

	rep, series := lookupReporter(c.Reporter)
	if rep == nil {
		return true, ""
	}

	if limit := rep.maxVolume[series]; limit > 0 && c.Volume > limit {
		return false, fmt.Sprintf("volume %d exceeds the highest published %s volume (%d)", c.Volume, c.Reporter, limit)
	}
	return true, ""
}

// Jurisdiction returns the jurisdiction of a canonical reporter name, or ""
func Jurisdiction(canonicalReporter string) string {
	if rep, _ := lookupReporter(canonicalReporter); rep != nil {
		return rep.jurisdiction
	}
	return ""
}

func parse(citation string) (parsedCitation, bool) {
	loc := citationRe.FindStringSubmatchIndex(citation)
	if loc == nil {
		return parsedCitation{}, false
	}

	volume, err := strconv.Atoi(citation[loc[2]:loc[3]])
	if err != nil {
		return parsedCitation{}, false
	}
	page, err := strconv.Atoi(citation[loc[6]:loc[7]])
	if err != nil {
		return parsedCitation{}, false
	}

	rawReporter := collapseSpace(citation[loc[4]:loc[5]])
	p := parsedCitation{
		components: model.Components{
			Volume:   volume,
			Reporter: rawReporter,
			Page:     page,
			Year:     parseYear(citation[loc[1]:]),
		},
	}

	base, series := splitSeries(rawReporter)
	if rep, ok := reporterIndex[reporterKey(base)]; ok && rep.hasSeries(series) {
		p.reporter = rep
		p.series = series
		p.components.Reporter = rep.name(series)
		p.components.Series = series
	}

	return p, true
}

// splitSeries separates "Wash. 2nd" into ("Wash.", "2d")
func splitSeries(raw string) (string, string) {
	m := seriesRe.FindStringSubmatch(raw)
	if m == nil {
		return raw, ""
	}

	n, err := strconv.Atoi(m[2])
	if err != nil || n < 2 {
		return raw, ""
	}

	switch n {
	case 2:
		return m[1], "2d"
	case 3:
		return m[1], "3d"
	default:
		return m[1], strconv.Itoa(n) + "th"
	}
}

func parseYear(rest string) int {
	m := parentheticalRe.FindStringSubmatch(rest)
	if m == nil {
		return 0
	}

	years := yearRe.FindAllString(m[1], -1)
	if len(years) == 0 {
		return 0
	}
	year, _ := strconv.Atoi(years[len(years)-1])
	return year
}

// ordinal converts Bluebook series to ordinal form: "2d" -> "2nd"
func ordinal(series string) string {
	switch series {
	case "2d":
		return "2nd"
	case "3d":
		return "3rd"
	default:
		return series
	}
}

// splitOrdinal separates the number from its suffix: "2d" -> "2 d"
func splitOrdinal(series string) string {
	i := strings.IndexFunc(series, func(r rune) bool { return r < '0' || r > '9' })
	if i <= 0 {
		return series
	}
	return series[:i] + " " + series[i:]
}

// joins returns separators to try between a base spelling and its series
func joins(spelling string) []string {
	if strings.HasSuffix(spelling, ".") {
		return []string{"", " "}
	}
	return []string{" "}
}

func collapseSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
