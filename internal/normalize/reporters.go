package normalize

import "strings"

// reporter describes one reporter family and its accepted spellings
type reporter struct {
	canonical    string         // Canonical base abbreviation, e.g. "P."
	spellings    []string       // Accepted base spellings, canonical first
	seriesJoin   string         // Separator between base and series in canonical form
	jurisdiction string         // federal, washington, regional
	maxVolume    map[string]int // Highest published volume per series ("" = first series)
}

// Upper volume bounds are deliberately generous; they only catch impossible cites.
var reporters = []*reporter{
	{
		canonical:    "U.S.",
		spellings:    []string{"U.S.", "U. S.", "US"},
		jurisdiction: "federal",
		maxVolume:    map[string]int{"": 605},
	},
	{
		canonical:    "S. Ct.",
		spellings:    []string{"S. Ct.", "S.Ct.", "S Ct"},
		jurisdiction: "federal",
		maxVolume:    map[string]int{"": 150},
	},
	{
		canonical:    "L. Ed.",
		spellings:    []string{"L. Ed.", "L.Ed.", "L Ed"},
		seriesJoin:   " ",
		jurisdiction: "federal",
		maxVolume:    map[string]int{"": 100, "2d": 230},
	},
	{
		canonical:    "F.",
		spellings:    []string{"F.", "F"},
		jurisdiction: "federal",
		maxVolume:    map[string]int{"": 300, "2d": 999, "3d": 999, "4th": 200},
	},
	{
		canonical:    "F. Supp.",
		spellings:    []string{"F. Supp.", "F.Supp.", "F Supp"},
		seriesJoin:   " ",
		jurisdiction: "federal",
		maxVolume:    map[string]int{"": 999, "2d": 999, "3d": 800},
	},
	{
		canonical:    "P.",
		spellings:    []string{"P.", "Pac.", "Pacific", "P"},
		jurisdiction: "regional",
		maxVolume:    map[string]int{"": 300, "2d": 999, "3d": 600},
	},
	{
		canonical:    "Wn.",
		spellings:    []string{"Wn.", "Wash.", "Wn", "Wash"},
		jurisdiction: "washington",
		maxVolume:    map[string]int{"": 200, "2d": 210},
	},
	{
		canonical:    "Wn. App.",
		spellings:    []string{"Wn. App.", "Wash. App.", "Wn.App.", "Wash App"},
		seriesJoin:   " ",
		jurisdiction: "washington",
		maxVolume:    map[string]int{"": 200, "2d": 60},
	},
}

// reporterIndex maps a spelling key to its reporter family
var reporterIndex = buildReporterIndex()

func buildReporterIndex() map[string]*reporter {
	index := make(map[string]*reporter)
	for _, r := range reporters {
		for _, s := range r.spellings {
			index[reporterKey(s)] = r
		}
	}
	return index
}

// reporterKey folds a base spelling to a lookup key: "Wash. App." -> "washapp"
func reporterKey(s string) string {
	s = strings.ToLower(s)
	return strings.NewReplacer(".", "", " ", "", "'", "").Replace(s)
}

// name renders the canonical reporter for a series
func (r *reporter) name(series string) string {
	if series == "" {
		return r.canonical
	}
	return r.canonical + r.seriesJoin + series
}

// hasSeries reports whether the reporter publishes the given series
func (r *reporter) hasSeries(series string) bool {
	_, ok := r.maxVolume[series]
	return ok
}

// lookupReporter resolves a canonical reporter name back to its family and series
func lookupReporter(canonical string) (*reporter, string) {
	for _, r := range reporters {
		for series := range r.maxVolume {
			if r.name(series) == canonical {
				return r, series
			}
		}
	}
	return nil, ""
}
