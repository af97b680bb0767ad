package model

import "fmt"

// Components is the structured decomposition of a citation string.
// The zero value means the citation could not be interpreted.
type Components struct {
	Volume   int    `json:"volume,omitempty"`
	Reporter string `json:"reporter,omitempty"` // Canonical reporter, e.g. "Wn.2d"
	Page     int    `json:"page,omitempty"`
	Series   string `json:"series,omitempty"` // "2d", "3d", "4th"
	Year     int    `json:"year,omitempty"`
}

// IsEmpty reports whether no citation pattern matched
func (c Components) IsEmpty() bool {
	return c.Volume == 0 && c.Reporter == "" && c.Page == 0
}

// String renders the components in "volume reporter page" form
func (c Components) String() string {
	if c.IsEmpty() {
		return ""
	}
	return fmt.Sprintf("%d %s %d", c.Volume, c.Reporter, c.Page)
}

// NormalizedCitation is the output of the normalizer
type NormalizedCitation struct {
	Original     string     `json:"original"`
	Text         string     `json:"text"`                   // Best-effort normalized form
	Components   Components `json:"components"`             // Empty when uninterpretable
	Jurisdiction string     `json:"jurisdiction,omitempty"` // federal, washington, regional
	Known        bool       `json:"known"`                  // Reporter found in the reporter table
}

// Interpretable reports whether the citation parsed into components.
// Uninterpretable citations skip the structured API and go straight to text search.
func (n NormalizedCitation) Interpretable() bool {
	return !n.Components.IsEmpty()
}

// Cluster is a set of parallel citations believed to refer to the same case
type Cluster struct {
	ID           string   `json:"id,omitempty"`
	Citations    []string `json:"citations"`
	CaseNameHint string   `json:"case_name_hint,omitempty"`
	Context      string   `json:"context,omitempty"` // Surrounding document text
}
