package match

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidCaseName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"Brown v. Board of Education", true},
		{"Roe v. Wade", true},
		{"Convoyant, LLC v. DeepThink, LLC", true},
		{"State vs. Smith", true},
		{"United States versus Nixon", true},
		{"Smith vs Jones", true},
		{"", false},
		{"   ", false},
		{"Justia", false},
		{"Brown Board of Education", false},
		{"law.justia.com", false},
		{"casetext.com", false},
		{"Brown v. Board of Education - casetext.com", false},
		{"https://www.courtlistener.com/opinion/1/brown-v-board/", false},
		{"www.leagle.com v. Smith", false},
		{"v. Board", false},
		{"In re Marriage of Smith", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidCaseName(tt.name))
		})
	}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "convoyant v deepthink", NormalizeName("Convoyant, LLC v. DeepThink, LLC"))
	assert.Equal(t, "brown v board education", NormalizeName("Brown vs. the Board of Education"))
	assert.Equal(t, "acme v widget", NormalizeName("Acme Corp. versus Widget Inc."))
}

func TestSimilarity_Examples(t *testing.T) {
	tests := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"Convoyant, LLC v. DeepThink, LLC", "Convoyant LLC v. Deepthink LLC", 1.0, 1.0},
		{"Brown v. Board of Education", "Brown v. Board of Education of Topeka", 1.0, 1.0},
		{"Brown v. Board of Education", "Roe v. Wade", 0.0, 0.0},
		{"Johnson v. Washington", "Johnson v. Smith", 0.5, 0.5},
		{"Microsystems v. Smith", "Sun Microsystems v. Jones", 0.5, 0.5},
		{"Internationale v. Jones", "International Widgets v. Brown", 0.25, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.a+" / "+tt.b, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
		})
	}
}

func TestSimilarity_ShortWordsNoPartial(t *testing.T) {
	// "smit" is too short for substring credit
	assert.Equal(t, 0.0, Similarity("Smit v. Doe", "Smithfield v. Roe"))
}

func TestSimilarity_SymmetricAndReflexive(t *testing.T) {
	names := []string{
		"Brown v. Board of Education",
		"Convoyant, LLC v. DeepThink, LLC",
		"Internationale v. Jones",
		"International Widgets v. Brown",
		"Washington v. Washingtonian Corp.",
		"State v. Smith",
		"",
		"The Company",
	}

	for _, a := range names {
		assert.Equal(t, 1.0, Similarity(a, a), "reflexive for %q", a)
		for _, b := range names {
			t.Run(fmt.Sprintf("%s|%s", a, b), func(t *testing.T) {
				assert.Equal(t, Similarity(a, b), Similarity(b, a))
			})
		}
	}
}

func TestMatches(t *testing.T) {
	assert.True(t, Matches("Brown v. Board of Education", "Brown v. Board of Educ. of Topeka"))
	assert.False(t, Matches("Brown v. Board of Education", "Plessy v. Ferguson"))
}

func TestSignificantWords(t *testing.T) {
	assert.Equal(t, []string{"board", "brown", "education"}, SignificantWords("Brown v. the Board of Education, Inc."))
}
