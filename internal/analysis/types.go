package analysis

import "strings"

// Categories a search term can be classified into.
const (
	CategoryPositive   = "Positive"
	CategoryNegative   = "Negative"
	CategoryCompetitor = "Competitor"
	CategoryGeneric    = "Generic"
)

// BusinessContext is what the resolver learned about the advertiser.
type BusinessContext struct {
	Location    string   `json:"location"`
	Competitors []string `json:"competitors"`
	Services    []string `json:"services"`
}

// WithLocation returns a copy whose location is replaced by override when it is not blank.
// Competitors and services are kept as inferred.
func (b BusinessContext) WithLocation(override string) BusinessContext {
	out := BusinessContext{
		Location:    b.Location,
		Competitors: append([]string{}, b.Competitors...),
		Services:    append([]string{}, b.Services...),
	}
	if trimmed := strings.TrimSpace(override); trimmed != "" {
		out.Location = trimmed
	}
	return out
}

// AnalysisRecord is one classified search term as emitted by the model.
type AnalysisRecord struct {
	Term              string `json:"term"`
	Category          string `json:"category"`
	AdGroup           string `json:"adGroup"`
	PositivePhrase    string `json:"positivePhrase"`
	NegativePhrase    string `json:"negativePhrase"`
	CompetitorBrand   string `json:"competitorBrand"`
	LocationExclusion string `json:"locationExclusion"`
}

// Fields returns the record values in export column order.
func (r AnalysisRecord) Fields() []string {
	return []string{
		r.Term,
		r.Category,
		r.AdGroup,
		r.PositivePhrase,
		r.NegativePhrase,
		r.CompetitorBrand,
		r.LocationExclusion,
	}
}

func (r AnalysisRecord) complete() bool {
	return strings.TrimSpace(r.Term) != "" && strings.TrimSpace(r.Category) != ""
}
