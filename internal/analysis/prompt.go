package analysis

import (
	"fmt"
	"strings"
)

const classificationRules = `You are a senior paid-search analyst reviewing a search terms report for a local service business.
Classify every search term into exactly one of these categories:

1. Positive: the searcher is looking for a service the business offers, in or near the business location, with clear buying or booking intent.
2. Negative: the term wastes budget. This covers job seekers (jobs, careers, salary, hiring), do-it-yourself and how-to research, free or cheap-only intent, education and training, unrelated products or services the business does not offer, and searches for a location outside the service area.
3. Competitor: the term contains the brand or business name of a competitor.
4. Generic: the term is related to the business but too broad or ambiguous to judge intent, or is informational without a clear reason to exclude it.

Field rules for each term:
- term: the search term exactly as it appears in the CSV.
- category: one of Positive, Negative, Competitor, Generic.
- adGroup: a short thematic ad group name (2 to 4 words) grouping similar terms, based on the service the term refers to. Use "General" when no service fits.
- positivePhrase: for Positive terms only, the core phrase worth adding as a phrase-match keyword. Otherwise an empty string.
- negativePhrase: for Negative terms only, the shortest word or phrase that should be added as a negative keyword (for example "jobs" or "diy"). Otherwise an empty string.
- competitorBrand: for Competitor terms only, the competitor brand found in the term. Otherwise an empty string.
- locationExclusion: when the term names a city, region or area outside the business location, that place name. Otherwise an empty string.`

const outputRules = `Output format:
- Respond with one minified JSON object per line and nothing else: no markdown, no code fences, no commentary, no array brackets.
- Each object has exactly the keys term, category, adGroup, positivePhrase, negativePhrase, competitorBrand, locationExclusion, all string values.
- Emit exactly one line per search term, in the same order as the CSV. Skip a header row if the CSV has one.
- Example line: {"term":"emergency plumber near me","category":"Positive","adGroup":"Emergency Plumbing","positivePhrase":"emergency plumber","negativePhrase":"","competitorBrand":"","locationExclusion":""}`

// BuildPrompt assembles the classification instructions for the uploaded CSV
// and the resolved business context.
func BuildPrompt(csv, location string, competitors, services []string) string {
	builder := &strings.Builder{}
	builder.WriteString(classificationRules)
	builder.WriteString("\n\nBusiness context:\n")
	fmt.Fprintf(builder, "Business location: %s\n", valueOrUnknown(location))
	fmt.Fprintf(builder, "Known competitors: %s\n", listOrNone(competitors))
	fmt.Fprintf(builder, "Services offered: %s\n", listOrNone(services))
	if strings.TrimSpace(location) == "" {
		builder.WriteString("No location is known, so leave locationExclusion empty unless a term clearly targets a different country.\n")
	}
	if len(nonEmpty(competitors)) == 0 {
		builder.WriteString("No competitor list is available; use Competitor only for terms that plainly name another business brand.\n")
	}
	builder.WriteString("\n")
	builder.WriteString(outputRules)
	builder.WriteString("\n\nSearch terms CSV:\n")
	builder.WriteString(csv)
	if !strings.HasSuffix(csv, "\n") {
		builder.WriteString("\n")
	}
	return builder.String()
}

func valueOrUnknown(value string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return "unknown"
}

func listOrNone(values []string) string {
	cleaned := nonEmpty(values)
	if len(cleaned) == 0 {
		return "none"
	}
	return strings.Join(cleaned, ", ")
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
