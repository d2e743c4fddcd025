package threat

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// LikelihoodKPI aggregates one likelihood grade.
type LikelihoodKPI struct {
	Likelihood Likelihood `json:"likelihood"`
	Count      int        `json:"count"`
	Percentage float64    `json:"percentage"`
}

// CategoryKPI aggregates one STRIDE category.
type CategoryKPI struct {
	Category   StrideCategory `json:"category"`
	Count      int            `json:"count"`
	Percentage float64        `json:"percentage"`
}

// NameCount pairs a source or target string with its occurrence count.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// KPIs holds the aggregate catalog statistics fed into the gap-analysis
// decision and surfaced in job results.
type KPIs struct {
	TotalThreats int             `json:"total_threats"`
	ByLikelihood []LikelihoodKPI `json:"by_likelihood"`
	ByCategory   []CategoryKPI   `json:"by_category"`

	// BySource and ByTarget are sorted descending by count for presentation.
	BySource []NameCount `json:"by_source"`
	ByTarget []NameCount `json:"by_target"`
}

// ComputeKPIs aggregates catalog statistics. An empty catalog yields
// all-zero KPIs, never an error. Percentages are count/total rounded to
// one decimal, 0 when the catalog is empty.
func ComputeKPIs(catalog Catalog) KPIs {
	total := len(catalog)

	likelihoodCounts := make(map[Likelihood]int, 3)
	categoryCounts := make(map[StrideCategory]int, 6)
	sourceCounts := make(map[string]int)
	targetCounts := make(map[string]int)

	for _, t := range catalog {
		likelihoodCounts[t.Likelihood]++
		categoryCounts[t.StrideCategory]++
		sourceCounts[t.Source]++
		targetCounts[t.Target]++
	}

	kpis := KPIs{TotalThreats: total}

	for _, l := range Likelihoods() {
		count := likelihoodCounts[l]
		kpis.ByLikelihood = append(kpis.ByLikelihood, LikelihoodKPI{
			Likelihood: l,
			Count:      count,
			Percentage: percentage(count, total),
		})
	}

	for _, c := range Categories() {
		count := categoryCounts[c]
		kpis.ByCategory = append(kpis.ByCategory, CategoryKPI{
			Category:   c,
			Count:      count,
			Percentage: percentage(count, total),
		})
	}

	kpis.BySource = sortedCounts(sourceCounts)
	kpis.ByTarget = sortedCounts(targetCounts)

	return kpis
}

// Summary renders the KPIs as a compact text block suitable for inclusion
// in a gap-analysis prompt.
func (k KPIs) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Total threats: %d\n", k.TotalThreats)

	b.WriteString("By likelihood:\n")
	for _, l := range k.ByLikelihood {
		fmt.Fprintf(&b, "  %s: %d (%.1f%%)\n", l.Likelihood, l.Count, l.Percentage)
	}

	b.WriteString("By STRIDE category:\n")
	for _, c := range k.ByCategory {
		fmt.Fprintf(&b, "  %s: %d (%.1f%%)\n", c.Category, c.Count, c.Percentage)
	}

	if len(k.BySource) > 0 {
		b.WriteString("By threat source:\n")
		for _, s := range k.BySource {
			fmt.Fprintf(&b, "  %s: %d\n", s.Name, s.Count)
		}
	}

	if len(k.ByTarget) > 0 {
		b.WriteString("By target asset:\n")
		for _, t := range k.ByTarget {
			fmt.Fprintf(&b, "  %s: %d\n", t.Name, t.Count)
		}
	}

	return b.String()
}

// percentage returns count/total as a percentage rounded to one decimal.
func percentage(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*1000) / 10
}

// sortedCounts flattens a count map into a slice sorted descending by
// count, with ties broken by name for deterministic output.
func sortedCounts(counts map[string]int) []NameCount {
	out := make([]NameCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, NameCount{Name: name, Count: count})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})

	return out
}
