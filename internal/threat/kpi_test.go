package threat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeKPIsEmptyCatalog(t *testing.T) {
	kpis := ComputeKPIs(nil)

	assert.Equal(t, 0, kpis.TotalThreats)
	require.Len(t, kpis.ByLikelihood, 3)
	require.Len(t, kpis.ByCategory, 6)
	for _, l := range kpis.ByLikelihood {
		assert.Equal(t, 0, l.Count)
		assert.Equal(t, 0.0, l.Percentage)
	}
	assert.Empty(t, kpis.BySource)
	assert.Empty(t, kpis.ByTarget)
}

func TestComputeKPIsPercentageRounding(t *testing.T) {
	// 1 of 3 is 33.333...%, which must round to one decimal.
	catalog := Catalog{
		mkThreat("A", "api", "external"),
		mkThreat("B", "api", "external"),
		mkThreat("C", "db", "insider"),
	}
	catalog[0].Likelihood = LikelihoodHigh
	catalog[1].Likelihood = LikelihoodMedium
	catalog[2].Likelihood = LikelihoodMedium

	kpis := ComputeKPIs(catalog)

	assert.Equal(t, 3, kpis.TotalThreats)

	byLikelihood := make(map[Likelihood]LikelihoodKPI)
	for _, l := range kpis.ByLikelihood {
		byLikelihood[l.Likelihood] = l
	}
	assert.Equal(t, 33.3, byLikelihood[LikelihoodHigh].Percentage)
	assert.Equal(t, 66.7, byLikelihood[LikelihoodMedium].Percentage)
	assert.Equal(t, 0.0, byLikelihood[LikelihoodLow].Percentage)
}

func TestComputeKPIsCountsSortedDescending(t *testing.T) {
	catalog := Catalog{
		mkThreat("A", "api", "external"),
		mkThreat("B", "api", "external"),
		mkThreat("C", "db", "insider"),
		mkThreat("D", "api", "insider"),
	}

	kpis := ComputeKPIs(catalog)

	require.Len(t, kpis.ByTarget, 2)
	assert.Equal(t, NameCount{Name: "api", Count: 3}, kpis.ByTarget[0])
	assert.Equal(t, NameCount{Name: "db", Count: 1}, kpis.ByTarget[1])

	// external and insider tie at 2; the tie breaks alphabetically.
	require.Len(t, kpis.BySource, 2)
	assert.Equal(t, "external", kpis.BySource[0].Name)
	assert.Equal(t, "insider", kpis.BySource[1].Name)
}

func TestKPISummaryMentionsTotals(t *testing.T) {
	catalog := Catalog{mkThreat("A", "api", "external")}

	summary := ComputeKPIs(catalog).Summary()

	assert.Contains(t, summary, "Total threats: 1")
	assert.Contains(t, summary, "Tampering: 1 (100.0%)")
	assert.Contains(t, summary, "api: 1")
}
