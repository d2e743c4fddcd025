package threat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkThreat(name, target, source string) Threat {
	return Threat{
		Name:           name,
		StrideCategory: CategoryTampering,
		Description:    "test threat",
		Target:         target,
		Impact:         "test impact",
		Likelihood:     LikelihoodMedium,
		Mitigations:    []string{"mitigation one", "mitigation two"},
		Source:         source,
	}
}

func TestMergeFirstWriteWins(t *testing.T) {
	existing := Catalog{mkThreat("SQL Injection", "API", "External")}

	incoming := Catalog{
		func() Threat {
			dup := mkThreat("SQL Injection", "Database", "Insider")
			dup.Description = "a different description"
			return dup
		}(),
		mkThreat("Credential Stuffing", "Login", "External"),
	}

	merged := Merge(existing, incoming)

	require.Len(t, merged, 2)
	assert.Equal(t, "SQL Injection", merged[0].Name)
	assert.Equal(t, "API", merged[0].Target, "existing entry must survive a same-name merge")
	assert.Equal(t, "test threat", merged[0].Description)
	assert.Equal(t, "Credential Stuffing", merged[1].Name)
}

func TestMergePreservesOrder(t *testing.T) {
	existing := Catalog{mkThreat("A", "x", "s"), mkThreat("B", "x", "s")}
	incoming := Catalog{mkThreat("C", "x", "s"), mkThreat("A", "y", "s")}

	merged := Merge(existing, incoming)

	assert.Equal(t, []string{"A", "B", "C"}, merged.Names())
}

func TestMergeDedupsExisting(t *testing.T) {
	existing := Catalog{mkThreat("A", "x", "s"), mkThreat("A", "y", "s")}

	merged := Merge(existing, nil)

	require.Len(t, merged, 1)
	assert.Equal(t, "x", merged[0].Target)
}

func TestMergeEmptyInputs(t *testing.T) {
	assert.Empty(t, Merge(nil, nil))
	assert.Equal(t, []string{"A"}, Merge(Catalog{mkThreat("A", "x", "s")}, nil).Names())
	assert.Equal(t, []string{"A"}, Merge(nil, Catalog{mkThreat("A", "x", "s")}).Names())
}

func TestCatalogStarred(t *testing.T) {
	pinned := mkThreat("Keep", "x", "s")
	pinned.Starred = true

	catalog := Catalog{mkThreat("Drop", "x", "s"), pinned}

	kept := catalog.Starred()
	require.Len(t, kept, 1)
	assert.Equal(t, "Keep", kept[0].Name)
	assert.Empty(t, Catalog{mkThreat("Drop", "x", "s")}.Starred())
}

func TestCatalogRemove(t *testing.T) {
	catalog := Catalog{mkThreat("A", "x", "s"), mkThreat("B", "x", "s"), mkThreat("C", "x", "s")}

	kept := catalog.Remove([]string{"B", "Missing"})

	assert.Equal(t, []string{"A", "C"}, kept.Names())
	assert.False(t, kept.Contains("B"))
}
