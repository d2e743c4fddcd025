package threat

import "fmt"

// Violation describes one referential check a candidate threat failed.
type Violation struct {
	ThreatName string `json:"threat_name"`
	Field      string `json:"field"`
	Value      string `json:"value"`
	Message    string `json:"message"`
}

// String renders the violation for a per-item report.
func (v Violation) String() string {
	return fmt.Sprintf("threat %q: %s", v.ThreatName, v.Message)
}

// Validate checks a candidate threat against the current valid-asset and
// valid-source-category sets. Both checks are independent: a candidate
// failing both yields two violations, not one short-circuited report.
// A nil return means the candidate may be admitted to the catalog.
func Validate(t Threat, validAssetNames, validSourceCategories []string) []Violation {
	var violations []Violation

	if !containsString(validAssetNames, t.Target) {
		violations = append(violations, Violation{
			ThreatName: t.Name,
			Field:      "target",
			Value:      t.Target,
			Message: fmt.Sprintf("target %q does not match any known asset (valid: %v)",
				t.Target, validAssetNames),
		})
	}

	if !containsString(validSourceCategories, t.Source) {
		violations = append(violations, Violation{
			ThreatName: t.Name,
			Field:      "source",
			Value:      t.Source,
			Message: fmt.Sprintf("source %q does not match any known threat-source category (valid: %v)",
				t.Source, validSourceCategories),
		})
	}

	return violations
}

// Partition splits candidates into admissible threats and the violations
// of the rejected ones, preserving candidate order.
func Partition(candidates []Threat, validAssetNames, validSourceCategories []string) (valid Catalog, violations []Violation) {
	for _, c := range candidates {
		v := Validate(c, validAssetNames, validSourceCategories)
		if len(v) > 0 {
			violations = append(violations, v...)
			continue
		}
		valid = append(valid, c)
	}
	return valid, violations
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
