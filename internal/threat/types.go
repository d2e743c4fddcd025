package threat

import (
	"encoding/json"
	"fmt"
)

// StrideCategory classifies a threat under the STRIDE model.
type StrideCategory string

const (
	CategorySpoofing              StrideCategory = "Spoofing"
	CategoryTampering             StrideCategory = "Tampering"
	CategoryRepudiation           StrideCategory = "Repudiation"
	CategoryInformationDisclosure StrideCategory = "Information Disclosure"
	CategoryDenialOfService       StrideCategory = "Denial of Service"
	CategoryElevationOfPrivilege  StrideCategory = "Elevation of Privilege"
)

// Categories returns the six STRIDE categories in canonical order.
func Categories() []StrideCategory {
	return []StrideCategory{
		CategorySpoofing,
		CategoryTampering,
		CategoryRepudiation,
		CategoryInformationDisclosure,
		CategoryDenialOfService,
		CategoryElevationOfPrivilege,
	}
}

// String returns the string representation of StrideCategory.
func (c StrideCategory) String() string {
	return string(c)
}

// IsValid checks if the StrideCategory is a valid value.
func (c StrideCategory) IsValid() bool {
	switch c {
	case CategorySpoofing, CategoryTampering, CategoryRepudiation,
		CategoryInformationDisclosure, CategoryDenialOfService,
		CategoryElevationOfPrivilege:
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler.
func (c StrideCategory) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(c))
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *StrideCategory) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	cat := StrideCategory(str)
	if !cat.IsValid() {
		return fmt.Errorf("invalid STRIDE category: %s", str)
	}

	*c = cat
	return nil
}

// Likelihood grades how probable a threat is considered.
type Likelihood string

const (
	LikelihoodLow    Likelihood = "Low"
	LikelihoodMedium Likelihood = "Medium"
	LikelihoodHigh   Likelihood = "High"
)

// Likelihoods returns the likelihood grades in ascending order.
func Likelihoods() []Likelihood {
	return []Likelihood{LikelihoodLow, LikelihoodMedium, LikelihoodHigh}
}

// String returns the string representation of Likelihood.
func (l Likelihood) String() string {
	return string(l)
}

// IsValid checks if the Likelihood is a valid value.
func (l Likelihood) IsValid() bool {
	switch l {
	case LikelihoodLow, LikelihoodMedium, LikelihoodHigh:
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler.
func (l Likelihood) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(l))
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Likelihood) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	lk := Likelihood(str)
	if !lk.IsValid() {
		return fmt.Errorf("invalid likelihood: %s", str)
	}

	*l = lk
	return nil
}

// Threat is a single catalog entry. Name is the identity: catalogs never
// hold two threats with the same name (case-sensitive exact match).
type Threat struct {
	Name           string         `json:"name"`
	StrideCategory StrideCategory `json:"stride_category"`
	Description    string         `json:"description"`

	// Target must reference a known asset name from the analyzed architecture.
	Target string `json:"target"`

	Impact     string     `json:"impact"`
	Likelihood Likelihood `json:"likelihood"`

	// Mitigations carries 2-5 concrete countermeasures.
	Mitigations []string `json:"mitigations"`

	// Source must reference a known threat-source category.
	Source string `json:"source"`

	Prerequisites []string `json:"prerequisites,omitempty"`
	Vector        string   `json:"vector,omitempty"`

	// Starred marks a user-pinned entry. Automated paths never set it;
	// replay rebuilds the catalog around starred entries only.
	Starred bool `json:"starred"`
}

// Validate checks structural constraints on the threat itself.
// Referential checks against asset and source lists live in the gate.
func (t Threat) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("threat name is required")
	}
	if !t.StrideCategory.IsValid() {
		return fmt.Errorf("threat %q: invalid STRIDE category %q", t.Name, string(t.StrideCategory))
	}
	if !t.Likelihood.IsValid() {
		return fmt.Errorf("threat %q: invalid likelihood %q", t.Name, string(t.Likelihood))
	}
	if len(t.Mitigations) < 2 || len(t.Mitigations) > 5 {
		return fmt.Errorf("threat %q: mitigations must have 2-5 entries, got %d", t.Name, len(t.Mitigations))
	}
	return nil
}

// Catalog is an ordered, name-deduplicated list of threats.
type Catalog []Threat

// Names returns the threat names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, t := range c {
		names[i] = t.Name
	}
	return names
}

// Contains reports whether the catalog holds a threat with the given name.
func (c Catalog) Contains(name string) bool {
	for _, t := range c {
		if t.Name == name {
			return true
		}
	}
	return false
}

// Starred returns only the user-pinned entries, preserving order.
func (c Catalog) Starred() Catalog {
	var pinned Catalog
	for _, t := range c {
		if t.Starred {
			pinned = append(pinned, t)
		}
	}
	return pinned
}

// Remove returns a catalog without any entry whose name is in names
// (exact match). Removing names with no match is not an error.
func (c Catalog) Remove(names []string) Catalog {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}

	kept := make(Catalog, 0, len(c))
	for _, t := range c {
		if !drop[t.Name] {
			kept = append(kept, t)
		}
	}
	return kept
}
