package engine

import (
	"github.com/threatforge/threatforge/internal/schema"
	"github.com/threatforge/threatforge/internal/threat"
)

// Stage response payloads. Each stage decodes the model's structured
// output into one of these before mutating AgentState.

type summaryResponse struct {
	Summary string `json:"summary"`
}

type assetsResponse struct {
	Reasoning string  `json:"reasoning,omitempty"`
	Assets    []Asset `json:"assets"`
}

type architectureResponse struct {
	Reasoning       string         `json:"reasoning,omitempty"`
	DataFlows       []string       `json:"data_flows"`
	TrustBoundaries []string       `json:"trust_boundaries"`
	ThreatSources   []ThreatSource `json:"threat_sources"`
}

type threatsResponse struct {
	Reasoning string          `json:"reasoning,omitempty"`
	Threats   []threat.Threat `json:"threats"`
}

type gapResponse struct {
	Stop bool   `json:"stop"`
	Gap  string `json:"gap"`
}

func summarySchema() schema.JSONSchema {
	return schema.NewObjectSchema(map[string]schema.SchemaField{
		"summary": schema.NewStringField("Concise technical summary of the system architecture"),
	}, []string{"summary"})
}

func assetsSchema() schema.JSONSchema {
	return schema.NewObjectSchema(map[string]schema.SchemaField{
		"reasoning": schema.NewStringField("Brief reasoning behind the asset inventory"),
		"assets": schema.NewArrayField("All assets and external entities",
			assetField()),
	}, []string{"assets"})
}

func assetField() schema.SchemaField {
	return schema.NewObjectField("One asset or external entity", map[string]schema.SchemaField{
		"type":        schema.NewStringField("Asset for owned components, Entity for external actors").WithEnum("Asset", "Entity"),
		"name":        schema.NewStringField("Unique name"),
		"description": schema.NewStringField("One or two sentence description"),
	}, []string{"type", "name", "description"})
}

func architectureSchema() schema.JSONSchema {
	return schema.NewObjectSchema(map[string]schema.SchemaField{
		"reasoning":        schema.NewStringField("Brief reasoning behind the data-flow analysis"),
		"data_flows":       schema.NewArrayField("How information moves through the system", schema.NewStringField("One data flow")),
		"trust_boundaries": schema.NewArrayField("Where the trust level changes", schema.NewStringField("One trust boundary")),
		"threat_sources": schema.NewArrayField("Adversary categories", schema.NewObjectField(
			"One threat-source category", map[string]schema.SchemaField{
				"category":    schema.NewStringField("Category name"),
				"description": schema.NewStringField("What this adversary is"),
				"example":     schema.NewStringField("A concrete example"),
			}, []string{"category", "description", "example"})),
	}, []string{"data_flows", "trust_boundaries", "threat_sources"})
}

func threatsSchema() schema.JSONSchema {
	return schema.NewObjectSchema(map[string]schema.SchemaField{
		"reasoning": schema.NewStringField("Brief reasoning behind the identified threats"),
		"threats":   schema.NewArrayField("Identified threats", threatField()),
	}, []string{"threats"})
}

// threatField is shared by the graph-mode response schema and the
// agentic add_threats tool parameters.
func threatField() schema.SchemaField {
	categories := make([]string, 0, 6)
	for _, c := range threat.Categories() {
		categories = append(categories, c.String())
	}

	return schema.NewObjectField("One threat", map[string]schema.SchemaField{
		"name":            schema.NewStringField("Short unique threat name"),
		"stride_category": schema.NewStringField("STRIDE category").WithEnum(categories...),
		"description":     schema.NewStringField("How the attack works"),
		"target":          schema.NewStringField("Targeted asset; must match a listed asset name exactly"),
		"impact":          schema.NewStringField("Consequence if the attack succeeds"),
		"likelihood":      schema.NewStringField("How probable the threat is").WithEnum("Low", "Medium", "High"),
		"mitigations": schema.NewArrayField("Concrete countermeasures",
			schema.NewStringField("One mitigation")).WithItemBounds(2, 5),
		"source":        schema.NewStringField("Threat source; must match a listed source category exactly"),
		"prerequisites": schema.NewArrayField("What the attacker needs first", schema.NewStringField("One prerequisite")),
		"vector":        schema.NewStringField("Attack vector"),
	}, []string{"name", "stride_category", "description", "target", "impact", "likelihood", "mitigations", "source"})
}

func gapSchema() schema.JSONSchema {
	return schema.NewObjectSchema(map[string]schema.SchemaField{
		"stop": schema.NewBooleanField("True when the catalog is complete enough to stop iterating"),
		"gap":  schema.NewStringField("The most important gap to close next; empty when stopping"),
	}, []string{"stop"})
}
