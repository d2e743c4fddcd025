package threat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	validAssets  = []string{"API Gateway", "User Database"}
	validSources = []string{"External attacker", "Malicious insider"}
)

func TestValidateAcceptsKnownReferences(t *testing.T) {
	threat := mkThreat("ok", "API Gateway", "External attacker")
	assert.Empty(t, Validate(threat, validAssets, validSources))
}

func TestValidateUnknownTarget(t *testing.T) {
	threat := mkThreat("bad-target", "Load Balancer", "External attacker")

	violations := Validate(threat, validAssets, validSources)

	require.Len(t, violations, 1)
	assert.Equal(t, "target", violations[0].Field)
	assert.Equal(t, "Load Balancer", violations[0].Value)
	assert.Contains(t, violations[0].Message, "API Gateway")
}

func TestValidateUnknownSource(t *testing.T) {
	threat := mkThreat("bad-source", "API Gateway", "Script kiddie")

	violations := Validate(threat, validAssets, validSources)

	require.Len(t, violations, 1)
	assert.Equal(t, "source", violations[0].Field)
}

func TestValidateBothChecksReportedTogether(t *testing.T) {
	threat := mkThreat("bad-both", "Nowhere", "Nobody")

	violations := Validate(threat, validAssets, validSources)

	require.Len(t, violations, 2, "target and source checks must not short-circuit")
	assert.Equal(t, "target", violations[0].Field)
	assert.Equal(t, "source", violations[1].Field)
}

func TestValidateExactMatchIsCaseSensitive(t *testing.T) {
	threat := mkThreat("case", "api gateway", "External attacker")
	assert.Len(t, Validate(threat, validAssets, validSources), 1)
}

func TestPartitionSplitsAndPreservesOrder(t *testing.T) {
	candidates := []Threat{
		mkThreat("first", "API Gateway", "External attacker"),
		mkThreat("bad", "Nowhere", "External attacker"),
		mkThreat("second", "User Database", "Malicious insider"),
	}

	valid, violations := Partition(candidates, validAssets, validSources)

	assert.Equal(t, []string{"first", "second"}, valid.Names())
	require.Len(t, violations, 1)
	assert.Equal(t, "bad", violations[0].ThreatName)
}

func TestThreatValidateMitigationBounds(t *testing.T) {
	threat := mkThreat("m", "API Gateway", "External attacker")

	threat.Mitigations = []string{"only one"}
	assert.Error(t, threat.Validate())

	threat.Mitigations = []string{"1", "2", "3", "4", "5", "6"}
	assert.Error(t, threat.Validate())

	threat.Mitigations = []string{"1", "2"}
	assert.NoError(t, threat.Validate())
}

func TestThreatValidateRejectsBadEnums(t *testing.T) {
	threat := mkThreat("e", "API Gateway", "External attacker")

	threat.StrideCategory = "Phishing"
	assert.Error(t, threat.Validate())

	threat = mkThreat("e", "API Gateway", "External attacker")
	threat.Likelihood = "Certain"
	assert.Error(t, threat.Validate())
}
