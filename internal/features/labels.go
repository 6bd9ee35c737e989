package features

import (
	"fmt"
	"sort"
	"strings"

	"solana-telemetry-lab/internal/domain"
)

// LabelRule derives the scalar label of one record.
type LabelRule interface {
	Name() string
	Label(r domain.TelemetryRecord) float64
}

// labelFunc adapts a function to LabelRule.
type labelFunc struct {
	name string
	fn   func(domain.TelemetryRecord) float64
}

func (l labelFunc) Name() string                           { return l.name }
func (l labelFunc) Label(r domain.TelemetryRecord) float64 { return l.fn(r) }

// Built-in label rules.
var (
	// LabelBalance uses the record balance. This duplicates the first feature column.
	LabelBalance LabelRule = labelFunc{"balance", func(r domain.TelemetryRecord) float64 {
		return float64(r.Balance)
	}}

	// LabelBlockProductionRate uses the block production rate, which is not a feature column.
	LabelBlockProductionRate LabelRule = labelFunc{"block_production_rate", func(r domain.TelemetryRecord) float64 {
		return float64(r.BlockProductionRate)
	}}

	// LabelClusterNodes uses the cluster node count.
	LabelClusterNodes LabelRule = labelFunc{"cluster_nodes", func(r domain.TelemetryRecord) float64 {
		return float64(r.ClusterNodes)
	}}

	// LabelLargestAccounts uses the number of largest-holder entries.
	LabelLargestAccounts LabelRule = labelFunc{"largest_accounts", func(r domain.TelemetryRecord) float64 {
		return float64(len(r.LargestAccounts))
	}}
)

// DefaultLabelRule is the rule used when none is configured.
var DefaultLabelRule = LabelBalance

var labelRules = map[string]LabelRule{
	LabelBalance.Name():             LabelBalance,
	LabelBlockProductionRate.Name(): LabelBlockProductionRate,
	LabelClusterNodes.Name():        LabelClusterNodes,
	LabelLargestAccounts.Name():     LabelLargestAccounts,
}

// LabelRuleByName resolves a configured rule name.
func LabelRuleByName(name string) (LabelRule, error) {
	if name == "" {
		return DefaultLabelRule, nil
	}
	rule, ok := labelRules[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: unknown label rule %q (known: %s)",
			domain.ErrInvalidConfig, name, strings.Join(LabelRuleNames(), ", "))
	}
	return rule, nil
}

// LabelRuleNames lists the built-in rule names sorted.
func LabelRuleNames() []string {
	names := make([]string, 0, len(labelRules))
	for n := range labelRules {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
