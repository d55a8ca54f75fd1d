package builder

import (
	"pcbuilder/internal/domain"
)

// Rule narrows a candidate list for one component type.
// A rule must return candidates unchanged for component types it does not target.
type Rule interface {
	Apply(candidates []domain.Product, ct domain.ComponentType) []domain.Product
}

// MinRAMSize keeps RAM kits whose total size is at least MinTotalGB.
type MinRAMSize struct {
	MinTotalGB int
}

func (r MinRAMSize) Apply(candidates []domain.Product, ct domain.ComponentType) []domain.Product {
	if ct != domain.ComponentRAM {
		return candidates
	}
	kept := make([]domain.Product, 0, len(candidates))
	for _, p := range candidates {
		if p.RAM != nil && p.RAM.TotalMemory >= r.MinTotalGB {
			kept = append(kept, p)
		}
	}
	return kept
}

var purposeRules = map[string][]Rule{
	"gaming":      {MinRAMSize{MinTotalGB: 16}},
	"office":      {MinRAMSize{MinTotalGB: 8}},
	"development": {MinRAMSize{MinTotalGB: 32}},
}

// RulesFor returns the rules for a usage purpose. Unknown purposes get no rules.
func RulesFor(purpose string) []Rule {
	rules := purposeRules[purpose]
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

func applyRules(rules []Rule, candidates []domain.Product, ct domain.ComponentType) []domain.Product {
	for _, rule := range rules {
		if len(candidates) == 0 {
			break
		}
		candidates = rule.Apply(candidates, ct)
	}
	return candidates
}
