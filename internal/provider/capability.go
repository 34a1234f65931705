package provider

import "strings"

// CapabilitySet is the declared set of scenarios an adapter implements.
// A scenario outside the set is never scheduled for that adapter.
type CapabilitySet uint8

// Capabilities builds a set from scenarios. Unknown scenarios are ignored.
func Capabilities(scenarios ...Scenario) CapabilitySet {
	var set CapabilitySet
	for _, s := range scenarios {
		set |= s.bit()
	}
	return set
}

// AllCapabilities declares every scenario.
func AllCapabilities() CapabilitySet {
	return Capabilities(allScenarios...)
}

func (c CapabilitySet) Has(s Scenario) bool {
	bit := s.bit()
	return bit != 0 && c&bit == bit
}

// List returns the declared scenarios in display order.
func (c CapabilitySet) List() []Scenario {
	var out []Scenario
	for _, s := range allScenarios {
		if c.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

// Intersect keeps only scenarios present in both sets.
func (c CapabilitySet) Intersect(other CapabilitySet) CapabilitySet {
	return c & other
}

func (c CapabilitySet) Len() int {
	return len(c.List())
}

func (c CapabilitySet) String() string {
	list := c.List()
	if len(list) == 0 {
		return "none"
	}
	names := make([]string, len(list))
	for i, s := range list {
		names[i] = string(s)
	}
	return strings.Join(names, ",")
}
