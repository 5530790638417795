// Package services provides the edit/sync engine and the aggregation logic
// built on top of the core calendar model.
package services

import (
	"fmt"

	"andvaranaut/internal/core"
)

// FareRule computes one day's commute cost from the day's commute event,
// its walking events and the transit unit price. The rule for combining an
// explicit commute fare with walking-leg substitutions has shifted over
// time, so each observed variant lives behind its own implementation.
type FareRule interface {
	// DayCost returns the cost contribution of a single commute day.
	DayCost(commute core.Event, walks []core.Event, unitPrice int) int
}

// LegFareRule is the current rule. An explicit commute fare is taken as the
// base and every walking leg contributes its own fare, defaulting to one
// refunded unit-price leg when the walking event carries none. Without an
// explicit commute fare the cost is a round trip minus one leg per walk.
type LegFareRule struct{}

// DayCost implements FareRule.
func (LegFareRule) DayCost(commute core.Event, walks []core.Event, unitPrice int) int {
	base, explicit := commute.FareValue()
	if !explicit {
		return unitPrice * (2 - len(walks))
	}
	cost := base
	for _, w := range walks {
		if fare, ok := w.FareValue(); ok {
			cost += fare
		} else {
			cost -= unitPrice
		}
	}
	return cost
}

// RoundTripFareRule is the historical rule: always a round trip minus one
// unit-price leg per walking event, ignoring any per-event fares.
type RoundTripFareRule struct{}

// DayCost implements FareRule.
func (RoundTripFareRule) DayCost(_ core.Event, walks []core.Event, unitPrice int) int {
	return unitPrice * (2 - len(walks))
}

// fareRules maps rule names to their implementations.
var fareRules = map[string]FareRule{
	"leg":        LegFareRule{},
	"round-trip": RoundTripFareRule{},
}

// DefaultFareRuleName selects the current rule.
const DefaultFareRuleName = "leg"

// GetFareRule returns the fare rule registered under name.
func GetFareRule(name string) (FareRule, error) {
	rule, ok := fareRules[name]
	if !ok {
		return nil, fmt.Errorf("unknown fare rule: %s", name)
	}
	return rule, nil
}
