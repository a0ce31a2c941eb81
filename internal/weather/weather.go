// Package weather defines the boundary types for the weather collaborator.
// The engine never polls a provider itself; observations arrive pushed from
// the product and are validated here before the pivot lifecycle sees them.
package weather

import (
	"fmt"
	"strings"
)

// Conditions the collaborator may report. The engine only distinguishes wet
// from everything else, but the full vocabulary is validated so typos fail
// loudly at the boundary instead of silently never triggering.
const (
	ConditionClear        = "clear"
	ConditionClouds       = "clouds"
	ConditionWind         = "wind"
	ConditionRain         = "rain"
	ConditionHeavyRain    = "heavy_rain"
	ConditionStorm        = "storm"
	ConditionThunderstorm = "thunderstorm"
	ConditionSnow         = "snow"
	ConditionHail         = "hail"
)

var knownConditions = map[string]bool{
	ConditionClear:        true,
	ConditionClouds:       true,
	ConditionWind:         true,
	ConditionRain:         true,
	ConditionHeavyRain:    true,
	ConditionStorm:        true,
	ConditionThunderstorm: true,
	ConditionSnow:         true,
	ConditionHail:         true,
}

// Observation is one pushed weather report scoped to a slot.
type Observation struct {
	// Condition is one of the condition constants above.
	Condition string

	// SlotCategory is the category tag of the slot the report targets,
	// echoed by the collaborator so the trigger check is self-contained.
	SlotCategory string
}

// Normalize lower-cases and validates an incoming condition string.
func Normalize(condition string) (string, error) {
	c := strings.ToLower(strings.TrimSpace(condition))
	if !knownConditions[c] {
		return "", fmt.Errorf("unknown weather condition %q", condition)
	}
	return c, nil
}
