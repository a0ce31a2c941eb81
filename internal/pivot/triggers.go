package pivot

import (
	"fmt"

	"github.com/tripmates/accord/internal/classify"
	"github.com/tripmates/accord/internal/models"
	"github.com/tripmates/accord/internal/weather"
)

// MinTriggerConfidence is the bar a classified report must clear, strictly,
// before it may create a pivot. Degraded gate results sit exactly at the
// bar and therefore never pass.
const MinTriggerConfidence = 0.5

// outdoorCategories is the fixed set of slot categories a weather trigger
// can disrupt.
var outdoorCategories = map[string]bool{
	"outdoor":      true,
	"hike":         true,
	"beach":        true,
	"park":         true,
	"walking_tour": true,
	"viewpoint":    true,
}

// wetConditions is the fixed set of weather conditions that count as a
// disruption for outdoor slots.
var wetConditions = map[string]bool{
	weather.ConditionRain:         true,
	weather.ConditionHeavyRain:    true,
	weather.ConditionStorm:        true,
	weather.ConditionThunderstorm: true,
	weather.ConditionSnow:         true,
	weather.ConditionHail:         true,
}

// WeatherTriggers reports whether the observation disrupts the slot: the
// category must be outdoor and the condition wet, both from their fixed
// sets. Anything else is a quiet non-event.
func WeatherTriggers(obs weather.Observation) bool {
	return outdoorCategories[obs.SlotCategory] && wetConditions[obs.Condition]
}

// TriggerForLabel maps a classification label onto a trigger type. The
// table is total over the classifier vocabulary; any other label is an
// error, never a silent default.
func TriggerForLabel(label string) (models.TriggerType, error) {
	switch label {
	case classify.LabelMoodShift:
		return models.TriggerUserMood, nil
	case classify.LabelVenueClosure:
		return models.TriggerVenueClosed, nil
	case classify.LabelTimeOverrun:
		return models.TriggerTimeOverrun, nil
	case classify.LabelCustom:
		return models.TriggerUserRequest, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLabel, label)
}
