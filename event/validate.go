package event

import (
	"fmt"
	"strings"
	"time"

	"github.com/ingestsdk/go-sdk/pkg/logging"
)

// validateProperties enforces that preset events are
// checked against the closed schema; everything else follows the
// generic per-event-kind value rules.
func validateProperties(eventName, sendType string, properties map[string]interface{}) error {
	isPreset := (strings.HasPrefix(eventName, "#") || strings.HasPrefix(eventName, "$")) && sendType == "track"

	if isPreset {
		if !isPresetEvent(eventName) {
			return logging.ErrIllegalData(eventName, fmt.Sprintf("event_name %q is out of scope for preset events", eventName))
		}
		return validatePresetProperties(eventName, properties)
	}

	switch eventName {
	case "#user_add":
		return validateAllNumeric(eventName, properties)
	case "#user_append", "#user_uniq_append":
		return validateAllLists(eventName, properties)
	default:
		return validateGenericProperties(eventName, properties)
	}
}

func validatePresetProperties(eventName string, properties map[string]interface{}) error {
	for key, value := range properties {
		prop, ok := findPresetProp(eventName, key)
		if !ok {
			return logging.ErrIllegalData(eventName, fmt.Sprintf("property %q is out of scope for preset event %q", key, eventName))
		}
		if !prop.kind.matches(value) {
			return logging.ErrIllegalData(eventName, fmt.Sprintf("property %q has the wrong type for preset event %q", key, eventName))
		}
	}
	return nil
}

func validateAllNumeric(eventName string, properties map[string]interface{}) error {
	for key, value := range properties {
		if !isNumber(value) {
			return logging.ErrIllegalData(eventName, fmt.Sprintf("property %q must be numeric for #user_add", key))
		}
	}
	return nil
}

func validateAllLists(eventName string, properties map[string]interface{}) error {
	for key, value := range properties {
		if _, ok := value.([]interface{}); !ok {
			return logging.ErrIllegalData(eventName, fmt.Sprintf("property %q must be a list for %s", key, eventName))
		}
	}
	return nil
}

func validateGenericProperties(eventName string, properties map[string]interface{}) error {
	for key, value := range properties {
		if !nameRegex.MatchString(key) {
			return logging.ErrIllegalData(eventName, fmt.Sprintf("property key %q is not a valid name", key))
		}
		if !isSupportedValue(value) {
			return logging.ErrIllegalData(eventName, fmt.Sprintf("property %q has an unsupported value type %T", key, value))
		}
	}
	return nil
}

func isNumber(v interface{}) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	}
	return false
}

// isSupportedValue enforces the closed value-kind set for generic events:
// number, string, boolean, list, map, and time.Time (date or datetime).
// A nil value is also accepted.
func isSupportedValue(v interface{}) bool {
	switch v.(type) {
	case nil:
		return true
	case string, bool:
		return true
	case int, int32, int64, float32, float64:
		return true
	case []interface{}:
		return true
	case map[string]interface{}:
		return true
	case time.Time:
		return true
	default:
		return false
	}
}
