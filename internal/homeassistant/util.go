package homeassistant

import (
	"fmt"
	"strings"

	"github.com/alarmbridge/sia2mqtt/internal/types"
)

func getDeviceClass(d types.Device) string {
	switch strings.ToLower(d.Type) {
	case "doorwindow", "reed", "contact":
		return "door"
	case "motion", "pir":
		return "motion"
	case "smoke", "fire":
		return "smoke"
	case "gas":
		return "gas"
	case "flood", "water", "leak":
		return "moisture"
	case "valve":
		return "opening"
	}

	// Fall back to guessing from the name
	name := strings.ToLower(d.Name)
	if strings.Contains(name, "door") {
		return "door"
	}
	if strings.Contains(name, "window") {
		return "window"
	}
	if strings.Contains(name, "smoke") || strings.Contains(name, "fire") {
		return "smoke"
	}
	if strings.Contains(name, "water") || strings.Contains(name, "leak") {
		return "moisture"
	}

	return "motion"
}

func deviceValueTemplate(d types.Device) string {
	key := types.ModelKeyMotion
	switch strings.ToLower(d.Type) {
	case "doorwindow", "reed", "contact":
		key = types.ModelKeyContact
	case "smoke", "fire":
		key = types.ModelKeySmoke
	case "flood", "water", "leak":
		key = types.ModelKeyFlood
	case "valve":
		key = types.ModelKeyValveOpen
	}
	return fmt.Sprintf("{{ value_json.model.%s }}", key)
}
