package sia

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/alarmbridge/sia2mqtt/internal/types"
)

// Contact-ID grammar: qualifier digit (1 new event, 3 restore, 6 status),
// 3-digit code, 2-digit partition, 3-digit zone. Panels embed spaces and
// routing/account prefixes, so the pattern is searched, not anchored.
var cidRe = regexp.MustCompile(`([136])\s?([0-9]{3})\s?([0-9]{2})\s?([0-9]{3})\s*$`)

// SIA-DCS payload: optional "Nri<partition>/" routing prefix, 2-letter event
// code, optional zone digits. Example: Nri1/BA001
var siaRe = regexp.MustCompile(`(?:N?ri([0-9]+)/)?([A-Z]{2})([0-9]{0,4})`)

// decodeContactID parses a Contact-ID payload. Returns nil when the payload
// does not match the grammar.
func decodeContactID(payload string) *Event {
	m := cidRe.FindStringSubmatch(payload)
	if m == nil {
		return nil
	}
	q, _ := strconv.Atoi(m[1])
	code := m[2]
	partition, _ := strconv.Atoi(m[3])
	zone, _ := strconv.Atoi(m[4])

	return &Event{
		Qualifier:   Qualifier(q),
		Code:        code,
		Partition:   partition,
		Zone:        zone,
		Category:    categoryForCode(code),
		Description: descriptionForCode(code),
	}
}

// decodeSIA parses a native SIA payload by looking the 2-letter code up in
// the fixed code table. Returns nil for unknown codes.
func decodeSIA(payload string) *Event {
	m := siaRe.FindStringSubmatch(payload)
	if m == nil {
		return nil
	}
	entry, ok := siaCodes[m[2]]
	if !ok {
		return nil
	}
	partition := 0
	if m[1] != "" {
		partition, _ = strconv.Atoi(m[1])
	}
	zone := 0
	if m[3] != "" {
		zone, _ = strconv.Atoi(m[3])
	}

	return &Event{
		Qualifier:   entry.qualifier,
		Code:        entry.code,
		Partition:   partition,
		Zone:        zone,
		Category:    entry.category,
		Description: entry.description,
		SIACode:     m[2],
	}
}

type siaCode struct {
	code        string
	qualifier   Qualifier
	category    types.EventCategory
	description string
}

// siaCodes maps 2-letter SIA event codes onto their Contact-ID equivalents.
// One consistent table snapshot; do not mix entries from other revisions of
// the mapping.
var siaCodes = map[string]siaCode{
	"BA": {"130", QualifierEvent, types.CategoryBurglary, "Burglary alarm"},
	"BR": {"130", QualifierRestore, types.CategoryBurglary, "Burglary alarm restore"},
	"BB": {"570", QualifierEvent, types.CategoryArming, "Burglary bypass"},
	"BU": {"570", QualifierRestore, types.CategoryArming, "Burglary unbypass"},
	"FA": {"110", QualifierEvent, types.CategoryFire, "Fire alarm"},
	"FR": {"110", QualifierRestore, types.CategoryFire, "Fire alarm restore"},
	"WA": {"154", QualifierEvent, types.CategoryWater, "Water leakage alarm"},
	"WR": {"154", QualifierRestore, types.CategoryWater, "Water leakage restore"},
	"GA": {"151", QualifierEvent, types.CategoryGas, "Gas alarm"},
	"GR": {"151", QualifierRestore, types.CategoryGas, "Gas alarm restore"},
	"TA": {"137", QualifierEvent, types.CategoryTamper, "Tamper alarm"},
	"TR": {"137", QualifierRestore, types.CategoryTamper, "Tamper restore"},
	"PA": {"120", QualifierEvent, types.CategoryPanic, "Panic alarm"},
	"PR": {"120", QualifierRestore, types.CategoryPanic, "Panic restore"},
	"HA": {"121", QualifierEvent, types.CategoryDuress, "Duress alarm"},
	"HR": {"121", QualifierRestore, types.CategoryDuress, "Duress restore"},
	"OP": {"401", QualifierEvent, types.CategoryArming, "Opening (disarm)"},
	"CL": {"401", QualifierRestore, types.CategoryArming, "Closing (arm)"},
	"OG": {"402", QualifierEvent, types.CategoryArming, "Group opening"},
	"CG": {"402", QualifierRestore, types.CategoryArming, "Group closing"},
	"NL": {"441", QualifierRestore, types.CategoryArming, "Perimeter armed (night)"},
	"CF": {"441", QualifierRestore, types.CategoryArming, "Forced closing"},
	"CI": {"441", QualifierRestore, types.CategoryArming, "Fail to close"},
	"AT": {"301", QualifierEvent, types.CategoryTrouble, "AC power trouble"},
	"AR": {"301", QualifierRestore, types.CategoryTrouble, "AC power restore"},
	"YT": {"302", QualifierEvent, types.CategoryTrouble, "System battery trouble"},
	"YR": {"302", QualifierRestore, types.CategoryTrouble, "System battery restore"},
	"XT": {"384", QualifierEvent, types.CategoryTrouble, "Transmitter battery trouble"},
	"XR": {"384", QualifierRestore, types.CategoryTrouble, "Transmitter battery restore"},
	"YC": {"350", QualifierEvent, types.CategoryCommunication, "Communication failure"},
	"YK": {"350", QualifierRestore, types.CategoryCommunication, "Communication restore"},
	"YS": {"354", QualifierEvent, types.CategoryCommunication, "Failed to communicate event"},
	"US": {"381", QualifierEvent, types.CategoryCommunication, "Device supervision loss"},
	"UR": {"381", QualifierRestore, types.CategoryCommunication, "Device supervision restore"},
	"ET": {"333", QualifierEvent, types.CategoryTrouble, "Expansion module trouble"},
	"ER": {"333", QualifierRestore, types.CategoryTrouble, "Expansion module restore"},
	"UA": {"140", QualifierEvent, types.CategoryBurglary, "General alarm"},
	"UB": {"140", QualifierRestore, types.CategoryBurglary, "General alarm restore"},
	"LB": {"627", QualifierEvent, types.CategorySystem, "Local program begin"},
	"LX": {"628", QualifierEvent, types.CategorySystem, "Local program end"},
	"RB": {"627", QualifierEvent, types.CategorySystem, "Remote program begin"},
	"RS": {"628", QualifierEvent, types.CategorySystem, "Remote program success"},
	"RP": {"602", QualifierEvent, types.CategoryTest, "Automatic test"},
	"RX": {"601", QualifierEvent, types.CategoryTest, "Manual test"},
	"TX": {"602", QualifierEvent, types.CategoryTest, "Test report"},
}

// categoryForCode maps a Contact-ID code onto its domain category.
func categoryForCode(code string) types.EventCategory {
	n, err := strconv.Atoi(code)
	if err != nil {
		return types.CategoryUnknown
	}
	switch {
	case n == 121:
		return types.CategoryDuress
	case n == 120 || n == 122:
		return types.CategoryPanic
	case n >= 110 && n <= 118:
		return types.CategoryFire
	case n == 151 || n == 152 || n == 153:
		return types.CategoryGas
	case n == 154:
		return types.CategoryWater
	case n == 137 || n == 144 || n == 145 || n == 383:
		return types.CategoryTamper
	case n >= 130 && n <= 143:
		return types.CategoryBurglary
	case n >= 100 && n <= 199:
		return types.CategoryBurglary
	case n >= 350 && n <= 356 || n == 381 || n == 382:
		return types.CategoryCommunication
	case n == 305 || n == 306 || n >= 620 && n <= 632:
		return types.CategorySystem
	case n >= 300 && n <= 399:
		return types.CategoryTrouble
	case n >= 400 && n <= 459 || n >= 570 && n <= 576:
		return types.CategoryArming
	case n >= 600 && n <= 699:
		return types.CategoryTest
	default:
		return types.CategoryUnknown
	}
}

// cidDescriptions covers the codes seen in the field; everything else gets a
// generic description.
var cidDescriptions = map[string]string{
	"110": "Fire alarm",
	"120": "Panic alarm",
	"121": "Duress",
	"122": "Silent panic",
	"130": "Burglary",
	"137": "Tamper",
	"151": "Gas detected",
	"154": "Water leakage",
	"301": "AC power loss",
	"302": "Low system battery",
	"305": "System reset",
	"311": "Battery missing",
	"333": "Expansion module failure",
	"350": "Communication failure",
	"354": "Failed to communicate event",
	"381": "Loss of supervision",
	"383": "Sensor tamper",
	"384": "Transmitter low battery",
	"401": "Open/close",
	"402": "Group open/close",
	"441": "Armed stay",
	"570": "Zone bypass",
	"601": "Manual test",
	"602": "Periodic test",
}

func descriptionForCode(code string) string {
	if d, ok := cidDescriptions[code]; ok {
		return d
	}
	return fmt.Sprintf("Event %s", code)
}
