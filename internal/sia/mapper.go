package sia

import (
	"strconv"
	"time"

	"github.com/alarmbridge/sia2mqtt/internal/types"
)

// Classify maps a decoded event onto one of the normalized alarm types.
//
// This is an ordered decision table, not a flat lookup: several codes are
// ambiguous without context and the later rules only apply when no earlier
// rule matched. Reordering the cases changes the classification of
// overlapping codes.
func Classify(e *Event) types.AlarmType {
	if e == nil {
		return types.AlarmTypeUnknown
	}
	n, _ := strconv.Atoi(e.Code)
	restore := e.IsRestore()

	switch {
	case n == 121 || e.Category == types.CategoryDuress:
		return pick(restore, types.AlarmTypeDuressRestore, types.AlarmTypeDuress)

	case n == 120 || n == 122 || e.Category == types.CategoryPanic:
		return pick(restore, types.AlarmTypePanicRestore, types.AlarmTypePanic)

	case n >= 570 && n <= 576:
		return pick(restore, types.AlarmTypeBypassRestore, types.AlarmTypeBypass)

	// Group open/close always splits by qualifier, regardless of the rest of
	// the arming rules.
	case n == 402:
		return pick(restore, types.AlarmTypeGroupArm, types.AlarmTypeGroupDisarm)

	case n == 441:
		if !restore {
			return types.AlarmTypeDisarm
		}
		// CF (forced closing) and CI (fail to close) both indicate the
		// partition armed with open faults.
		if e.SIACode == "CF" || e.SIACode == "CI" {
			return types.AlarmTypeNightArmWithFaults
		}
		return types.AlarmTypeNightArm

	case e.Category == types.CategoryArming || (n >= 400 && n <= 459):
		return pick(restore, types.AlarmTypeArm, types.AlarmTypeDisarm)

	case e.Category == types.CategoryCommunication:
		if n == 381 {
			return pick(restore, types.AlarmTypeDeviceRestore, types.AlarmTypeDeviceLost)
		}
		return pick(restore, types.AlarmTypeCommRestore, types.AlarmTypeCommTrouble)

	case e.Category == types.CategoryTamper:
		return pick(restore, types.AlarmTypeTamperRestore, types.AlarmTypeTamper)

	case e.Category == types.CategoryBurglary || e.Category == types.CategoryFire ||
		e.Category == types.CategoryWater || e.Category == types.CategoryGas:
		return pick(restore, types.AlarmTypeAlarmRestore, types.AlarmTypeAlarm)

	case n == 301 || n == 342:
		return pick(restore, types.AlarmTypePowerRestore, types.AlarmTypePowerTrouble)

	case n == 302 || n == 311 || n == 384:
		return pick(restore, types.AlarmTypeBatteryRestore, types.AlarmTypeBatteryTrouble)

	case e.Category == types.CategorySystem:
		return types.AlarmTypeSystem

	case n >= 300 && n <= 399:
		return pick(restore, types.AlarmTypeTroubleRestore, types.AlarmTypeTrouble)

	case n >= 100 && n <= 199:
		return pick(restore, types.AlarmTypeAlarmRestore, types.AlarmTypeAlarm)

	case n >= 600 && n <= 699:
		return types.AlarmTypeTest

	default:
		return types.AlarmTypeUnknown
	}
}

func pick(restore bool, r, e types.AlarmType) types.AlarmType {
	if restore {
		return r
	}
	return e
}

// NormalizeEvent builds the listener-facing alarm event for a decoded frame.
// The frame must carry an event payload.
func NormalizeEvent(f *Frame) types.AlarmEvent {
	e := f.Event
	ts := f.Timestamp
	if !f.HasTimestamp {
		ts = time.Now()
	}
	return types.AlarmEvent{
		Account:     f.Account,
		Type:        Classify(e),
		Category:    e.Category,
		Code:        e.Code,
		Description: e.Description,
		Partition:   e.Partition,
		Zone:        e.Zone,
		Restore:     e.IsRestore(),
		Timestamp:   ts,
		Raw:         f.Raw,
	}
}
