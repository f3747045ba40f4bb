package types

import (
	"fmt"
	"time"
)

// Hub represents a security hub as reported by the upstream API.
type Hub struct {
	ID              string
	Name            string
	Model           string
	FirmwareVersion string
	SIAAccount      string
	Online          bool
	Armed           ArmState
	BatteryLow      bool
	SignalLevel     int
}

// Device represents a single device attached to a hub. RoomName is resolved
// from the hub's room list when the device is polled.
type Device struct {
	ID             string
	HubID          string
	Name           string
	Type           string
	RoomID         string
	RoomName       string
	Online         bool
	Tampered       bool
	BatteryPercent int
	Temperature    float64
	SignalLevel    int
	Model          DeviceModel
}

// Group is a named set of devices that can be armed independently.
type Group struct {
	ID        string
	HubID     string
	Name      string
	State     ArmState
	NightMode bool
}

// Room is a named location within a hub.
type Room struct {
	ID   string
	Name string
}

// HubState bundles everything known about one hub.
type HubState struct {
	Hub     Hub
	Devices map[string]Device
	Groups  map[string]Group
	Rooms   map[string]Room
}

// CacheData is the on-disk snapshot used to warm-start without waiting for
// the first poll cycle.
type CacheData struct {
	Hubs       map[string]HubState `json:"hubs"`
	LastUpdate time.Time           `json:"last_update"`
}

// AlarmEvent is the normalized shape handed to listeners for every decoded
// panel event.
type AlarmEvent struct {
	Account     string
	Type        AlarmType
	Category    EventCategory
	Code        string
	Description string
	Partition   int
	Zone        int
	Restore     bool
	Timestamp   time.Time
	Raw         string
}

type ArmState int

const (
	ArmStateDisarmed ArmState = iota
	ArmStateArmed
	ArmStatePartiallyArmed
)

func (a ArmState) String() string {
	switch a {
	case ArmStateDisarmed:
		return "Disarmed"
	case ArmStateArmed:
		return "Armed"
	case ArmStatePartiallyArmed:
		return "Partially Armed"
	default:
		return fmt.Sprintf("Unknown ArmState(%d)", a)
	}
}

type ArmCommand int

const (
	ArmCommandDisarm ArmCommand = iota
	ArmCommandArm
	ArmCommandNight
)

func (a ArmCommand) String() string {
	switch a {
	case ArmCommandDisarm:
		return "disarm"
	case ArmCommandArm:
		return "arm"
	case ArmCommandNight:
		return "night"
	default:
		return fmt.Sprintf("Unknown ArmCommand(%d)", a)
	}
}

type EventCategory int

const (
	CategoryUnknown EventCategory = iota
	CategoryBurglary
	CategoryFire
	CategoryWater
	CategoryGas
	CategoryTamper
	CategoryPanic
	CategoryDuress
	CategoryArming
	CategoryCommunication
	CategoryTrouble
	CategoryTest
	CategorySystem
)

func (c EventCategory) String() string {
	switch c {
	case CategoryBurglary:
		return "Burglary"
	case CategoryFire:
		return "Fire"
	case CategoryWater:
		return "Water"
	case CategoryGas:
		return "Gas"
	case CategoryTamper:
		return "Tamper"
	case CategoryPanic:
		return "Panic"
	case CategoryDuress:
		return "Duress"
	case CategoryArming:
		return "Arming"
	case CategoryCommunication:
		return "Communication"
	case CategoryTrouble:
		return "Trouble"
	case CategoryTest:
		return "Test"
	case CategorySystem:
		return "System"
	default:
		return "Unknown"
	}
}

type AlarmType int

const (
	AlarmTypeUnknown AlarmType = iota
	AlarmTypeArm
	AlarmTypeDisarm
	AlarmTypeNightArm
	AlarmTypeNightArmWithFaults
	AlarmTypeGroupArm
	AlarmTypeGroupDisarm
	AlarmTypeDuress
	AlarmTypeDuressRestore
	AlarmTypePanic
	AlarmTypePanicRestore
	AlarmTypeBypass
	AlarmTypeBypassRestore
	AlarmTypeAlarm
	AlarmTypeAlarmRestore
	AlarmTypeTamper
	AlarmTypeTamperRestore
	AlarmTypeDeviceLost
	AlarmTypeDeviceRestore
	AlarmTypeCommTrouble
	AlarmTypeCommRestore
	AlarmTypePowerTrouble
	AlarmTypePowerRestore
	AlarmTypeBatteryTrouble
	AlarmTypeBatteryRestore
	AlarmTypeTrouble
	AlarmTypeTroubleRestore
	AlarmTypeSystem
	AlarmTypeTest
	AlarmTypeHeartbeat
)

func (a AlarmType) String() string {
	switch a {
	case AlarmTypeArm:
		return "Arm"
	case AlarmTypeDisarm:
		return "Disarm"
	case AlarmTypeNightArm:
		return "Night Arm"
	case AlarmTypeNightArmWithFaults:
		return "Night Arm With Faults"
	case AlarmTypeGroupArm:
		return "Group Arm"
	case AlarmTypeGroupDisarm:
		return "Group Disarm"
	case AlarmTypeDuress:
		return "Duress"
	case AlarmTypeDuressRestore:
		return "Duress Restore"
	case AlarmTypePanic:
		return "Panic"
	case AlarmTypePanicRestore:
		return "Panic Restore"
	case AlarmTypeBypass:
		return "Bypass"
	case AlarmTypeBypassRestore:
		return "Bypass Restore"
	case AlarmTypeAlarm:
		return "Alarm"
	case AlarmTypeAlarmRestore:
		return "Alarm Restore"
	case AlarmTypeTamper:
		return "Tamper"
	case AlarmTypeTamperRestore:
		return "Tamper Restore"
	case AlarmTypeDeviceLost:
		return "Device Lost"
	case AlarmTypeDeviceRestore:
		return "Device Restore"
	case AlarmTypeCommTrouble:
		return "Communication Trouble"
	case AlarmTypeCommRestore:
		return "Communication Restore"
	case AlarmTypePowerTrouble:
		return "Power Trouble"
	case AlarmTypePowerRestore:
		return "Power Restore"
	case AlarmTypeBatteryTrouble:
		return "Battery Trouble"
	case AlarmTypeBatteryRestore:
		return "Battery Restore"
	case AlarmTypeTrouble:
		return "Trouble"
	case AlarmTypeTroubleRestore:
		return "Trouble Restore"
	case AlarmTypeSystem:
		return "System"
	case AlarmTypeTest:
		return "Test"
	case AlarmTypeHeartbeat:
		return "Heartbeat"
	default:
		return "Unknown"
	}
}

// PushSource identifies the transport a push update arrived on. The
// protection-window duration depends on the source's typical latency.
type PushSource int

const (
	SourceSIA PushSource = iota
	SourceSSE
	SourceQueue
)

func (s PushSource) String() string {
	switch s {
	case SourceSIA:
		return "sia"
	case SourceSSE:
		return "sse"
	case SourceQueue:
		return "queue"
	default:
		return fmt.Sprintf("Unknown PushSource(%d)", s)
	}
}

// ProtectionDuration returns how long an entity updated from this source is
// shielded from being overwritten by polled snapshots. Queue deliveries are
// batched upstream and may lag well behind the poll cycle, so they get a
// longer window.
func (s PushSource) ProtectionDuration() time.Duration {
	if s == SourceQueue {
		return 30 * time.Second
	}
	return 10 * time.Second
}

// HubUpdate carries a partial set of hub fields from a push source.
// Nil fields are left untouched.
type HubUpdate struct {
	Name        *string
	Online      *bool
	Armed       *ArmState
	BatteryLow  *bool
	SignalLevel *int
}

// DeviceUpdate carries a partial set of device fields from a push source.
type DeviceUpdate struct {
	Name           *string
	Online         *bool
	Tampered       *bool
	BatteryPercent *int
	Temperature    *float64
	SignalLevel    *int
	Model          map[string]interface{}
}

// GroupUpdate carries a partial set of group fields from a push source.
type GroupUpdate struct {
	Name      *string
	State     *ArmState
	NightMode *bool
}
