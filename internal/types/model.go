package types

// DeviceModel holds device-type-specific state. Known keys cover the device
// categories the upstream API reports today; anything else is carried through
// untouched so new device types keep working without a code change.
type DeviceModel map[string]interface{}

const (
	ModelKeyReedClosed = "reed_closed"
	ModelKeyContact    = "contact"
	ModelKeyAlarm      = "alarm"
	ModelKeySwitchOn   = "switch_on"
	ModelKeyMotion     = "motion"
	ModelKeyValveOpen  = "valve_open"
	ModelKeySmoke      = "smoke"
	ModelKeyFlood      = "flood"
)

// KnownModelKeys is the fixed set of model fields considered meaningful when
// diffing two polled snapshots of the same device.
var KnownModelKeys = []string{
	ModelKeyReedClosed,
	ModelKeyContact,
	ModelKeyAlarm,
	ModelKeySwitchOn,
	ModelKeyMotion,
	ModelKeyValveOpen,
	ModelKeySmoke,
	ModelKeyFlood,
}

// Bool returns the value of a known boolean key.
func (m DeviceModel) Bool(key string) (bool, bool) {
	v, ok := m[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Merge applies the given fields key-by-key onto the model, preserving the
// receiver's identity. Push updates merge into the existing model rather than
// replacing it wholesale.
func (m DeviceModel) Merge(fields map[string]interface{}) DeviceModel {
	if m == nil {
		m = DeviceModel{}
	}
	for k, v := range fields {
		m[k] = v
	}
	return m
}

// Clone returns a shallow copy of the model.
func (m DeviceModel) Clone() DeviceModel {
	if m == nil {
		return nil
	}
	out := make(DeviceModel, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// EqualKnown reports whether the two models agree on every known key.
func (m DeviceModel) EqualKnown(other DeviceModel) bool {
	for _, key := range KnownModelKeys {
		a, aok := m[key]
		b, bok := other[key]
		if aok != bok || a != b {
			return false
		}
	}
	return true
}
