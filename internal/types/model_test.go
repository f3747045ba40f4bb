package types

import "testing"

func TestDeviceModelMerge(t *testing.T) {
	t.Run("merges key by key", func(t *testing.T) {
		m := DeviceModel{ModelKeyReedClosed: true, ModelKeyContact: false}
		m = m.Merge(map[string]interface{}{ModelKeyContact: true})
		if v, _ := m.Bool(ModelKeyContact); !v {
			t.Error("merged key not updated")
		}
		if v, _ := m.Bool(ModelKeyReedClosed); !v {
			t.Error("untouched key lost")
		}
	})

	t.Run("nil receiver allocates", func(t *testing.T) {
		var m DeviceModel
		m = m.Merge(map[string]interface{}{ModelKeyMotion: true})
		if v, _ := m.Bool(ModelKeyMotion); !v {
			t.Error("merge into nil model lost the key")
		}
	})

	t.Run("unknown keys carried through", func(t *testing.T) {
		m := DeviceModel{}.Merge(map[string]interface{}{"vendor_extra": 7})
		if m["vendor_extra"] != 7 {
			t.Error("unknown key dropped on merge")
		}
	})
}

func TestDeviceModelClone(t *testing.T) {
	m := DeviceModel{ModelKeySmoke: false}
	c := m.Clone()
	c[ModelKeySmoke] = true
	if v, _ := m.Bool(ModelKeySmoke); v {
		t.Error("clone shares storage with original")
	}
	if (DeviceModel)(nil).Clone() != nil {
		t.Error("clone of nil model is not nil")
	}
}

func TestDeviceModelEqualKnown(t *testing.T) {
	a := DeviceModel{ModelKeyReedClosed: true, "vendor_extra": 1}
	b := DeviceModel{ModelKeyReedClosed: true, "vendor_extra": 2}
	if !a.EqualKnown(b) {
		t.Error("unknown keys should not affect equality")
	}
	b[ModelKeyReedClosed] = false
	if a.EqualKnown(b) {
		t.Error("differing known key reported equal")
	}
	if !(DeviceModel)(nil).EqualKnown(nil) {
		t.Error("two nil models should compare equal")
	}
	c := DeviceModel{ModelKeyFlood: true}
	if a.EqualKnown(c) {
		t.Error("missing known key reported equal")
	}
}

func TestDeviceModelBool(t *testing.T) {
	m := DeviceModel{ModelKeyAlarm: true, "count": 3}
	if v, ok := m.Bool(ModelKeyAlarm); !ok || !v {
		t.Errorf("Bool(alarm) = %v %v", v, ok)
	}
	if _, ok := m.Bool("count"); ok {
		t.Error("non-bool value reported ok")
	}
	if _, ok := m.Bool("missing"); ok {
		t.Error("missing key reported ok")
	}
}

func TestProtectionDuration(t *testing.T) {
	if SourceQueue.ProtectionDuration() <= SourceSIA.ProtectionDuration() {
		t.Error("queue pushes should get a longer protection window")
	}
	if SourceSIA.ProtectionDuration() != SourceSSE.ProtectionDuration() {
		t.Error("direct push sources should share a window length")
	}
}
