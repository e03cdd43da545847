package device

import "testing"

func TestMediaDeviceID_Stable(t *testing.T) {
	a := MediaDevice{Vendor: "usb-storage", Serial: "STICK", Class: ClassMassStorage, Name: "STICK"}
	b := MediaDevice{Vendor: "usb-storage", Serial: "STICK", Class: ClassMediaTransfer, Name: "renamed"}

	if a.ID() != b.ID() {
		t.Error("ID should depend only on vendor/serial identity")
	}
	if !a.SameIdentity(b) {
		t.Error("Same vendor/serial should be the same identity")
	}

	c := MediaDevice{Vendor: "usb-storage", Serial: "OTHER"}
	if a.ID() == c.ID() {
		t.Error("Different serials must map to different ids")
	}
	if a.SameIdentity(c) {
		t.Error("Different serials must not share identity")
	}
}

func TestClassString(t *testing.T) {
	tests := []struct {
		class Class
		want  string
	}{
		{ClassMassStorage, "mass-storage"},
		{ClassMediaTransfer, "media-transfer"},
		{ClassUnknown, "unknown"},
		{Class(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.class.String(); got != tt.want {
			t.Errorf("Class(%d).String() = %q, want %q", tt.class, got, tt.want)
		}
	}
}
