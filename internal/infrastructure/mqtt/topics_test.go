package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := Topics{Prefix: "house"}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"DeviceState", topics.DeviceState("light.hall"), "house/device/light.hall/state"},
		{"DeviceCommand", topics.DeviceCommand("light.hall"), "house/device/light.hall/set"},
		{"AllDeviceStates", topics.AllDeviceStates(), "house/device/+/state"},
		{"Status", topics.Status(), "house/illuminate-door/status"},
		{"AutomationEvent", topics.AutomationEvent("front"), "house/illuminate-door/front/event"},
		{"DefaultPrefix", Topics{}.DeviceState("x"), "home/device/x/state"},
		{"TrailingSlash", Topics{Prefix: "a/b/"}.Status(), "a/b/illuminate-door/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestParseDeviceState(t *testing.T) {
	topics := Topics{Prefix: "house"}

	tests := []struct {
		topic  string
		want   string
		wantOK bool
	}{
		{"house/device/light.hall/state", "light.hall", true},
		{"house/device/binary_sensor.front_door/state", "binary_sensor.front_door", true},
		{"house/device/light.hall/set", "", false},
		{"other/device/light.hall/state", "", false},
		{"house/device//state", "", false},
		{"house/device/a/b/state", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			got, ok := topics.ParseDeviceState(tt.topic)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseDeviceState(%q) = (%q, %v), want (%q, %v)", tt.topic, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
