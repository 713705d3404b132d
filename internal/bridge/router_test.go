package bridge

import "testing"

func newTestRouter() (*Router, *Mirror, *Mirror) {
	m1 := NewMirror(testDevice1, testMAC1)
	m2 := NewMirror(testDevice2, testMAC2)
	return NewRouter([]*Mirror{m1, m2}, nil), m1, m2
}

func TestRouteRecordsActOnAddressedMirror(t *testing.T) {
	router, m1, m2 := newTestRouter()

	router.Route([]byte(`{"switch_status_value":"(1000) IoT_Device_1 1"}`))

	status, ok := m1.DrainAct()
	if !ok {
		t.Fatal("no actuation recorded on addressed mirror")
	}
	if status != SwitchOn {
		t.Errorf("status = %v, want on", status)
	}
	if _, ok := m2.DrainAct(); ok {
		t.Error("actuation leaked to unaddressed mirror")
	}
}

func TestRouteLenientStatus(t *testing.T) {
	router, m1, _ := newTestRouter()

	router.Route([]byte(`{"switch_status_value":"(1000) IoT_Device_1 0"}`))

	status, ok := m1.DrainAct()
	if !ok {
		t.Fatal("no actuation recorded")
	}
	if status != SwitchOff {
		t.Errorf("status = %v, want off", status)
	}
}

func TestRouteDropsUnroutable(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "malformed json", payload: `{"switch_status_value"`},
		{name: "missing feature field", payload: `{"other_key":"(1000) IoT_Device_1 1"}`},
		{name: "wrong field count", payload: `{"switch_status_value":"(1000) IoT_Device_1"}`},
		{name: "bad timestamp", payload: `{"switch_status_value":"1000 IoT_Device_1 1"}`},
		{name: "unmanaged device", payload: `{"switch_status_value":"(1000) IoT_Device_9 1"}`},
		{name: "empty payload", payload: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, m1, m2 := newTestRouter()

			router.Route([]byte(tt.payload))

			if _, ok := m1.DrainAct(); ok {
				t.Error("drop mutated first mirror")
			}
			if _, ok := m2.DrainAct(); ok {
				t.Error("drop mutated second mirror")
			}
			if m1.Observed() != SwitchOff || m2.Observed() != SwitchOff {
				t.Error("drop changed an observed position")
			}
		})
	}
}
