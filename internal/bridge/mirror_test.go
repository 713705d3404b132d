package bridge

import (
	"sync"
	"testing"
	"time"
)

func TestMirrorRecordSense(t *testing.T) {
	m := NewMirror(testDevice1, testMAC1)
	at := time.Unix(1000, 0).UTC()

	m.RecordSense(SwitchOn, at)

	ev, ok := m.DrainSense()
	if !ok {
		t.Fatal("DrainSense() returned false, want pending event")
	}
	if ev.DeviceID != testDevice1 {
		t.Errorf("DeviceID = %q, want %q", ev.DeviceID, testDevice1)
	}
	if ev.Status != SwitchOn {
		t.Errorf("Status = %v, want on", ev.Status)
	}
	if !ev.Timestamp.Equal(at) {
		t.Errorf("Timestamp = %s, want %s", ev.Timestamp, at)
	}
	if m.Observed() != SwitchOn {
		t.Errorf("Observed() = %v, want on", m.Observed())
	}
}

func TestMirrorDrainSenseEmptiesCell(t *testing.T) {
	m := NewMirror(testDevice1, testMAC1)
	m.RecordSense(SwitchOn, time.Now())

	if _, ok := m.DrainSense(); !ok {
		t.Fatal("first DrainSense() returned false, want event")
	}
	if _, ok := m.DrainSense(); ok {
		t.Error("second DrainSense() returned true, want empty")
	}
}

func TestMirrorSenseDeduplicates(t *testing.T) {
	m := NewMirror(testDevice1, testMAC1)
	first := time.Unix(1000, 0).UTC()
	second := time.Unix(1001, 0).UTC()

	m.RecordSense(SwitchOn, first)
	m.RecordSense(SwitchOn, second)

	ev, ok := m.DrainSense()
	if !ok {
		t.Fatal("DrainSense() returned false, want event")
	}
	if !ev.Timestamp.Equal(first) {
		t.Errorf("Timestamp = %s, want first observation %s", ev.Timestamp, first)
	}
	if _, ok := m.DrainSense(); ok {
		t.Error("duplicate sense produced a second pending event")
	}
}

func TestMirrorSenseTransitionReplacesPending(t *testing.T) {
	m := NewMirror(testDevice1, testMAC1)

	m.RecordSense(SwitchOn, time.Unix(1000, 0))
	m.RecordSense(SwitchOff, time.Unix(1001, 0))

	ev, ok := m.DrainSense()
	if !ok {
		t.Fatal("DrainSense() returned false, want event")
	}
	if ev.Status != SwitchOff {
		t.Errorf("Status = %v, want latest transition off", ev.Status)
	}
	if m.Observed() != SwitchOff {
		t.Errorf("Observed() = %v, want off", m.Observed())
	}
}

func TestMirrorDrainActEmptiesCell(t *testing.T) {
	m := NewMirror(testDevice1, testMAC1)
	m.RecordAct(SwitchOn)

	status, ok := m.DrainAct()
	if !ok {
		t.Fatal("DrainAct() returned false, want pending actuation")
	}
	if status != SwitchOn {
		t.Errorf("status = %v, want on", status)
	}
	if _, ok := m.DrainAct(); ok {
		t.Error("second DrainAct() returned true, want empty")
	}
}

func TestMirrorDuplicateActDrainsOnce(t *testing.T) {
	m := NewMirror(testDevice1, testMAC1)

	m.RecordAct(SwitchOn)
	m.RecordAct(SwitchOn)

	status, ok := m.DrainAct()
	if !ok {
		t.Fatal("DrainAct() returned false, want pending actuation")
	}
	if status != SwitchOn {
		t.Errorf("status = %v, want on", status)
	}
	if _, ok := m.DrainAct(); ok {
		t.Error("duplicate act left a second pending actuation")
	}
}

func TestMirrorActLastWriteWins(t *testing.T) {
	m := NewMirror(testDevice1, testMAC1)

	m.RecordAct(SwitchOn)
	m.RecordAct(SwitchOff)

	status, ok := m.DrainAct()
	if !ok {
		t.Fatal("DrainAct() returned false, want pending actuation")
	}
	if status != SwitchOff {
		t.Errorf("status = %v, want latest request off", status)
	}
}

func TestMirrorConcurrentRecordAct(t *testing.T) {
	m := NewMirror(testDevice1, testMAC1)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			m.RecordAct(SwitchStatus(n % 2))
		}(i)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			m.DrainAct()
		}
	}()

	wg.Wait()
	<-done
}
