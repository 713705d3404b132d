package bridge

// SwitchStatus represents the position of a bridged switch.
//
// The wire format and the BLE characteristic both encode the position as a
// single numeric digit, so the type is byte-backed and the constants carry
// the wire values directly.
type SwitchStatus byte

const (
	// SwitchOff is the open (off) position.
	SwitchOff SwitchStatus = 0

	// SwitchOn is the closed (on) position.
	SwitchOn SwitchStatus = 1
)

// String returns a human-readable representation for logging.
func (s SwitchStatus) String() string {
	if s == SwitchOff {
		return "off"
	}
	return "on"
}

// Wire returns the status rendered as a payload field ("0" or "1").
func (s SwitchStatus) Wire() string {
	if s == SwitchOff {
		return "0"
	}
	return "1"
}

// Byte returns the status as the single byte written to the switch
// characteristic.
func (s SwitchStatus) Byte() byte {
	if s == SwitchOff {
		return 0
	}
	return 1
}

// StatusFromByte converts a BLE notification byte to a SwitchStatus.
// Zero is off; any other value is on.
func StatusFromByte(b byte) SwitchStatus {
	if b == 0 {
		return SwitchOff
	}
	return SwitchOn
}

// ParseWireStatus converts a payload status field to a SwitchStatus.
//
// Decoding is deliberately lenient: "0" is off and everything else is on.
// The switches themselves apply the same rule, so a permissive parse keeps
// the bridge's view aligned with what the hardware would do.
func ParseWireStatus(field string) SwitchStatus {
	if field == "0" {
		return SwitchOff
	}
	return SwitchOn
}
