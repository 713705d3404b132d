package bridge

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Sense and act messages share one wire format: a JSON object with a single
// switch_status_value key whose value packs a timestamp, a device name, and
// a status into one space-separated string.
//
//	{"switch_status_value": "(1724580000) IoT_Device_1 1"}
//
// The timestamp is unix seconds wrapped in parentheses, so the value always
// splits into exactly three fields. Sense messages are published by the
// bridge on the sense topic; act messages arrive on the act topic and are
// routed to the addressed device.

// switchEnvelope is the JSON envelope carrying the packed value string.
type switchEnvelope struct {
	SwitchStatusValue string `json:"switch_status_value"`
}

// messageFieldCount is the number of space-separated fields in the packed
// value: timestamp, device name, status.
const messageFieldCount = 3

// SwitchMessage is one sense or act event on the wire.
type SwitchMessage struct {
	// Timestamp is when the event was observed or requested (second
	// precision on the wire).
	Timestamp time.Time

	// DeviceID is the name of the switch the message concerns.
	DeviceID string

	// Status is the reported or requested switch position.
	Status SwitchStatus
}

// NewSwitchMessage creates a message stamped with the current time.
func NewSwitchMessage(deviceID string, status SwitchStatus) SwitchMessage {
	return SwitchMessage{
		Timestamp: time.Now().UTC(),
		DeviceID:  deviceID,
		Status:    status,
	}
}

// ParseSwitchMessage parses a raw MQTT payload into a SwitchMessage.
//
// Parsing fails if the JSON envelope is malformed, the value does not split
// into exactly three fields, or the timestamp is not a parenthesised unix
// second count. The status field never fails: "0" is off and anything else
// is on.
//
// Returns:
//   - SwitchMessage: Parsed message
//   - error: ErrInvalidPayload (wrapped) if parsing fails
func ParseSwitchMessage(payload []byte) (SwitchMessage, error) {
	var env switchEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return SwitchMessage{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if env.SwitchStatusValue == "" {
		return SwitchMessage{}, fmt.Errorf("%w: missing switch_status_value", ErrInvalidPayload)
	}

	fields := strings.Fields(env.SwitchStatusValue)
	if len(fields) != messageFieldCount {
		return SwitchMessage{}, fmt.Errorf("%w: expected %d fields, got %d",
			ErrInvalidPayload, messageFieldCount, len(fields))
	}

	tsField := fields[0]
	if len(tsField) < 3 || tsField[0] != '(' || tsField[len(tsField)-1] != ')' {
		return SwitchMessage{}, fmt.Errorf("%w: timestamp field %q is not parenthesised", ErrInvalidPayload, tsField)
	}
	secs, err := strconv.ParseInt(tsField[1:len(tsField)-1], 10, 64)
	if err != nil {
		return SwitchMessage{}, fmt.Errorf("%w: bad timestamp: %v", ErrInvalidPayload, err)
	}

	return SwitchMessage{
		Timestamp: time.Unix(secs, 0).UTC(),
		DeviceID:  fields[1],
		Status:    ParseWireStatus(fields[2]),
	}, nil
}

// Encode renders the message to its wire payload.
//
// Returns:
//   - []byte: JSON payload ready to publish
//   - error: If JSON marshalling fails
func (m SwitchMessage) Encode() ([]byte, error) {
	env := switchEnvelope{
		SwitchStatusValue: fmt.Sprintf("(%d) %s %s",
			m.Timestamp.Unix(), m.DeviceID, m.Status.Wire()),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode switch message: %w", err)
	}
	return data, nil
}
