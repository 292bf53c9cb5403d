// Package core holds the domain types shared by the pipeline: the inbound
// report message, the closed report-type enumeration and the error kinds the
// consumer classifies on.
package core

import (
	"encoding/json"
	"fmt"
)

// ReportType is the closed set of report categories. The set is seeded into
// the store at startup; an unknown name on the wire is an input error.
type ReportType int

const (
	TypeDelay ReportType = iota
	TypeMaintenance
	TypeAccident
	TypeSolved
	TypeOther
)

var typeNames = [...]string{"Delay", "Maintenance", "Accident", "Solved", "Other"}
var wireNames = [...]string{"DELAY", "MAINTENANCE", "ACCIDENT", "SOLVED", "OTHER"}

// String returns the store name of the type (e.g. "Delay").
func (t ReportType) String() string {
	if int(t) < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("ReportType(%d)", int(t))
	}
	return typeNames[t]
}

// Wire returns the uppercase enumerator name used on the JSON wire.
func (t ReportType) Wire() string {
	if int(t) < 0 || int(t) >= len(wireNames) {
		return fmt.Sprintf("REPORTTYPE(%d)", int(t))
	}
	return wireNames[t]
}

// AllReportTypes lists every member of the enumeration in seed order.
func AllReportTypes() []ReportType {
	return []ReportType{TypeDelay, TypeMaintenance, TypeAccident, TypeSolved, TypeOther}
}

// ParseReportType resolves an uppercase wire name to its ReportType.
func ParseReportType(name string) (ReportType, error) {
	for i, n := range wireNames {
		if n == name {
			return ReportType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown report_type %q", ErrInvalidInput, name)
}

// MarshalJSON serializes the type as its uppercase enumerator name.
func (t ReportType) MarshalJSON() ([]byte, error) {
	if int(t) < 0 || int(t) >= len(wireNames) {
		return nil, fmt.Errorf("report type out of range: %d", int(t))
	}
	return json.Marshal(t.Wire())
}

// UnmarshalJSON parses the uppercase enumerator name.
func (t *ReportType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("%w: report_type: %v", ErrInvalidInput, err)
	}
	parsed, err := ParseReportType(name)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Coordinates is a WGS84 latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks the pair is within range.
func (c Coordinates) Validate() error {
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude out of range: %f", ErrInvalidInput, c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude out of range: %f", ErrInvalidInput, c.Longitude)
	}
	return nil
}

// ReportMessage is the payload carried on the report_queue. Coordinate pairs
// serialize as {latitude, longitude} objects and report_type as its uppercase
// enumerator name. delay_minutes may be absent for non-delay types.
type ReportMessage struct {
	UserName     string      `json:"user_name"`
	UserLocation Coordinates `json:"user_location"`
	LocationName string      `json:"location_name"`
	LocationPos  Coordinates `json:"location_pos"`
	ReportType   ReportType  `json:"report_type"`
	DelayMinutes *int        `json:"delay_minutes,omitempty"`
}

// ParseReportMessage decodes and validates a queue payload.
func ParseReportMessage(payload []byte) (*ReportMessage, error) {
	var msg ReportMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		// report_type parse failures already carry ErrInvalidInput
		if IsInvalidInput(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Validate checks the message for structural problems the Decider and
// Aggregator must never see.
func (m *ReportMessage) Validate() error {
	if m.UserName == "" {
		return fmt.Errorf("%w: empty user_name", ErrInvalidInput)
	}
	if m.LocationName == "" {
		return fmt.Errorf("%w: empty location_name", ErrInvalidInput)
	}
	if err := m.UserLocation.Validate(); err != nil {
		return err
	}
	if err := m.LocationPos.Validate(); err != nil {
		return err
	}
	if m.DelayMinutes != nil && *m.DelayMinutes < 0 {
		return fmt.Errorf("%w: negative delay_minutes: %d", ErrInvalidInput, *m.DelayMinutes)
	}
	return nil
}
