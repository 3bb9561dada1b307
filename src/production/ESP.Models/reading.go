package espmodels

import (
	"fmt"
	"time"
)

// Reading is one synthetic temperature sample
type Reading struct {
	Temp        int    `json:"temp"`
	TimeCreated string `json:"timecreated"`
}

// NewReading builds a reading stamped with ts rendered through layout
func NewReading(temp int, ts time.Time, layout string) Reading {
	return Reading{Temp: temp, TimeCreated: ts.Format(layout)}
}

// String renders the wire payload. Consumers match it byte for byte,
// including the space after the comma, so it is not produced by a JSON encoder.
func (r Reading) String() string {
	return fmt.Sprintf(`{"temp":%d, "timecreated":"%s"}`, r.Temp, r.TimeCreated)
}

// Payload returns the wire payload as bytes
func (r Reading) Payload() []byte {
	return []byte(r.String())
}
