package entity

// Airline is a carrier from the airline reference table. Code is the two
// character IATA designator used in flight numbers.
type Airline struct {
	Code   string
	ICAO   string
	Name   string
	Active bool
}
