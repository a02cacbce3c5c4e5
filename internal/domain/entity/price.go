package entity

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DayLayout is the normalized start-date key format.
const DayLayout = "2006-01-02"

// FlightLeg is one direction of a price's flight metadata.
type FlightLeg struct {
	Airline       string `json:"airline,omitempty" bson:"airline,omitempty"`
	AirlineName   string `json:"airlineName,omitempty" bson:"airlineName,omitempty"`
	FlightNumber  string `json:"flightNumber,omitempty" bson:"flightNumber,omitempty"`
	DepartureTime string `json:"departureTime,omitempty" bson:"departureTime,omitempty"`
	ArrivalTime   string `json:"arrivalTime,omitempty" bson:"arrivalTime,omitempty"`
	Raw           string `json:"raw,omitempty" bson:"raw,omitempty"`
}

// IsZero reports whether no flight data was supplied.
func (l FlightLeg) IsZero() bool {
	return l == FlightLeg{}
}

// FlightDetails holds outbound and return flight metadata
type FlightDetails struct {
	Outbound     FlightLeg `json:"outbound" bson:"outbound"`
	ReturnFlight FlightLeg `json:"returnFlight" bson:"returnFlight"`
}

// Legs returns both legs for in-place updates.
func (f *FlightDetails) Legs() []*FlightLeg {
	return []*FlightLeg{&f.Outbound, &f.ReturnFlight}
}

// PriceEntry is one dated price quotation embedded in a Deal.
// StartDate is the uniqueness key within the owning deal.
type PriceEntry struct {
	ID            primitive.ObjectID   `json:"_id" bson:"_id"`
	Country       string               `json:"country" bson:"country"`
	Airport       []primitive.ObjectID `json:"airport" bson:"airport"`
	Hotel         *primitive.ObjectID  `json:"hotel" bson:"hotel,omitempty"`
	StartDate     time.Time            `json:"startdate" bson:"startdate"`
	EndDate       time.Time            `json:"enddate" bson:"enddate"`
	Price         float64              `json:"price" bson:"price"`
	PriceSwitch   bool                 `json:"priceswitch" bson:"priceswitch"`
	FlightDetails FlightDetails        `json:"flightDetails" bson:"flightDetails"`

	// LegacyAirport holds a raw airport code found in old documents until it
	// is resolved to an identifier.
	LegacyAirport string `json:"-" bson:"legacyAirport,omitempty"`
}

// DayKey normalizes t to its UTC calendar day.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// Key returns the entry's uniqueness key.
func (p PriceEntry) Key() string {
	return DayKey(p.StartDate)
}

// DeduplicatePrices keeps the first entry for every start day and drops the
// rest, preserving order. The input slice is not modified.
func DeduplicatePrices(entries []PriceEntry) []PriceEntry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]PriceEntry, 0, len(entries))
	for _, e := range entries {
		key := e.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}

// priceEntryDoc is the stored shape. Airport stays raw so old documents
// holding a single id or a bare code still decode.
type priceEntryDoc struct {
	ID            primitive.ObjectID  `bson:"_id"`
	Country       string              `bson:"country"`
	Airport       bson.RawValue       `bson:"airport"`
	Hotel         *primitive.ObjectID `bson:"hotel,omitempty"`
	StartDate     time.Time           `bson:"startdate"`
	EndDate       time.Time           `bson:"enddate"`
	Price         float64             `bson:"price"`
	PriceSwitch   bool                `bson:"priceswitch"`
	FlightDetails FlightDetails       `bson:"flightDetails"`
	LegacyAirport string              `bson:"legacyAirport,omitempty"`
}

// MarshalBSON always writes airport as an array of identifiers.
func (p PriceEntry) MarshalBSON() ([]byte, error) {
	ids := p.Airport
	if ids == nil {
		ids = []primitive.ObjectID{}
	}
	t, data, err := bson.MarshalValue(ids)
	if err != nil {
		return nil, err
	}
	return bson.Marshal(priceEntryDoc{
		ID:            p.ID,
		Country:       p.Country,
		Airport:       bson.RawValue{Type: t, Value: data},
		Hotel:         p.Hotel,
		StartDate:     p.StartDate,
		EndDate:       p.EndDate,
		Price:         p.Price,
		PriceSwitch:   p.PriceSwitch,
		FlightDetails: p.FlightDetails,
		LegacyAirport: p.LegacyAirport,
	})
}

// UnmarshalBSON accepts every historical airport shape.
func (p *PriceEntry) UnmarshalBSON(data []byte) error {
	var doc priceEntryDoc
	if err := bson.Unmarshal(data, &doc); err != nil {
		return err
	}

	ref, err := AirportRefFromBSON(doc.Airport)
	if err != nil {
		return fmt.Errorf("price %s: %w", doc.ID.Hex(), err)
	}

	*p = PriceEntry{
		ID:            doc.ID,
		Country:       doc.Country,
		Hotel:         doc.Hotel,
		StartDate:     doc.StartDate,
		EndDate:       doc.EndDate,
		Price:         doc.Price,
		PriceSwitch:   doc.PriceSwitch,
		FlightDetails: doc.FlightDetails,
		LegacyAirport: doc.LegacyAirport,
	}

	switch ref.Kind {
	case AirportRefSingleID, AirportRefIDList:
		p.Airport = ref.IDs
	case AirportRefRawCode:
		p.Airport = []primitive.ObjectID{}
		p.LegacyAirport = ref.Code
	default:
		p.Airport = []primitive.ObjectID{}
	}
	return nil
}
