package entity

import (
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultCountry is used for ingested prices when the deal names no market.
const DefaultCountry = "Canada"

// Deal is one sellable travel package. Prices and videos are embedded and
// only mutated through the deal.
type Deal struct {
	ID        primitive.ObjectID   `json:"_id" bson:"_id"`
	Title     string               `json:"title" bson:"title"`
	Country   string               `json:"country,omitempty" bson:"country,omitempty"`
	Hotels    []primitive.ObjectID `json:"hotels" bson:"hotels"`
	Prices    []PriceEntry         `json:"prices" bson:"prices"`
	Videos    []VideoRecord        `json:"videos" bson:"videos"`
	Version   int64                `json:"version" bson:"version"`
	CreatedAt time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt" bson:"updatedAt"`
}

// PriceCountry returns the market new prices default to.
func (d *Deal) PriceCountry() string {
	if d.Country != "" {
		return d.Country
	}
	return DefaultCountry
}

// PrimaryHotel returns the first associated hotel, if any.
func (d *Deal) PrimaryHotel() *primitive.ObjectID {
	if len(d.Hotels) == 0 {
		return nil
	}
	h := d.Hotels[0]
	return &h
}

// PriceDayKeys returns the set of start days currently in the catalog.
func (d *Deal) PriceDayKeys() map[string]struct{} {
	keys := make(map[string]struct{}, len(d.Prices))
	for _, p := range d.Prices {
		keys[p.Key()] = struct{}{}
	}
	return keys
}

func (d *Deal) priceIndex(id primitive.ObjectID) int {
	for i := range d.Prices {
		if d.Prices[i].ID == id {
			return i
		}
	}
	return -1
}

func (d *Deal) conflictFor(entry PriceEntry, except primitive.ObjectID) *DuplicateDateError {
	key := entry.Key()
	for _, p := range d.Prices {
		if p.ID == except {
			continue
		}
		if p.Key() == key {
			return &DuplicateDateError{ExistingID: p.ID, StartDate: p.StartDate, Price: p.Price}
		}
	}
	return nil
}

// AddPrice appends entry unless its start day is already taken.
func (d *Deal) AddPrice(entry PriceEntry) (PriceEntry, error) {
	if conflict := d.conflictFor(entry, primitive.NilObjectID); conflict != nil {
		return PriceEntry{}, conflict
	}
	if entry.ID.IsZero() {
		entry.ID = primitive.NewObjectID()
	}
	d.Prices = append(d.Prices, entry)
	return entry, nil
}

// ReplacePrice overwrites every field of the entry with the given id.
// The entry keeps its identifier.
func (d *Deal) ReplacePrice(id primitive.ObjectID, entry PriceEntry) (PriceEntry, error) {
	idx := d.priceIndex(id)
	if idx < 0 {
		return PriceEntry{}, ErrPriceNotFound
	}
	if conflict := d.conflictFor(entry, id); conflict != nil {
		return PriceEntry{}, conflict
	}
	entry.ID = id
	d.Prices[idx] = entry
	return entry, nil
}

// RemovePrice deletes the entry with the given id. Removing an unknown id is
// a no-op and reports false.
func (d *Deal) RemovePrice(id primitive.ObjectID) bool {
	idx := d.priceIndex(id)
	if idx < 0 {
		return false
	}
	d.Prices = append(d.Prices[:idx], d.Prices[idx+1:]...)
	return true
}

// SortedPrices returns a copy of the prices ordered by start date.
func (d *Deal) SortedPrices() []PriceEntry {
	out := make([]PriceEntry, len(d.Prices))
	copy(out, d.Prices)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out
}

// FindVideo locates a video record by its internal id.
func (d *Deal) FindVideo(id primitive.ObjectID) *VideoRecord {
	for i := range d.Videos {
		if d.Videos[i].ID == id {
			return &d.Videos[i]
		}
	}
	return nil
}
