package entity

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AirportRefKind tags the shape an airport reference arrived in.
type AirportRefKind int

const (
	AirportRefNone AirportRefKind = iota
	AirportRefSingleID
	AirportRefIDList
	AirportRefRawCode
)

// AirportRef is an airport reference as it enters the system: a single
// identifier, a list of identifiers, or a raw code/name. It must be resolved
// to a non-empty identifier list before reaching a Deal.
type AirportRef struct {
	Kind AirportRefKind
	IDs  []primitive.ObjectID
	Code string
}

// Tokens returns every value to feed to the resolver, in order.
func (r AirportRef) Tokens() []string {
	switch r.Kind {
	case AirportRefSingleID, AirportRefIDList:
		out := make([]string, 0, len(r.IDs))
		for _, id := range r.IDs {
			out = append(out, id.Hex())
		}
		return out
	case AirportRefRawCode:
		return []string{r.Code}
	}
	return nil
}

// ParseAirportToken classifies a single string token.
func ParseAirportToken(token string) AirportRef {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return AirportRef{}
	}
	if id, err := primitive.ObjectIDFromHex(trimmed); err == nil {
		return AirportRef{Kind: AirportRefSingleID, IDs: []primitive.ObjectID{id}}
	}
	return AirportRef{Kind: AirportRefRawCode, Code: token}
}

// UnmarshalJSON accepts "id", "LHR" or ["id", ...].
func (r *AirportRef) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "null" {
		*r = AirportRef{}
		return nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var tokens []string
		if err := json.Unmarshal(b, &tokens); err != nil {
			return &ValidationError{Field: "airport", Reason: "must be a string or a list of identifiers"}
		}
		ids := make([]primitive.ObjectID, 0, len(tokens))
		for _, tok := range tokens {
			id, err := primitive.ObjectIDFromHex(strings.TrimSpace(tok))
			if err != nil {
				return &ValidationError{Field: "airport", Reason: fmt.Sprintf("%q is not an identifier", tok)}
			}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			*r = AirportRef{}
			return nil
		}
		*r = AirportRef{Kind: AirportRefIDList, IDs: ids}
		return nil
	}

	var token string
	if err := json.Unmarshal(b, &token); err != nil {
		return &ValidationError{Field: "airport", Reason: "must be a string or a list of identifiers"}
	}
	*r = ParseAirportToken(token)
	return nil
}

// AirportRefFromBSON classifies a stored airport value.
func AirportRefFromBSON(v bson.RawValue) (AirportRef, error) {
	switch v.Type {
	case 0, bsontype.Null, bsontype.Undefined:
		return AirportRef{}, nil
	case bsontype.ObjectID:
		return AirportRef{Kind: AirportRefSingleID, IDs: []primitive.ObjectID{v.ObjectID()}}, nil
	case bsontype.String:
		return ParseAirportToken(v.StringValue()), nil
	case bsontype.Array:
		values, err := v.Array().Values()
		if err != nil {
			return AirportRef{}, err
		}
		ids := make([]primitive.ObjectID, 0, len(values))
		for _, item := range values {
			switch item.Type {
			case bsontype.ObjectID:
				ids = append(ids, item.ObjectID())
			case bsontype.String:
				id, err := primitive.ObjectIDFromHex(strings.TrimSpace(item.StringValue()))
				if err != nil {
					// A code inside a list: treat the whole value as a raw code.
					return AirportRef{Kind: AirportRefRawCode, Code: item.StringValue()}, nil
				}
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return AirportRef{}, nil
		}
		return AirportRef{Kind: AirportRefIDList, IDs: ids}, nil
	}
	return AirportRef{}, fmt.Errorf("unsupported airport value type %s", v.Type)
}
