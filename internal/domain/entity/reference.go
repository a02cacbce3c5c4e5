package entity

import "go.mongodb.org/mongo-driver/bson/primitive"

// Airport is a departure airport prices can reference
type Airport struct {
	ID      primitive.ObjectID `json:"_id" bson:"_id"`
	Code    string             `json:"code" bson:"code"`
	Name    string             `json:"name" bson:"name"`
	City    string             `json:"city,omitempty" bson:"city,omitempty"`
	Country string             `json:"country,omitempty" bson:"country,omitempty"`
}

// Hotel is the subset of the hotel document the price catalog needs
type Hotel struct {
	ID   primitive.ObjectID `json:"_id" bson:"_id"`
	Name string             `json:"name" bson:"name"`
}
