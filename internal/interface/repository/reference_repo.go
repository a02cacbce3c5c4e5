package repository

import (
	"context"

	"deal-catalog-service/internal/domain/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoAirportRepository implements AirportRepository
type MongoAirportRepository struct {
	collection *mongo.Collection
}

// NewMongoAirportRepository creates a new airport repository
func NewMongoAirportRepository(db *mongo.Database) *MongoAirportRepository {
	return &MongoAirportRepository{collection: db.Collection("airports")}
}

// ListAll returns every airport in insertion order
func (r *MongoAirportRepository) ListAll(ctx context.Context) ([]entity.Airport, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.M{"code": 1, "name": 1, "city": 1, "country": 1})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var airports []entity.Airport
	if err := cursor.All(ctx, &airports); err != nil {
		return nil, err
	}
	return airports, nil
}

// MongoHotelRepository implements HotelRepository
type MongoHotelRepository struct {
	collection *mongo.Collection
}

// NewMongoHotelRepository creates a new hotel repository
func NewMongoHotelRepository(db *mongo.Database) *MongoHotelRepository {
	return &MongoHotelRepository{collection: db.Collection("hotels")}
}

// ListAll returns id and name of every hotel
func (r *MongoHotelRepository) ListAll(ctx context.Context) ([]entity.Hotel, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.M{"name": 1})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var hotels []entity.Hotel
	if err := cursor.All(ctx, &hotels); err != nil {
		return nil, err
	}
	return hotels, nil
}
