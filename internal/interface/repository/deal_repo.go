package repository

import (
	"context"
	"errors"
	"time"

	"deal-catalog-service/internal/domain/entity"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDealRepository implements DealRepository
type MongoDealRepository struct {
	collection *mongo.Collection
	nowFn      func() time.Time
}

// NewMongoDealRepository creates a new deal repository
func NewMongoDealRepository(db *mongo.Database) *MongoDealRepository {
	return &MongoDealRepository{
		collection: db.Collection("deals"),
		nowFn:      time.Now,
	}
}

// EnsureIndexes creates the indexes used by the stale video sweep
func (r *MongoDealRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "videos.status", Value: 1},
				{Key: "videos.createdAt", Value: 1},
			},
		},
	})
	return err
}

// FindByID finds a deal by id
func (r *MongoDealRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*entity.Deal, error) {
	var deal entity.Deal
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&deal)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, entity.ErrDealNotFound
		}
		return nil, err
	}
	return &deal, nil
}

// UpdatePrices replaces the price list if the deal is still at version
func (r *MongoDealRepository) UpdatePrices(ctx context.Context, id primitive.ObjectID, version int64, prices []entity.PriceEntry) (int64, error) {
	if prices == nil {
		prices = []entity.PriceEntry{}
	}
	return r.updateGuarded(ctx, id, version, bson.M{"prices": prices})
}

// UpdateVideos replaces the video list if the deal is still at version
func (r *MongoDealRepository) UpdateVideos(ctx context.Context, id primitive.ObjectID, version int64, videos []entity.VideoRecord) (int64, error) {
	if videos == nil {
		videos = []entity.VideoRecord{}
	}
	return r.updateGuarded(ctx, id, version, bson.M{"videos": videos})
}

func (r *MongoDealRepository) updateGuarded(ctx context.Context, id primitive.ObjectID, version int64, set bson.M) (int64, error) {
	set["updatedAt"] = r.nowFn()

	result, err := r.collection.UpdateOne(
		ctx,
		versionFilter(id, version),
		bson.M{
			"$set": set,
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return 0, err
	}

	if result.MatchedCount == 0 {
		count, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return 0, err
		}
		if count == 0 {
			return 0, entity.ErrDealNotFound
		}
		return 0, entity.ErrVersionConflict
	}

	return version + 1, nil
}

// versionFilter matches the deal at the given version. Documents written
// before versioning have no version field and count as version 0.
func versionFilter(id primitive.ObjectID, version int64) bson.M {
	if version == 0 {
		return bson.M{
			"_id": id,
			"$or": bson.A{
				bson.M{"version": 0},
				bson.M{"version": bson.M{"$exists": false}},
			},
		}
	}
	return bson.M{"_id": id, "version": version}
}

// FailStaleVideos marks processing videos created before olderThan as
// failed and returns the number of deals touched.
func (r *MongoDealRepository) FailStaleVideos(ctx context.Context, olderThan time.Time, reason string) (int64, error) {
	stale := bson.M{
		"status":    entity.VideoProcessing,
		"createdAt": bson.M{"$lt": olderThan},
	}
	now := r.nowFn()

	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{
				"v.status":    entity.VideoProcessing,
				"v.createdAt": bson.M{"$lt": olderThan},
			},
		},
	})

	result, err := r.collection.UpdateMany(
		ctx,
		bson.M{"videos": bson.M{"$elemMatch": stale}},
		bson.M{
			"$set": bson.M{
				"videos.$[v].status":    entity.VideoFailed,
				"videos.$[v].error":     reason,
				"videos.$[v].updatedAt": now,
				"updatedAt":             now,
			},
			"$inc": bson.M{"version": 1},
		},
		opts,
	)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}
