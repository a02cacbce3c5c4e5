package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VideoStatus is the transcoding state of a video record
type VideoStatus string

const (
	VideoProcessing VideoStatus = "processing"
	VideoReady      VideoStatus = "ready"
	VideoFailed     VideoStatus = "failed"
)

// VideoRecord tracks one uploaded video. URL starts as the provisional
// upload path and becomes the final asset location once ready.
type VideoRecord struct {
	ID           primitive.ObjectID `json:"_id" bson:"_id"`
	URL          string             `json:"url" bson:"url"`
	Status       VideoStatus        `json:"status" bson:"status"`
	OriginalName string             `json:"originalName,omitempty" bson:"originalName,omitempty"`
	Error        string             `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt    time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// NewVideoRecord returns a record in the processing state.
func NewVideoRecord(provisionalPath, originalName string, now time.Time) VideoRecord {
	return VideoRecord{
		ID:           primitive.NewObjectID(),
		URL:          provisionalPath,
		Status:       VideoProcessing,
		OriginalName: originalName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// MarkReady moves processing -> ready and points URL at the final asset.
func (v *VideoRecord) MarkReady(url string, now time.Time) error {
	if v.Status != VideoProcessing {
		return ErrInvalidVideoTransition
	}
	v.URL = url
	v.Status = VideoReady
	v.Error = ""
	v.UpdatedAt = now
	return nil
}

// MarkFailed moves processing -> failed. URL is left untouched.
func (v *VideoRecord) MarkFailed(reason string, now time.Time) error {
	if v.Status != VideoProcessing {
		return ErrInvalidVideoTransition
	}
	v.Status = VideoFailed
	v.Error = reason
	v.UpdatedAt = now
	return nil
}
