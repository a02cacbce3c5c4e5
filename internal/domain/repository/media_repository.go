package repository

import (
	"context"
	"time"

	"deal-catalog-service/internal/domain/entity"
)

// JobQueue is the durable queue between the API and the transcode worker.
type JobQueue interface {
	Enqueue(ctx context.Context, job entity.TranscodeJob) error
	// Dequeue blocks up to timeout. It returns (nil, nil) when nothing arrived.
	Dequeue(ctx context.Context, timeout time.Duration) (*entity.TranscodeJob, error)
	// Ack removes a finished job from the in-flight list.
	Ack(ctx context.Context, job entity.TranscodeJob) error
	// Recover moves in-flight jobs left by a dead worker back to pending.
	Recover(ctx context.Context) (int, error)
}

// MediaStorage is the permanent home of transcoded assets.
type MediaStorage interface {
	// Store copies the local file to permanent storage and returns its public URL.
	Store(ctx context.Context, localPath, objectName string) (string, error)
}

// Transcoder converts a source video into the delivery format.
type Transcoder interface {
	Transcode(ctx context.Context, srcPath, dstPath string) error
	// Extension is the file extension of produced files, including the dot.
	Extension() string
}

// HealthCheck pings one backing service
type HealthCheck func(ctx context.Context) error
