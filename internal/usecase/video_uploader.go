package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"deal-catalog-service/internal/domain/entity"
	"deal-catalog-service/internal/domain/repository"
	"deal-catalog-service/pkg/logger"
	"deal-catalog-service/pkg/metrics"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VideoUpload is one video file attached to a deal request.
type VideoUpload struct {
	FileName    string
	ContentType string
	Content     io.Reader
}

// updateVideos runs a read-modify-write on the deal's video list, retrying
// on version conflicts. fn sees a freshly loaded deal on every attempt.
func updateVideos(
	ctx context.Context,
	repo repository.DealRepository,
	m *metrics.Metrics,
	log logger.Logger,
	dealID primitive.ObjectID,
	fn func(*entity.Deal) error,
) (*entity.Deal, error) {
	for attempt := 1; ; attempt++ {
		deal, err := repo.FindByID(ctx, dealID)
		if err != nil {
			return nil, err
		}
		if err := fn(deal); err != nil {
			return nil, err
		}

		version, err := repo.UpdateVideos(ctx, deal.ID, deal.Version, deal.Videos)
		if err == nil {
			deal.Version = version
			return deal, nil
		}
		if errors.Is(err, entity.ErrVersionConflict) {
			m.VersionConflicts.WithLabelValues("videos").Inc()
			if attempt < maxWriteAttempts {
				log.Warn("Deal changed during video update, retrying", "dealID", dealID.Hex(), "attempt", attempt)
				continue
			}
			return nil, err
		}
		if errors.Is(err, entity.ErrDealNotFound) {
			return nil, err
		}
		return nil, &entity.PersistenceError{Op: "update videos", Err: err}
	}
}

// VideoUploader attaches uploaded videos to deals and queues them for
// transcoding.
type VideoUploader struct {
	dealRepo  repository.DealRepository
	queue     repository.JobQueue
	uploadDir string
	metrics   *metrics.Metrics
	logger    logger.Logger
	nowFn     func() time.Time
}

// NewVideoUploader creates a new video uploader
func NewVideoUploader(
	dealRepo repository.DealRepository,
	queue repository.JobQueue,
	uploadDir string,
	metrics *metrics.Metrics,
	logger logger.Logger,
) *VideoUploader {
	return &VideoUploader{
		dealRepo:  dealRepo,
		queue:     queue,
		uploadDir: uploadDir,
		metrics:   metrics,
		logger:    logger,
		nowFn:     time.Now,
	}
}

// AttachVideos stores the files at provisional paths, saves a processing
// record per file and enqueues one transcode job per record. The returned
// records reflect enqueue failures.
func (u *VideoUploader) AttachVideos(ctx context.Context, dealID primitive.ObjectID, uploads []VideoUpload) ([]entity.VideoRecord, error) {
	if len(uploads) == 0 {
		return nil, &entity.ValidationError{Field: "videos", Reason: "at least one file is required"}
	}
	for _, up := range uploads {
		if !isVideoUpload(up) {
			return nil, &entity.ValidationError{Field: "videos", Reason: fmt.Sprintf("%s is not a video (%s)", up.FileName, up.ContentType)}
		}
	}

	if _, err := u.dealRepo.FindByID(ctx, dealID); err != nil {
		return nil, err
	}

	now := u.nowFn()
	records := make([]entity.VideoRecord, 0, len(uploads))
	for _, up := range uploads {
		path, err := u.saveProvisional(up)
		if err != nil {
			removeRecordFiles(records)
			return nil, &entity.PersistenceError{Op: "save upload", Err: err}
		}
		records = append(records, entity.NewVideoRecord(path, up.FileName, now))
	}

	_, err := updateVideos(ctx, u.dealRepo, u.metrics, u.logger, dealID, func(deal *entity.Deal) error {
		deal.Videos = append(deal.Videos, records...)
		return nil
	})
	if err != nil {
		removeRecordFiles(records)
		return nil, err
	}

	var failed []primitive.ObjectID
	for i := range records {
		job := entity.TranscodeJob{
			DealID:       dealID.Hex(),
			VideoID:      records[i].ID.Hex(),
			TempFilePath: records[i].URL,
		}
		if err := u.queue.Enqueue(ctx, job); err != nil {
			u.logger.Error("Failed to enqueue transcode job", "dealID", job.DealID, "videoID", job.VideoID, "error", err)
			u.metrics.EnqueueFailures.Inc()
			failed = append(failed, records[i].ID)
			_ = records[i].MarkFailed("enqueue failed: "+err.Error(), u.nowFn())
			removeFile(u.logger, records[i].URL)
			continue
		}
		u.metrics.TranscodeJobs.WithLabelValues("queued").Inc()
	}

	if len(failed) > 0 {
		u.markFailed(ctx, dealID, records, failed)
	}

	u.logger.Info("Videos attached", "dealID", dealID.Hex(), "count", len(records), "enqueueFailures", len(failed))
	return records, nil
}

func (u *VideoUploader) markFailed(ctx context.Context, dealID primitive.ObjectID, records []entity.VideoRecord, ids []primitive.ObjectID) {
	reasons := make(map[primitive.ObjectID]string, len(ids))
	for _, r := range records {
		if r.Status == entity.VideoFailed {
			reasons[r.ID] = r.Error
		}
	}

	_, err := updateVideos(ctx, u.dealRepo, u.metrics, u.logger, dealID, func(deal *entity.Deal) error {
		for _, id := range ids {
			if v := deal.FindVideo(id); v != nil {
				if err := v.MarkFailed(reasons[id], u.nowFn()); err != nil {
					u.logger.Warn("Video no longer processing", "videoID", id.Hex(), "status", v.Status)
				}
			}
		}
		return nil
	})
	if err != nil {
		u.logger.Error("Failed to record enqueue failures", "dealID", dealID.Hex(), "error", err)
	}
}

func (u *VideoUploader) saveProvisional(up VideoUpload) (string, error) {
	if err := os.MkdirAll(u.uploadDir, 0o755); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(up.FileName))
	path := filepath.Join(u.uploadDir, uuid.NewString()+ext)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, up.Content); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".mov": {}, ".m4v": {}, ".webm": {}, ".mkv": {}, ".avi": {}, ".wmv": {}, ".mpeg": {}, ".mpg": {},
}

// isVideoUpload trusts a video/* content type. Generic types fall back to
// the file extension since some clients send octet-stream for video files.
func isVideoUpload(up VideoUpload) bool {
	ct := strings.ToLower(strings.TrimSpace(up.ContentType))
	if strings.HasPrefix(ct, "video/") {
		return true
	}
	if ct != "" && ct != "application/octet-stream" {
		return false
	}
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(up.FileName))]
	return ok
}

func removeRecordFiles(records []entity.VideoRecord) {
	for _, r := range records {
		os.Remove(r.URL)
	}
}

func removeFile(log logger.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("Failed to remove temporary file", "path", path, "error", err)
	}
}
