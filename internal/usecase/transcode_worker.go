package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"deal-catalog-service/internal/domain/entity"
	"deal-catalog-service/internal/domain/repository"
	"deal-catalog-service/pkg/logger"
	"deal-catalog-service/pkg/metrics"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/time/rate"
)

// TranscodeWorker turns one queued job into a terminal video status.
type TranscodeWorker struct {
	dealRepo   repository.DealRepository
	transcoder repository.Transcoder
	storage    repository.MediaStorage
	workDir    string
	timeout    time.Duration
	metrics    *metrics.Metrics
	logger     logger.Logger
	nowFn      func() time.Time
}

// NewTranscodeWorker creates a new transcode worker
func NewTranscodeWorker(
	dealRepo repository.DealRepository,
	transcoder repository.Transcoder,
	storage repository.MediaStorage,
	workDir string,
	timeout time.Duration,
	metrics *metrics.Metrics,
	logger logger.Logger,
) *TranscodeWorker {
	return &TranscodeWorker{
		dealRepo:   dealRepo,
		transcoder: transcoder,
		storage:    storage,
		workDir:    workDir,
		timeout:    timeout,
		metrics:    metrics,
		logger:     logger,
		nowFn:      time.Now,
	}
}

// HandleJob transcodes the source file and records ready or failed on the
// deal. A returned error means the status could not be written; the source
// file is then kept for the redelivered job. Otherwise it is removed.
func (w *TranscodeWorker) HandleJob(ctx context.Context, job entity.TranscodeJob) error {
	log := w.logger.With("dealID", job.DealID, "videoID", job.VideoID)
	started := w.nowFn()
	keepSource := false
	defer func() {
		if !keepSource {
			removeFile(log, job.TempFilePath)
		}
	}()

	dealID, err := primitive.ObjectIDFromHex(job.DealID)
	if err != nil {
		log.Error("Dropping job with malformed deal id", "error", err)
		w.metrics.TranscodeJobs.WithLabelValues("dropped").Inc()
		return nil
	}
	videoID, err := primitive.ObjectIDFromHex(job.VideoID)
	if err != nil {
		log.Error("Dropping job with malformed video id", "error", err)
		w.metrics.TranscodeJobs.WithLabelValues("dropped").Inc()
		return nil
	}

	if err := w.checkPending(ctx, dealID, videoID); err != nil {
		if isStaleJob(err) {
			log.Warn("Skipping job for video that is gone or already terminal", "error", err)
			w.metrics.TranscodeJobs.WithLabelValues("dropped").Inc()
			return nil
		}
		log.Error("Failed to load deal for job", "error", err)
		w.metrics.ErrorsCount.WithLabelValues("transcode_status").Inc()
		keepSource = true
		return err
	}

	url, convErr := w.convert(ctx, job)
	w.metrics.TranscodeDuration.Observe(w.nowFn().Sub(started).Seconds())

	_, err = updateVideos(ctx, w.dealRepo, w.metrics, log, dealID, func(deal *entity.Deal) error {
		video := deal.FindVideo(videoID)
		if video == nil {
			return entity.ErrVideoNotFound
		}
		if convErr != nil {
			return video.MarkFailed(convErr.Error(), w.nowFn())
		}
		return video.MarkReady(url, w.nowFn())
	})

	switch {
	case err == nil && convErr == nil:
		log.Info("Video ready", "url", url, "duration", w.nowFn().Sub(started).String())
		w.metrics.TranscodeJobs.WithLabelValues(string(entity.VideoReady)).Inc()
		return nil
	case err == nil:
		log.Warn("Video transcode failed", "error", convErr)
		w.metrics.TranscodeJobs.WithLabelValues(string(entity.VideoFailed)).Inc()
		return nil
	case isStaleJob(err):
		log.Warn("Video record gone or already terminal", "error", err)
		w.metrics.TranscodeJobs.WithLabelValues("dropped").Inc()
		return nil
	default:
		log.Error("Failed to record video status", "error", err)
		w.metrics.ErrorsCount.WithLabelValues("transcode_status").Inc()
		keepSource = true
		return err
	}
}

// checkPending makes sure the record still waits for this job.
func (w *TranscodeWorker) checkPending(ctx context.Context, dealID, videoID primitive.ObjectID) error {
	deal, err := w.dealRepo.FindByID(ctx, dealID)
	if err != nil {
		return err
	}
	video := deal.FindVideo(videoID)
	if video == nil {
		return entity.ErrVideoNotFound
	}
	if video.Status != entity.VideoProcessing {
		return fmt.Errorf("video is %s: %w", video.Status, entity.ErrInvalidVideoTransition)
	}
	return nil
}

// isStaleJob reports errors meaning the record was removed or finished
// after the job was queued.
func isStaleJob(err error) bool {
	return errors.Is(err, entity.ErrDealNotFound) ||
		errors.Is(err, entity.ErrVideoNotFound) ||
		errors.Is(err, entity.ErrInvalidVideoTransition)
}

// convert produces the final asset and returns its public URL.
func (w *TranscodeWorker) convert(ctx context.Context, job entity.TranscodeJob) (string, error) {
	if _, err := os.Stat(job.TempFilePath); err != nil {
		return "", &entity.TranscodeError{Stage: "source", Err: err}
	}

	if err := os.MkdirAll(w.workDir, 0o755); err != nil {
		return "", &entity.TranscodeError{Stage: "workdir", Err: err}
	}
	base := strings.TrimSuffix(filepath.Base(job.TempFilePath), filepath.Ext(job.TempFilePath))
	objectName := base + w.transcoder.Extension()
	out := filepath.Join(w.workDir, base+".transcoded"+w.transcoder.Extension())
	defer removeFile(w.logger, out)

	tctx := ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	if err := w.transcoder.Transcode(tctx, job.TempFilePath, out); err != nil {
		return "", &entity.TranscodeError{Stage: "transcode", Err: err}
	}

	url, err := w.storage.Store(ctx, out, fmt.Sprintf("videos/%s/%s", job.DealID, objectName))
	if err != nil {
		return "", &entity.TranscodeError{Stage: "store", Err: err}
	}
	return url, nil
}

// TranscodeConsumer pulls jobs off the queue at a bounded rate.
type TranscodeConsumer struct {
	queue       repository.JobQueue
	worker      *TranscodeWorker
	limiter     *rate.Limiter
	pollTimeout time.Duration
	logger      logger.Logger
}

// NewTranscodeConsumer allows jobsPerInterval jobs per interval.
func NewTranscodeConsumer(
	queue repository.JobQueue,
	worker *TranscodeWorker,
	jobsPerInterval int,
	interval time.Duration,
	logger logger.Logger,
) *TranscodeConsumer {
	if jobsPerInterval <= 0 {
		jobsPerInterval = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &TranscodeConsumer{
		queue:       queue,
		worker:      worker,
		limiter:     rate.NewLimiter(rate.Every(interval/time.Duration(jobsPerInterval)), jobsPerInterval),
		pollTimeout: 5 * time.Second,
		logger:      logger,
	}
}

// Run consumes jobs until ctx is cancelled. In-flight jobs left by a previous
// run are requeued first.
func (c *TranscodeConsumer) Run(ctx context.Context) error {
	if n, err := c.queue.Recover(ctx); err != nil {
		c.logger.Error("Failed to recover in-flight jobs", "error", err)
	} else if n > 0 {
		c.logger.Info("Requeued in-flight jobs", "count", n)
	}

	c.logger.Info("Transcode consumer started", "limit", c.limiter.Limit(), "burst", c.limiter.Burst())
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return c.stopped(ctx, err)
		}

		job, err := c.queue.Dequeue(ctx, c.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return c.stopped(ctx, err)
			}
			c.logger.Error("Failed to dequeue job", "error", err)
			select {
			case <-ctx.Done():
				return c.stopped(ctx, ctx.Err())
			case <-time.After(c.pollTimeout):
			}
			continue
		}
		if job == nil {
			continue
		}

		c.process(ctx, *job)
	}
}

func (c *TranscodeConsumer) process(ctx context.Context, job entity.TranscodeJob) {
	if err := c.worker.HandleJob(ctx, job); err != nil {
		// Leave the job in flight so Recover retries it on next start.
		c.logger.Error("Job left unacknowledged", "dealID", job.DealID, "videoID", job.VideoID, "error", err)
		return
	}
	if err := c.queue.Ack(ctx, job); err != nil {
		c.logger.Error("Failed to ack job", "dealID", job.DealID, "videoID", job.VideoID, "error", err)
	}
}

func (c *TranscodeConsumer) stopped(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		c.logger.Info("Transcode consumer stopped")
		return nil
	}
	return err
}

const (
	defaultStaleVideoAge = 2 * time.Hour
	defaultSweepInterval = 10 * time.Minute
)

// StaleVideoSweeper fails videos stuck in processing, e.g. after their job
// was lost with a crashed worker.
type StaleVideoSweeper struct {
	dealRepo repository.DealRepository
	maxAge   time.Duration
	interval time.Duration
	logger   logger.Logger
	nowFn    func() time.Time
}

// NewStaleVideoSweeper creates a new sweeper
func NewStaleVideoSweeper(dealRepo repository.DealRepository, maxAge, interval time.Duration, logger logger.Logger) *StaleVideoSweeper {
	if maxAge <= 0 {
		maxAge = defaultStaleVideoAge
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &StaleVideoSweeper{
		dealRepo: dealRepo,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger,
		nowFn:    time.Now,
	}
}

// Sweep runs one pass and returns the number of videos marked failed.
func (s *StaleVideoSweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.nowFn().Add(-s.maxAge)
	reason := fmt.Sprintf("transcode did not finish within %s", s.maxAge)
	n, err := s.dealRepo.FailStaleVideos(ctx, cutoff, reason)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Warn("Marked stale videos as failed", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// Run sweeps on every tick until ctx is cancelled.
func (s *StaleVideoSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("Stale video sweep failed", "error", err)
			}
		}
	}
}
