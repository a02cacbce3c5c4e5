package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"deal-catalog-service/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestAttachVideos(t *testing.T) {
	deal := newDeal()
	repo := newFakeDealRepo(deal)
	q := &fakeQueue{}
	dir := t.TempDir()
	u := NewVideoUploader(repo, q, dir, testMetrics(), testLogger())

	records, err := u.AttachVideos(context.Background(), deal.ID, []VideoUpload{
		{FileName: "Beach.MOV", ContentType: "video/quicktime", Content: strings.NewReader("one")},
		{FileName: "pool.mp4", ContentType: "video/mp4", Content: strings.NewReader("two")},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	stored := repo.get(deal.ID)
	require.Len(t, stored.Videos, 2)
	for i, v := range stored.Videos {
		assert.Equal(t, entity.VideoProcessing, v.Status)
		assert.Equal(t, records[i].ID, v.ID)
		assert.Equal(t, dir, filepath.Dir(v.URL))
		assert.FileExists(t, v.URL)
	}
	assert.Equal(t, ".mov", filepath.Ext(stored.Videos[0].URL))

	require.Len(t, q.pending, 2)
	assert.Equal(t, entity.TranscodeJob{
		DealID:       deal.ID.Hex(),
		VideoID:      records[0].ID.Hex(),
		TempFilePath: records[0].URL,
	}, q.pending[0])
}

func TestAttachVideos_EnqueueFailureMarksFailed(t *testing.T) {
	deal := newDeal()
	repo := newFakeDealRepo(deal)
	q := &fakeQueue{enqueueErr: errors.New("redis down")}
	u := NewVideoUploader(repo, q, t.TempDir(), testMetrics(), testLogger())

	records, err := u.AttachVideos(context.Background(), deal.ID, []VideoUpload{
		{FileName: "a.mp4", ContentType: "video/mp4", Content: strings.NewReader("a")},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, entity.VideoFailed, records[0].Status)

	stored := repo.get(deal.ID)
	require.Len(t, stored.Videos, 1)
	assert.Equal(t, entity.VideoFailed, stored.Videos[0].Status)
	assert.Contains(t, stored.Videos[0].Error, "redis down")
	assert.NoFileExists(t, stored.Videos[0].URL)
}

func TestAttachVideos_RejectsNonVideo(t *testing.T) {
	deal := newDeal()
	repo := newFakeDealRepo(deal)
	dir := t.TempDir()
	u := NewVideoUploader(repo, &fakeQueue{}, dir, testMetrics(), testLogger())

	_, err := u.AttachVideos(context.Background(), deal.ID, []VideoUpload{
		{FileName: "a.mp4", ContentType: "video/mp4", Content: strings.NewReader("a")},
		{FileName: "notes.txt", ContentType: "text/plain", Content: strings.NewReader("b")},
	})
	assert.ErrorIs(t, err, entity.ErrValidation)
	assert.Empty(t, repo.get(deal.ID).Videos)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestIsVideoUpload(t *testing.T) {
	cases := []struct {
		up   VideoUpload
		want bool
	}{
		{VideoUpload{FileName: "a.bin", ContentType: "video/mp4"}, true},
		{VideoUpload{FileName: "a.MKV", ContentType: "application/octet-stream"}, true},
		{VideoUpload{FileName: "a.mov"}, true},
		{VideoUpload{FileName: "a.txt", ContentType: "application/octet-stream"}, false},
		{VideoUpload{FileName: "a.mp4", ContentType: "image/png"}, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, isVideoUpload(tc.up), tc.up.FileName)
	}
}

func TestAttachVideos_UnknownDeal(t *testing.T) {
	u := NewVideoUploader(newFakeDealRepo(), &fakeQueue{}, t.TempDir(), testMetrics(), testLogger())

	_, err := u.AttachVideos(context.Background(), primitive.NewObjectID(), []VideoUpload{
		{FileName: "a.mp4", ContentType: "video/mp4", Content: strings.NewReader("a")},
	})
	assert.ErrorIs(t, err, entity.ErrDealNotFound)
}

func TestAttachVideos_SaveFailureRemovesFiles(t *testing.T) {
	deal := newDeal()
	repo := newFakeDealRepo(deal)
	repo.updateErr = errors.New("disk full")
	dir := t.TempDir()
	u := NewVideoUploader(repo, &fakeQueue{}, dir, testMetrics(), testLogger())

	_, err := u.AttachVideos(context.Background(), deal.ID, []VideoUpload{
		{FileName: "a.mp4", ContentType: "video/mp4", Content: strings.NewReader("a")},
	})
	assert.ErrorIs(t, err, entity.ErrPersistence)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
