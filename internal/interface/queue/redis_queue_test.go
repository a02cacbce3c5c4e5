package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"deal-catalog-service/internal/domain/entity"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testJob = entity.TranscodeJob{
	DealID:       "665f1c2e8f1b2a0012345678",
	VideoID:      "665f1c2e8f1b2a0012345679",
	TempFilePath: "/tmp/uploads/a.mov",
}

const testPayload = `{"dealId":"665f1c2e8f1b2a0012345678","videoId":"665f1c2e8f1b2a0012345679","tempFilePath":"/tmp/uploads/a.mov"}`

func TestEnqueue(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := NewRedisJobQueue(db, "transcode")

	mock.ExpectLPush("transcode:pending", testPayload).SetVal(1)

	require.NoError(t, q.Enqueue(context.Background(), testJob))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueue_Error(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := NewRedisJobQueue(db, "transcode")

	mock.ExpectLPush("transcode:pending", testPayload).SetErr(errors.New("connection refused"))

	err := q.Enqueue(context.Background(), testJob)
	assert.ErrorContains(t, err, "connection refused")
}

func TestDequeue(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := NewRedisJobQueue(db, "transcode")

	mock.ExpectBLMove("transcode:pending", "transcode:processing", "RIGHT", "LEFT", time.Second).SetVal(testPayload)

	job, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, testJob, *job)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDequeue_Timeout(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := NewRedisJobQueue(db, "transcode")

	mock.ExpectBLMove("transcode:pending", "transcode:processing", "RIGHT", "LEFT", time.Second).RedisNil()

	job, err := q.Dequeue(context.Background(), time.Second)
	assert.NoError(t, err)
	assert.Nil(t, job)
}

func TestDequeue_MalformedPayloadIsDiscarded(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := NewRedisJobQueue(db, "transcode")

	mock.ExpectBLMove("transcode:pending", "transcode:processing", "RIGHT", "LEFT", time.Second).SetVal("not-json")
	mock.ExpectLRem("transcode:processing", 1, "not-json").SetVal(1)

	job, err := q.Dequeue(context.Background(), time.Second)
	assert.Error(t, err)
	assert.Nil(t, job)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAck(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := NewRedisJobQueue(db, "transcode")

	mock.ExpectLRem("transcode:processing", 1, testPayload).SetVal(1)

	require.NoError(t, q.Ack(context.Background(), testJob))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecover(t *testing.T) {
	db, mock := redismock.NewClientMock()
	q := NewRedisJobQueue(db, "transcode")

	mock.ExpectLMove("transcode:processing", "transcode:pending", "LEFT", "RIGHT").SetVal(testPayload)
	mock.ExpectLMove("transcode:processing", "transcode:pending", "LEFT", "RIGHT").SetVal(testPayload)
	mock.ExpectLMove("transcode:processing", "transcode:pending", "LEFT", "RIGHT").RedisNil()

	n, err := q.Recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
