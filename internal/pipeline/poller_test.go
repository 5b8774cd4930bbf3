package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"vodforge/internal/dispatch"
	"vodforge/internal/observability/metrics"
	"vodforge/internal/queue"
)

type fakeQueue struct {
	batches [][]queue.Message
	cancel  context.CancelFunc

	receiveErr error
	deleted    []string
	deleteErr  error
}

func (q *fakeQueue) Receive(ctx context.Context, _ int) ([]queue.Message, error) {
	if q.receiveErr != nil {
		err := q.receiveErr
		q.receiveErr = nil
		return nil, err
	}
	if len(q.batches) == 0 {
		q.cancel()
		return nil, ctx.Err()
	}
	batch := q.batches[0]
	q.batches = q.batches[1:]
	return batch, nil
}

func (q *fakeQueue) Delete(_ context.Context, receipt string) error {
	if q.deleteErr != nil {
		return q.deleteErr
	}
	q.deleted = append(q.deleted, receipt)
	return nil
}

type fakeStore struct {
	presignErr error
	presigned  []string
}

func (s *fakeStore) PresignDownload(_ context.Context, _, key string, _ time.Duration) (string, error) {
	if s.presignErr != nil {
		return "", s.presignErr
	}
	s.presigned = append(s.presigned, key)
	return "https://signed.example.com/" + key, nil
}

func (s *fakeStore) PresignUpload(context.Context, string, string, time.Duration) (string, error) {
	return "", errors.New("not implemented")
}

func (s *fakeStore) Download(context.Context, string, string, io.Writer) error {
	return errors.New("not implemented")
}

func (s *fakeStore) Upload(context.Context, string, string, string, io.Reader) error {
	return errors.New("not implemented")
}

func (s *fakeStore) Delete(context.Context, string, string) error {
	return errors.New("not implemented")
}

type fakeDispatcher struct {
	jobs []dispatch.Job
	err  error
}

func (d *fakeDispatcher) Start(_ context.Context, job dispatch.Job) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

func eventBody(key string) string {
	return fmt.Sprintf(`{"Records":[{"s3":{"object":{"key":%q}}}]}`, key)
}

func newTestPoller(t *testing.T, q *fakeQueue, store *fakeStore, dispatcher *fakeDispatcher, recorder *metrics.Recorder) (*Poller, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	q.cancel = cancel

	poller, err := NewPoller(PollerConfig{
		Queue:           q,
		Store:           store,
		Dispatcher:      dispatcher,
		Metrics:         recorder,
		UploadBucket:    "uploads",
		OutputBucket:    "hls-output",
		PlaybackBaseURL: "https://cdn.example.com",
		IdleSleep:       time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new poller: %v", err)
	}
	return poller, ctx
}

func TestPollerDispatchesAndDeletes(t *testing.T) {
	q := &fakeQueue{batches: [][]queue.Message{{
		{Body: eventBody("uploads/video-abc123.mp4"), ReceiptHandle: "r1"},
	}}}
	store := &fakeStore{}
	dispatcher := &fakeDispatcher{}
	recorder := metrics.New()

	poller, ctx := newTestPoller(t, q, store, dispatcher, recorder)
	if err := poller.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	if len(dispatcher.jobs) != 1 {
		t.Fatalf("expected 1 dispatched job, got %d", len(dispatcher.jobs))
	}
	job := dispatcher.jobs[0]
	if job.JobID != "video-abc123" {
		t.Fatalf("unexpected job id %q", job.JobID)
	}
	if job.SourceURL != "https://signed.example.com/uploads/video-abc123.mp4" {
		t.Fatalf("unexpected source url %q", job.SourceURL)
	}
	if job.OutputBucket != "hls-output" {
		t.Fatalf("unexpected output bucket %q", job.OutputBucket)
	}
	if len(q.deleted) != 1 || q.deleted[0] != "r1" {
		t.Fatalf("expected receipt r1 deleted, got %v", q.deleted)
	}

	counts := recorder.PipelineCounts()
	if counts["received"] != 1 || counts["dispatched"] != 1 || counts["deleted"] != 1 {
		t.Fatalf("unexpected pipeline counts %v", counts)
	}
	if jobs := recorder.JobCounts(); jobs["started"] != 1 {
		t.Fatalf("expected started job count 1, got %v", jobs)
	}
	if active := recorder.ActiveJobs(); active != 1 {
		t.Fatalf("dispatched job should stay active until reported, gauge %d", active)
	}
}

func TestPollerSkipsMalformedWithoutDeleting(t *testing.T) {
	q := &fakeQueue{batches: [][]queue.Message{{
		{Body: "not-json", ReceiptHandle: "r1"},
		{Body: eventBody("uploads/video-ok.mp4"), ReceiptHandle: "r2"},
	}}}
	store := &fakeStore{}
	dispatcher := &fakeDispatcher{}
	recorder := metrics.New()

	poller, ctx := newTestPoller(t, q, store, dispatcher, recorder)
	_ = poller.Run(ctx)

	if len(q.deleted) != 1 || q.deleted[0] != "r2" {
		t.Fatalf("malformed message must stay on the queue, deleted: %v", q.deleted)
	}
	if len(dispatcher.jobs) != 1 || dispatcher.jobs[0].JobID != "video-ok" {
		t.Fatalf("expected the valid message to still dispatch, got %v", dispatcher.jobs)
	}
	if counts := recorder.PipelineCounts(); counts["malformed"] != 1 {
		t.Fatalf("expected malformed count 1, got %v", counts)
	}
}

func TestPollerDeletesAfterFailedDispatch(t *testing.T) {
	q := &fakeQueue{batches: [][]queue.Message{{
		{Body: eventBody("uploads/video-abc123.mp4"), ReceiptHandle: "r1"},
	}}}
	store := &fakeStore{}
	dispatcher := &fakeDispatcher{err: &dispatch.Error{Kind: dispatch.KindNetwork, Op: "run task", Err: errors.New("control plane unreachable")}}
	recorder := metrics.New()

	poller, ctx := newTestPoller(t, q, store, dispatcher, recorder)
	_ = poller.Run(ctx)

	if len(q.deleted) != 1 {
		t.Fatalf("message must be deleted even when dispatch fails, deleted: %v", q.deleted)
	}
	if counts := recorder.PipelineCounts(); counts["dispatch_failed"] != 1 {
		t.Fatalf("expected dispatch_failed count 1, got %v", counts)
	}
	jobs := recorder.JobCounts()
	if jobs["started"] != 1 || jobs["failed"] != 1 {
		t.Fatalf("expected started and failed job counts of 1, got %v", jobs)
	}
	if active := recorder.ActiveJobs(); active != 0 {
		t.Fatalf("failed dispatch must not leave the gauge raised, got %d", active)
	}
}

func TestPollerRepollsAfterEmptyReceive(t *testing.T) {
	q := &fakeQueue{batches: [][]queue.Message{
		{},
		{{Body: eventBody("uploads/video-abc123.mp4"), ReceiptHandle: "r1"}},
	}}
	store := &fakeStore{}
	dispatcher := &fakeDispatcher{}
	recorder := metrics.New()

	poller, ctx := newTestPoller(t, q, store, dispatcher, recorder)
	_ = poller.Run(ctx)

	if len(dispatcher.jobs) != 1 {
		t.Fatalf("loop must poll again after an empty long poll, dispatched: %v", dispatcher.jobs)
	}
	counts := recorder.PipelineCounts()
	if counts["receive_error"] != 0 {
		t.Fatalf("empty receive is not an error, counts %v", counts)
	}
	if counts["received"] != 1 {
		t.Fatalf("expected exactly the non-empty delivery counted, counts %v", counts)
	}
}

func TestPollerLeavesMessageWhenPresignFails(t *testing.T) {
	q := &fakeQueue{batches: [][]queue.Message{{
		{Body: eventBody("uploads/video-abc123.mp4"), ReceiptHandle: "r1"},
	}}}
	store := &fakeStore{presignErr: errors.New("signing unavailable")}
	dispatcher := &fakeDispatcher{}
	recorder := metrics.New()

	poller, ctx := newTestPoller(t, q, store, dispatcher, recorder)
	_ = poller.Run(ctx)

	if len(q.deleted) != 0 {
		t.Fatalf("presign failure must leave the message for redelivery, deleted: %v", q.deleted)
	}
	if len(dispatcher.jobs) != 0 {
		t.Fatalf("no dispatch expected, got %v", dispatcher.jobs)
	}
}

func TestPollerSurvivesReceiveErrors(t *testing.T) {
	q := &fakeQueue{
		receiveErr: errors.New("queue unreachable"),
		batches: [][]queue.Message{{
			{Body: eventBody("uploads/video-abc123.mp4"), ReceiptHandle: "r1"},
		}},
	}
	store := &fakeStore{}
	dispatcher := &fakeDispatcher{}
	recorder := metrics.New()

	poller, ctx := newTestPoller(t, q, store, dispatcher, recorder)
	_ = poller.Run(ctx)

	if len(dispatcher.jobs) != 1 {
		t.Fatalf("loop must continue after a receive error, dispatched: %v", dispatcher.jobs)
	}
	if counts := recorder.PipelineCounts(); counts["receive_error"] != 1 {
		t.Fatalf("expected receive_error count 1, got %v", counts)
	}
}

func TestPollerSurvivesDeleteErrors(t *testing.T) {
	q := &fakeQueue{
		deleteErr: errors.New("receipt expired"),
		batches: [][]queue.Message{{
			{Body: eventBody("uploads/video-a.mp4"), ReceiptHandle: "r1"},
			{Body: eventBody("uploads/video-b.mp4"), ReceiptHandle: "r2"},
		}},
	}
	store := &fakeStore{}
	dispatcher := &fakeDispatcher{}

	poller, ctx := newTestPoller(t, q, store, dispatcher, nil)
	_ = poller.Run(ctx)

	if len(dispatcher.jobs) != 2 {
		t.Fatalf("delete failures must not stop the loop, dispatched %d jobs", len(dispatcher.jobs))
	}
}
