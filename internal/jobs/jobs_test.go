package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrewexport/internal/service"
)

type fakeExporter struct {
	got service.Request
	err error
}

func (f *fakeExporter) Export(_ context.Context, req service.Request) (*service.Result, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &service.Result{FileName: req.Title + ".vrew", ContentType: service.ContentTypeZip, Data: []byte("zip"), Windows: 1}, nil
}

type fakeUploader struct {
	mu   sync.Mutex
	puts map[string][]byte
	err  error
}

func (f *fakeUploader) Put(_ context.Context, bucket, key string, data []byte, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.puts == nil {
		f.puts = map[string][]byte{}
	}
	f.puts[bucket+"/"+key] = data
	return nil
}

const validJob = `{"jobId":"job-1","scenes":[{"order":1,"script":"hi"}],"aspectRatio":"9:16","batchSize":0,"bucket":"out","key":"exports/"}`

func TestHandleMessage(t *testing.T) {
	log, _ := test.NewNullLogger()
	ctx := context.Background()

	t.Run("uploads under prefix", func(t *testing.T) {
		exp, up := &fakeExporter{}, &fakeUploader{}
		mark, err := NewExportHandler(exp, up, log).HandleMessage(ctx, []byte(validJob))
		require.NoError(t, err)
		assert.True(t, mark)
		assert.Equal(t, "job-1", exp.got.Title)
		assert.Equal(t, []byte("zip"), up.puts["out/exports/job-1.vrew"])
	})

	t.Run("malformed is marked", func(t *testing.T) {
		for _, msg := range []string{`{`, `{"jobId":"x","scenes":[]}`, `{"jobId":"x","scenes":[{"script":"a"}],"bucket":"b"}`} {
			mark, err := NewExportHandler(&fakeExporter{}, &fakeUploader{}, log).HandleMessage(ctx, []byte(msg))
			assert.NoError(t, err, msg)
			assert.True(t, mark, msg)
		}
	})

	t.Run("deterministic export failure is marked", func(t *testing.T) {
		exp := &fakeExporter{err: &service.ExportError{Stage: service.StageBuild, Err: errors.New("bad")}}
		mark, err := NewExportHandler(exp, &fakeUploader{}, log).HandleMessage(ctx, []byte(validJob))
		assert.Error(t, err)
		assert.True(t, mark)
	})

	t.Run("interrupted export is retried", func(t *testing.T) {
		exp := &fakeExporter{err: &service.ExportError{Stage: service.StageResolve, Err: context.DeadlineExceeded}}
		mark, err := NewExportHandler(exp, &fakeUploader{}, log).HandleMessage(ctx, []byte(validJob))
		assert.Error(t, err)
		assert.False(t, mark)
	})

	t.Run("upload failure is retried", func(t *testing.T) {
		up := &fakeUploader{err: errors.New("503")}
		mark, err := NewExportHandler(&fakeExporter{}, up, log).HandleMessage(ctx, []byte(validJob))
		assert.ErrorContains(t, err, "upload s3://out/exports/job-1.vrew")
		assert.False(t, mark)
	})
}

type fakeSession struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32               { return nil }
func (s *fakeSession) MemberID() string                         { return "member" }
func (s *fakeSession) GenerationID() int32                      { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)  {}
func (s *fakeSession) Commit()                                  {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context                 { return s.ctx }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	msgs chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string                            { return "exports" }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return 3 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func TestConsumeClaimMarksPerHandler(t *testing.T) {
	log, _ := test.NewNullLogger()
	handler := NewExportHandler(&fakeExporter{}, &fakeUploader{}, log)
	h := &groupHandler{handler: handler, log: log, ready: make(chan bool)}
	require.NoError(t, h.Setup(nil))

	claim := &fakeClaim{msgs: make(chan *sarama.ConsumerMessage, 2)}
	claim.msgs <- &sarama.ConsumerMessage{Offset: 1, Value: []byte(`garbage`)}
	claim.msgs <- &sarama.ConsumerMessage{Offset: 2, Value: []byte(validJob)}
	close(claim.msgs)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	session := &fakeSession{ctx: ctx}
	require.NoError(t, h.ConsumeClaim(session, claim))

	// the malformed message is dropped, the uploaded job is done
	assert.Equal(t, []int64{1, 2}, session.marked)
}

// flakyUploader fails the first n uploads.
type flakyUploader struct {
	fails int
	keys  []string
}

func (f *flakyUploader) Put(_ context.Context, _, key string, _ []byte, _ string) error {
	if f.fails > 0 {
		f.fails--
		return errors.New("503 slow down")
	}
	f.keys = append(f.keys, key)
	return nil
}

func TestConsumeClaimStopsAtUnmarkedJob(t *testing.T) {
	log, _ := test.NewNullLogger()
	uploader := &flakyUploader{fails: 1}
	handler := NewExportHandler(&fakeExporter{}, uploader, log)
	h := &groupHandler{handler: handler, log: log, ready: make(chan bool)}

	claim := &fakeClaim{msgs: make(chan *sarama.ConsumerMessage, 2)}
	claim.msgs <- &sarama.ConsumerMessage{Offset: 1, Value: []byte(validJob)}
	claim.msgs <- &sarama.ConsumerMessage{Offset: 2, Value: []byte(validJob)}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	session := &fakeSession{ctx: ctx}

	err := h.ConsumeClaim(session, claim)
	assert.ErrorContains(t, err, "503 slow down")
	assert.Empty(t, session.marked, "nothing past the failed job may be marked")
	assert.Empty(t, uploader.keys)
	assert.Len(t, claim.msgs, 1, "the following job is left for the next session")

	// the next session starts again at offset 1
	redelivered := &fakeClaim{msgs: make(chan *sarama.ConsumerMessage, 2)}
	redelivered.msgs <- &sarama.ConsumerMessage{Offset: 1, Value: []byte(validJob)}
	redelivered.msgs <- <-claim.msgs
	close(redelivered.msgs)
	require.NoError(t, h.ConsumeClaim(session, redelivered))
	assert.Equal(t, []int64{1, 2}, session.marked)
	assert.Len(t, uploader.keys, 2)
}

func TestConsumeClaimWaitsBeforeRedelivery(t *testing.T) {
	log, _ := test.NewNullLogger()
	handler := NewExportHandler(&fakeExporter{}, &fakeUploader{err: errors.New("down")}, log)
	h := &groupHandler{handler: handler, log: log, ready: make(chan bool), retryDelay: time.Hour}

	claim := &fakeClaim{msgs: make(chan *sarama.ConsumerMessage, 1)}
	claim.msgs <- &sarama.ConsumerMessage{Offset: 7, Value: []byte(validJob)}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	session := &fakeSession{ctx: ctx}

	start := time.Now()
	assert.Error(t, h.ConsumeClaim(session, claim))
	assert.Less(t, time.Since(start), time.Second, "shutdown cuts the delay short")
	assert.Empty(t, session.marked)
}

func TestNewConsumerRequiresSettings(t *testing.T) {
	_, err := NewConsumer(ConsumerConfig{Topic: "t", GroupID: "g"})
	assert.Error(t, err)
}
