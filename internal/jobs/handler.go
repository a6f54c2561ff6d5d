package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"vrewexport/internal/model"
	"vrewexport/internal/service"
)

// Job asks for one storyboard to be exported to s3://Bucket/Key. A Key ending
// in "/" is a prefix; the download name is appended.
type Job struct {
	JobID       string            `json:"jobId"`
	Scenes      []model.Scene     `json:"scenes"`
	AspectRatio model.AspectRatio `json:"aspectRatio"`
	BatchSize   int               `json:"batchSize"`
	Bucket      string            `json:"bucket"`
	Key         string            `json:"key"`
}

type Exporter interface {
	Export(ctx context.Context, req service.Request) (*service.Result, error)
}

type Uploader interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
}

// ExportHandler runs jobs. Malformed jobs and exports that fail for
// deterministic reasons are marked; interrupted exports and failed uploads are
// left for redelivery.
type ExportHandler struct {
	exporter Exporter
	uploader Uploader
	log      logrus.FieldLogger
}

func NewExportHandler(exporter Exporter, uploader Uploader, log logrus.FieldLogger) *ExportHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ExportHandler{exporter: exporter, uploader: uploader, log: log}
}

func (h *ExportHandler) HandleMessage(ctx context.Context, message []byte) (bool, error) {
	var job Job
	if err := json.Unmarshal(message, &job); err != nil {
		h.log.WithError(err).Warn("dropping malformed export job")
		return true, nil
	}
	log := h.log.WithField("job", job.JobID)
	if job.Bucket == "" || job.Key == "" || len(job.Scenes) == 0 {
		log.Warn("dropping export job without scenes or destination")
		return true, nil
	}

	res, err := h.exporter.Export(ctx, service.Request{
		Title:       job.JobID,
		Scenes:      job.Scenes,
		AspectRatio: job.AspectRatio,
		BatchSize:   job.BatchSize,
	})
	if err != nil {
		retry := service.StageOf(err) == service.StageResolve || ctx.Err() != nil
		return !retry, fmt.Errorf("export job %s: %w", job.JobID, err)
	}

	key := job.Key
	if strings.HasSuffix(key, "/") {
		key += res.FileName
	}
	if err := h.uploader.Put(ctx, job.Bucket, key, res.Data, res.ContentType); err != nil {
		return false, fmt.Errorf("upload s3://%s/%s: %w", job.Bucket, key, err)
	}

	log.WithFields(logrus.Fields{
		"dest":    "s3://" + job.Bucket + "/" + key,
		"size":    humanize.Bytes(uint64(len(res.Data))),
		"windows": res.Windows,
		"failed":  res.FailedWindows,
	}).Info("export job uploaded")
	return true, nil
}
