// Package service runs the export pipeline: resolve a window's assets, build
// and pack its project, and bundle several windows into one download.
package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"vrewexport/internal/assets"
	"vrewexport/internal/metrics"
	"vrewexport/internal/model"
	"vrewexport/internal/vrew"
)

const ContentTypeZip = "application/zip"

// Stage names the pipeline step an export failed in.
type Stage string

const (
	StageDecode  Stage = "decode"
	StageResolve Stage = "resolve"
	StageBuild   Stage = "build"
	StagePackage Stage = "package"
)

var ErrNoScenes = errors.New("storyboard has no scenes")

type ExportError struct {
	Stage Stage
	Err   error
}

func (e *ExportError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *ExportError) Unwrap() error { return e.Err }

// StageOf reports the failing stage of err, or "" when err carries none.
func StageOf(err error) Stage {
	var ee *ExportError
	if errors.As(err, &ee) {
		return ee.Stage
	}
	return ""
}

// Request is one export call.
type Request struct {
	Title       string            `json:"title,omitempty"`
	Scenes      []model.Scene     `json:"scenes"`
	AspectRatio model.AspectRatio `json:"aspectRatio,omitempty"`
	BatchSize   int               `json:"batchSize,omitempty"`
}

// Result is a finished download.
type Result struct {
	FileName      string
	ContentType   string
	Data          []byte
	Scenes        int
	Windows       int
	FailedWindows int
}

// SceneResolver resolves every scene's assets, indexed like scenes.
type SceneResolver interface {
	ResolveScenes(ctx context.Context, scenes []model.Scene) []assets.SceneAssets
}

// DefaultWindowConcurrency bounds how many windows of one export build at once.
const DefaultWindowConcurrency = 4

type Exporter struct {
	// WindowConcurrency caps concurrently built windows; each window runs its
	// own bounded pool of asset fetches.
	WindowConcurrency int

	resolver SceneResolver
	log      logrus.FieldLogger
	now      func() time.Time

	// buildWindow produces one window's archive; replaced in tests.
	buildWindow func(ctx context.Context, scenes []model.Scene, aspect model.AspectRatio) ([]byte, error)
}

func NewExporter(resolver SceneResolver, log logrus.FieldLogger) *Exporter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	e := &Exporter{WindowConcurrency: DefaultWindowConcurrency, resolver: resolver, log: log, now: time.Now}
	e.buildWindow = e.ExportWindow
	return e
}

// ExportWindow produces a standalone .vrew archive for scenes, which must be
// in display order. Missing assets degrade the project; they are not errors.
func (e *Exporter) ExportWindow(ctx context.Context, scenes []model.Scene, aspect model.AspectRatio) ([]byte, error) {
	resolved := e.resolver.ResolveScenes(ctx, scenes)
	if err := ctx.Err(); err != nil {
		return nil, &ExportError{Stage: StageResolve, Err: err}
	}

	now := e.now()
	doc, media, err := vrew.Build(scenes, resolved, aspect, vrew.Options{Now: func() time.Time { return now }})
	if err != nil {
		return nil, &ExportError{Stage: StageBuild, Err: err}
	}
	data, err := vrew.PackBytes(doc, media, now)
	if err != nil {
		return nil, &ExportError{Stage: StagePackage, Err: err}
	}
	return data, nil
}

type windowOutcome struct {
	data []byte
	err  error
}

// Export sorts the storyboard, splits it into windows of req.BatchSize scenes
// and exports them concurrently. One window is returned as its .vrew archive;
// several are bundled with a usage note, and a failed window is replaced by an
// error file. The call fails when its only window failed or when ctx ended
// with every window failed.
func (e *Exporter) Export(ctx context.Context, req Request) (*Result, error) {
	started := e.now()
	res, err := e.export(ctx, req, started)

	outcome := "ok"
	switch {
	case err != nil, res.FailedWindows == res.Windows:
		outcome = "error"
	case res.FailedWindows > 0:
		outcome = "partial"
	}
	metrics.ExportFinished(outcome, time.Since(started))
	return res, err
}

func (e *Exporter) export(ctx context.Context, req Request, started time.Time) (*Result, error) {
	if len(req.Scenes) == 0 {
		return nil, &ExportError{Stage: StageDecode, Err: ErrNoScenes}
	}
	aspect := req.AspectRatio.Normalize()
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = DefaultTitle(started)
	}

	windows := Partition(model.SortScenes(req.Scenes), req.BatchSize)
	log := e.log.WithFields(logrus.Fields{
		"scenes":  len(req.Scenes),
		"windows": len(windows),
		"aspect":  string(aspect),
	})
	log.Info("export started")

	outcomes := make([]windowOutcome, len(windows))
	limit := e.WindowConcurrency
	if limit <= 0 {
		limit = DefaultWindowConcurrency
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i, w := range windows {
		g.Go(func() error {
			data, err := e.buildWindow(ctx, w.Scenes, aspect)
			outcomes[i] = windowOutcome{data: data, err: err}
			if err != nil {
				metrics.Window("error")
				log.WithField("window", w.Name()).WithError(err).Error("window export failed")
				return nil
			}
			metrics.Window("ok")
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{
		FileName:    DownloadName(title, len(windows)),
		ContentType: ContentTypeZip,
		Scenes:      len(req.Scenes),
		Windows:     len(windows),
	}
	var firstErr error
	for _, o := range outcomes {
		if o.err != nil {
			res.FailedWindows++
			if firstErr == nil {
				firstErr = o.err
			}
		}
	}
	// A lone window has no bundle to carry its error file. Several failed
	// windows are still bundled so every failure message reaches the user,
	// unless the caller gave up.
	if res.FailedWindows == len(windows) && (len(windows) == 1 || ctx.Err() != nil) {
		return nil, firstErr
	}

	if len(windows) == 1 {
		res.Data = outcomes[0].data
	} else {
		data, err := bundle(windows, outcomes, started)
		if err != nil {
			return nil, &ExportError{Stage: StagePackage, Err: err}
		}
		res.Data = data
	}

	log.WithFields(logrus.Fields{
		"file":    res.FileName,
		"size":    humanize.Bytes(uint64(len(res.Data))),
		"failed":  res.FailedWindows,
		"elapsed": time.Since(started).Round(time.Millisecond).String(),
	}).Info("export finished")
	return res, nil
}

// bundle wraps per-window outcomes, in window order, plus the usage note.
func bundle(windows []Window, outcomes []windowOutcome, modified time.Time) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	put := func(name string, data []byte) error {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store, Modified: modified})
		if err != nil {
			return err
		}
		_, err = fw.Write(data)
		return err
	}

	for i, w := range windows {
		var err error
		if o := outcomes[i]; o.err != nil {
			err = put(w.ErrorFileName(), []byte("Generation failed: "+o.err.Error()+"\n"))
		} else {
			err = put(w.FileName(), o.data)
		}
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", w.Name(), err)
		}
	}
	if err := put(ReadmeName, []byte(readme)); err != nil {
		return nil, fmt.Errorf("add %s: %w", ReadmeName, err)
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
