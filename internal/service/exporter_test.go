package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrewexport/internal/assets"
	"vrewexport/internal/model"
	"vrewexport/internal/vrew"
)

var fixedNow = time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC)

// stubResolver gives every scene with an audio reference a narration payload.
type stubResolver struct {
	calls atomic.Int32
}

func (s *stubResolver) ResolveScenes(_ context.Context, scenes []model.Scene) []assets.SceneAssets {
	s.calls.Add(1)
	out := make([]assets.SceneAssets, len(scenes))
	for i, sc := range scenes {
		if sc.AudioURL != "" {
			out[i].Audio = &assets.Audio{Data: []byte("mp3:" + sc.Script), Measured: 2}
		}
		if sc.ImageURL != "" {
			out[i].Image = &assets.Image{Data: []byte("png:" + sc.Script), Width: 4, Height: 3}
		}
	}
	return out
}

func newTestExporter(r SceneResolver) *Exporter {
	log, _ := test.NewNullLogger()
	e := NewExporter(r, log)
	e.now = func() time.Time { return fixedNow }
	return e
}

func scenesN(n int) []model.Scene {
	out := make([]model.Scene, n)
	for i := range out {
		out[i] = model.Scene{Order: i + 1, Script: fmt.Sprintf("scene %d", i+1), AudioURL: "a.mp3"}
	}
	return out
}

func readZip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, rc.Close())
		require.NoError(t, err)
		out[f.Name] = body
	}
	return out
}

func zipNames(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func projectCaptions(t *testing.T, archive []byte) []string {
	t.Helper()
	var doc vrew.Document
	require.NoError(t, json.Unmarshal(readZip(t, archive)[vrew.ProjectFile], &doc))
	out := make([]string, 0, len(doc.Transcript.Scenes))
	for _, s := range doc.Transcript.Scenes {
		out = append(out, s.Clips[0].CaptionText())
	}
	return out
}

func TestPlanWindows(t *testing.T) {
	windows := PlanWindows(12, 5)
	require.Len(t, windows, 3)
	assert.Equal(t, "vrew_project_01_(1-5)", windows[0].Name())
	assert.Equal(t, "vrew_project_02_(6-10).vrew", windows[1].FileName())
	assert.Equal(t, "vrew_project_03_(11-12)_error.txt", windows[2].ErrorFileName())
	assert.Equal(t, 2, windows[2].Len())

	assert.Len(t, PlanWindows(12, 0), 1)
	assert.Len(t, PlanWindows(12, -3), 1)
	assert.Len(t, PlanWindows(3, 10), 1)
	assert.Empty(t, PlanWindows(0, 5))
}

func TestPartitionPreservesOrder(t *testing.T) {
	scenes := scenesN(7)
	windows := Partition(scenes, 2)
	require.Len(t, windows, 4)

	var joined []model.Scene
	for i, w := range windows {
		assert.Equal(t, i+1, w.Index)
		assert.Len(t, w.Scenes, w.Len())
		joined = append(joined, w.Scenes...)
	}
	assert.Equal(t, scenes, joined)
}

func TestExportSingleWindow(t *testing.T) {
	e := newTestExporter(&stubResolver{})
	res, err := e.Export(context.Background(), Request{
		Scenes:      []model.Scene{{Order: 2, Script: "second"}, {Order: 1, Script: "first", AudioURL: "x.mp3"}},
		AspectRatio: "9:16",
	})
	require.NoError(t, err)

	assert.Equal(t, "vrew_export_20250307.vrew", res.FileName)
	assert.Equal(t, ContentTypeZip, res.ContentType)
	assert.Equal(t, 1, res.Windows)
	assert.Zero(t, res.FailedWindows)

	names := zipNames(t, res.Data)
	require.Len(t, names, 2)
	assert.Equal(t, vrew.ProjectFile, names[0])
	assert.Equal(t, []string{"first", "second"}, projectCaptions(t, res.Data))
}

func TestExportSplitsAndContainsFailures(t *testing.T) {
	e := newTestExporter(&stubResolver{})
	build := e.buildWindow
	e.buildWindow = func(ctx context.Context, scenes []model.Scene, aspect model.AspectRatio) ([]byte, error) {
		if scenes[0].Script == "scene 3" {
			return nil, &ExportError{Stage: StageBuild, Err: errors.New("boom")}
		}
		return build(ctx, scenes, aspect)
	}

	res, err := e.Export(context.Background(), Request{Title: "story", Scenes: scenesN(5), BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, "story_SPLIT.zip", res.FileName)
	assert.Equal(t, 3, res.Windows)
	assert.Equal(t, 1, res.FailedWindows)

	assert.Equal(t, []string{
		"vrew_project_01_(1-2).vrew",
		"vrew_project_02_(3-4)_error.txt",
		"vrew_project_03_(5-5).vrew",
		ReadmeName,
	}, zipNames(t, res.Data))

	entries := readZip(t, res.Data)
	assert.Contains(t, string(entries["vrew_project_02_(3-4)_error.txt"]), "boom")
	assert.Equal(t, []string{"scene 1", "scene 2"}, projectCaptions(t, entries["vrew_project_01_(1-2).vrew"]))
	assert.Equal(t, []string{"scene 5"}, projectCaptions(t, entries["vrew_project_03_(5-5).vrew"]))
}

func TestExportWindowsHaveOwnNamespaces(t *testing.T) {
	e := newTestExporter(&stubResolver{})
	res, err := e.Export(context.Background(), Request{Scenes: scenesN(4), BatchSize: 2})
	require.NoError(t, err)

	entries := readZip(t, res.Data)
	for _, name := range []string{"vrew_project_01_(1-2).vrew", "vrew_project_02_(3-4).vrew"} {
		inner := readZip(t, entries[name])
		var doc vrew.Document
		require.NoError(t, json.Unmarshal(inner[vrew.ProjectFile], &doc))
		assert.Len(t, doc.Files, 2, name)
		for _, f := range doc.Files {
			assert.Contains(t, inner, f.Path, name)
		}
	}
}

func TestExportErrors(t *testing.T) {
	e := newTestExporter(&stubResolver{})

	_, err := e.Export(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoScenes)
	assert.Equal(t, StageDecode, StageOf(err))

	e.buildWindow = func(context.Context, []model.Scene, model.AspectRatio) ([]byte, error) {
		return nil, &ExportError{Stage: StagePackage, Err: errors.New("disk full")}
	}
	_, err = e.Export(context.Background(), Request{Scenes: scenesN(4)})
	require.Error(t, err)
	assert.Equal(t, StagePackage, StageOf(err))
	assert.True(t, strings.Contains(err.Error(), "disk full"))
}

func TestExportBundlesWhenEveryWindowFails(t *testing.T) {
	e := newTestExporter(&stubResolver{})
	e.buildWindow = func(_ context.Context, scenes []model.Scene, _ model.AspectRatio) ([]byte, error) {
		return nil, &ExportError{Stage: StageBuild, Err: fmt.Errorf("bad %s", scenes[0].Script)}
	}

	res, err := e.Export(context.Background(), Request{Title: "story", Scenes: scenesN(4), BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.FailedWindows)
	assert.Equal(t, []string{
		"vrew_project_01_(1-2)_error.txt",
		"vrew_project_02_(3-4)_error.txt",
		ReadmeName,
	}, zipNames(t, res.Data))

	entries := readZip(t, res.Data)
	assert.Equal(t, "Generation failed: build: bad scene 1\n", string(entries["vrew_project_01_(1-2)_error.txt"]))
	assert.Equal(t, "Generation failed: build: bad scene 3\n", string(entries["vrew_project_02_(3-4)_error.txt"]))
}

func TestExportCanceledWithEveryWindowFailed(t *testing.T) {
	e := newTestExporter(&stubResolver{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Export(ctx, Request{Scenes: scenesN(4), BatchSize: 2})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StageResolve, StageOf(err))
}

func TestExportLimitsConcurrentWindows(t *testing.T) {
	e := newTestExporter(&stubResolver{})
	e.WindowConcurrency = 3

	var running, peak atomic.Int32
	build := e.buildWindow
	e.buildWindow = func(ctx context.Context, scenes []model.Scene, aspect model.AspectRatio) ([]byte, error) {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return build(ctx, scenes, aspect)
	}

	res, err := e.Export(context.Background(), Request{Scenes: scenesN(40), BatchSize: 1})
	require.NoError(t, err)
	assert.Equal(t, 40, res.Windows)
	assert.Zero(t, res.FailedWindows)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Positive(t, peak.Load())
}

func TestExportWindowCanceled(t *testing.T) {
	e := newTestExporter(&stubResolver{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.ExportWindow(ctx, scenesN(1), model.Landscape)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StageResolve, StageOf(err))
}

func TestDownloadName(t *testing.T) {
	assert.Equal(t, "vrew_export_20250307", DefaultTitle(fixedNow))
	assert.Equal(t, "t.vrew", DownloadName("t", 1))
	assert.Equal(t, "t_SPLIT.zip", DownloadName("t", 2))
}
