// Package assets resolves a scene's image and narration references into raw
// bytes plus the metadata the project document needs. A reference that cannot
// be resolved is reported as absent; it never fails the export.
package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tcolgate/mp3"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"vrewexport/internal/metrics"
	"vrewexport/internal/model"
	"vrewexport/internal/storage"
)

const (
	// DefaultWidth and DefaultHeight stand in for images whose header cannot be parsed.
	DefaultWidth  = 1920
	DefaultHeight = 1080

	defaultConcurrency = 10
)

// Image is a resolved still image.
type Image struct {
	Data   []byte
	Width  int
	Height int
	Format string
}

// Audio is a resolved narration clip. Measured is zero when the length could
// not be read from the payload.
type Audio struct {
	Data     []byte
	Measured float64
}

// SceneAssets is the outcome for one scene; nil fields are absent assets.
type SceneAssets struct {
	Image *Image
	Audio *Audio
}

// Fetcher downloads remote references.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// ObjectReader reads s3:// references.
type ObjectReader interface {
	Read(ctx context.Context, bucket, key string, maxBytes int64) ([]byte, error)
}

type Resolver struct {
	Remote      Fetcher
	Objects     ObjectReader
	LocalRoot   string
	MaxBytes    int64
	Concurrency int
	log         logrus.FieldLogger
}

func NewResolver(remote Fetcher, objects ObjectReader, log logrus.FieldLogger) *Resolver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Resolver{
		Remote:      remote,
		Objects:     objects,
		Concurrency: defaultConcurrency,
		log:         log,
	}
}

// Load returns the bytes behind ref.
func (r *Resolver) Load(ctx context.Context, ref string) ([]byte, error) {
	switch Classify(ref) {
	case SourceInline:
		return decodeInline(ref)
	case SourceRemote:
		if r.Remote == nil {
			return nil, fmt.Errorf("%w: remote fetching disabled", ErrUnsupportedSource)
		}
		return r.Remote.Get(ctx, ref)
	case SourceS3:
		if r.Objects == nil {
			return nil, fmt.Errorf("%w: s3 storage not configured", ErrUnsupportedSource)
		}
		bucket, key, err := storage.ParseURI(ref)
		if err != nil {
			return nil, err
		}
		return r.Objects.Read(ctx, bucket, key, r.MaxBytes)
	case SourceLocal:
		return r.readLocal(ref)
	default:
		return nil, fmt.Errorf("%w: %.40q", ErrUnsupportedSource, ref)
	}
}

func (r *Resolver) readLocal(ref string) ([]byte, error) {
	p, err := localPath(ref, r.LocalRoot)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, p)
	}
	if r.MaxBytes > 0 && info.Size() > r.MaxBytes {
		return nil, fmt.Errorf("%s: file exceeds %d bytes", p, r.MaxBytes)
	}
	return os.ReadFile(p)
}

// ResolveImage loads ref and reads its pixel size, falling back to the
// default canvas when the header is unreadable.
func (r *Resolver) ResolveImage(ctx context.Context, ref string) (*Image, error) {
	data, err := r.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image payload", ErrNotFound)
	}
	img := &Image{Data: data, Width: DefaultWidth, Height: DefaultHeight}
	if cfg, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil && cfg.Width > 0 && cfg.Height > 0 {
		img.Width, img.Height, img.Format = cfg.Width, cfg.Height, format
	}
	return img, nil
}

// ResolveAudio loads ref and measures its length when it is mp3.
func (r *Resolver) ResolveAudio(ctx context.Context, ref string) (*Audio, error) {
	data, err := r.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty audio payload", ErrNotFound)
	}
	return &Audio{Data: data, Measured: MeasureMP3(data)}, nil
}

// MeasureMP3 sums frame durations; it returns 0 for non-mp3 payloads.
func MeasureMP3(data []byte) float64 {
	dec := mp3.NewDecoder(bytes.NewReader(data))
	var (
		frame   mp3.Frame
		skipped int
		total   time.Duration
	)
	for {
		if err := dec.Decode(&frame, &skipped); err != nil {
			break
		}
		total += frame.Duration()
	}
	return total.Seconds()
}

// ResolveScenes resolves every scene concurrently and returns outcomes indexed
// like scenes. It returns only after every task has settled.
func (r *Resolver) ResolveScenes(ctx context.Context, scenes []model.Scene) []SceneAssets {
	out := make([]SceneAssets, len(scenes))
	limit := r.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i := range scenes {
		scene := scenes[i]
		g.Go(func() error {
			out[i] = r.resolveScene(ctx, i, scene)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *Resolver) resolveScene(ctx context.Context, index int, scene model.Scene) SceneAssets {
	var (
		res SceneAssets
		g   errgroup.Group
	)
	if scene.ImageURL != "" {
		g.Go(func() error {
			img, err := r.ResolveImage(ctx, scene.ImageURL)
			r.record(index, "image", scene.ImageURL, err)
			res.Image = img
			return nil
		})
	}
	if scene.AudioURL != "" {
		g.Go(func() error {
			aud, err := r.ResolveAudio(ctx, scene.AudioURL)
			r.record(index, "audio", scene.AudioURL, err)
			res.Audio = aud
			return nil
		})
	}
	_ = g.Wait()
	return res
}

func (r *Resolver) record(index int, kind, ref string, err error) {
	if err == nil {
		metrics.Asset(kind, "ok")
		return
	}
	metrics.Asset(kind, "absent")
	r.log.WithFields(logrus.Fields{
		"scene":  index + 1,
		"kind":   kind,
		"source": Classify(ref).String(),
	}).WithError(err).Warn("asset unavailable, scene continues without it")
}
