package vrew

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"vrewexport/internal/assets"
	"vrewexport/internal/ids"
	"vrewexport/internal/model"
	"vrewexport/internal/timing"
)

const narrationNameRunes = 30

// Options tunes a Build call. Zero values use crypto/rand ids, the wall clock
// and random project ids.
type Options struct {
	IDs       *ids.Allocator
	Now       func() time.Time
	ProjectID func() string
}

type builder struct {
	ids   *ids.Allocator
	now   time.Time
	doc   *Document
	media []Media
}

// Build assembles the project document for scenes, already in display order,
// and the per-scene resolution outcomes indexed like scenes. The returned media
// slice holds the archive entries in catalog order. The document is checked
// with Validate before it is returned.
func Build(scenes []model.Scene, resolved []assets.SceneAssets, aspect model.AspectRatio, opts Options) (*Document, []Media, error) {
	if len(resolved) != len(scenes) {
		return nil, nil, fmt.Errorf("%w: %d scenes but %d asset results", ErrInconsistent, len(scenes), len(resolved))
	}
	if opts.IDs == nil {
		opts.IDs = ids.NewAllocator()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ProjectID == nil {
		opts.ProjectID = uuid.NewString
	}

	b := &builder{ids: opts.IDs, now: opts.Now()}
	b.doc = &Document{
		Version:         FormatVersion,
		Files:           []File{},
		Transcript:      Transcript{Scenes: make([]Scene, 0, len(scenes))},
		Props:           defaultProps(aspect, b.now),
		Comment:         AppVersion + "\t" + b.now.UTC().Format("2006-01-02T15:04:05.000Z"),
		ProjectID:       opts.ProjectID(),
		Statistics:      defaultStatistics(b.now),
		LastTTSSettings: DefaultTTSSettings(),
	}

	for i, scene := range scenes {
		if err := b.addScene(scene, resolved[i]); err != nil {
			return nil, nil, fmt.Errorf("scene %d: %w", i+1, err)
		}
	}

	if err := Validate(b.doc, b.media); err != nil {
		return nil, nil, err
	}
	return b.doc, b.media, nil
}

func (b *builder) addScene(scene model.Scene, res assets.SceneAssets) error {
	sceneID, err := b.ids.Next()
	if err != nil {
		return err
	}
	clipID, err := b.ids.Next()
	if err != nil {
		return err
	}

	clip := Clip{
		Words:       []Word{},
		CaptionMode: "MANUAL",
		Captions: []Caption{
			{Text: []Insert{{Insert: scene.Script + "\n"}}},
			{Text: []Insert{{Insert: "\n"}}},
		},
		AssetIDs: []string{},
		ID:       clipID,
		AudioIDs: []string{},
		Duration: clipDuration(scene, res.Audio),
	}

	if res.Image != nil {
		usageID, err := b.addImage(res.Image)
		if err != nil {
			return err
		}
		clip.AssetIDs = append(clip.AssetIDs, usageID)
	}

	if res.Audio != nil {
		mediaID, err := b.addNarration(scene.Script, clip.Duration, res.Audio)
		if err != nil {
			return err
		}
		for _, w := range timing.Synthesize(scene.Script, clip.Duration) {
			id, err := b.ids.Next()
			if err != nil {
				return err
			}
			clip.Words = append(clip.Words, newWord(id, mediaID, w))
		}
	}

	b.doc.Props.OriginalClipsMap[clipID] = []string{}
	b.doc.Transcript.Scenes = append(b.doc.Transcript.Scenes, Scene{
		ID:    sceneID,
		Clips: []Clip{clip},
	})
	return nil
}

// addImage catalogs img and places it full-canvas; it returns the placement id.
func (b *builder) addImage(img *assets.Image) (string, error) {
	mediaID, err := b.ids.Next()
	if err != nil {
		return "", err
	}
	usageID, err := b.ids.Next()
	if err != nil {
		return "", err
	}
	name := mediaID + ".png"
	transparent := false
	b.catalog(File{
		MediaID:       mediaID,
		SourceOrigin:  OriginUser,
		FileSize:      len(img.Data),
		Name:          name,
		Type:          TypeImage,
		IsTransparent: &transparent,
	}, name, img.Data)

	ratio := float64(assets.DefaultWidth) / float64(assets.DefaultHeight)
	if img.Width > 0 && img.Height > 0 {
		ratio = float64(img.Width) / float64(img.Height)
	}
	b.doc.Props.Assets[usageID] = Placement{
		MediaID:                  mediaID,
		Height:                   1,
		Width:                    1,
		Type:                     "image",
		OriginalWidthHeightRatio: ratio,
		ImportType:               "user_asset_panel",
		Stats:                    PlacementStats{FillType: "cut", FillMenu: "floating"},
	}
	return usageID, nil
}

// addNarration catalogs the narration file and its voicing info.
func (b *builder) addNarration(script string, duration float64, aud *assets.Audio) (string, error) {
	mediaID, err := b.ids.Next()
	if err != nil {
		return "", err
	}
	name := mediaID + ".mp3"
	b.catalog(File{
		MediaID:      mediaID,
		SourceOrigin: OriginResource,
		FileSize:     len(aud.Data),
		Name:         narrationName(script, name),
		Type:         TypeAVMedia,
		VideoAudioMetaInfo: &AudioMetaInfo{
			Duration: duration,
			AudioInfo: AudioInfo{
				SampleRate:   NarrationSampleRate,
				Codec:        NarrationCodec,
				ChannelCount: 1,
			},
		},
		SourceFileType: "TTS",
	}, name, aud.Data)

	tts := DefaultTTSSettings()
	b.doc.Props.TTSClipInfosMap[mediaID] = TTSClipInfo{
		Duration: duration,
		Text:     TTSText{Raw: script, Processed: script, TextAspectLang: tts.Speaker.Lang},
		Speaker:  tts.Speaker,
		Volume:   tts.Volume,
		Speed:    tts.Speed,
		Pitch:    tts.Pitch,
		Emotion:  tts.Emotion,
	}
	return mediaID, nil
}

func (b *builder) catalog(f File, name string, data []byte) {
	f.Version = 1
	f.FileLocation = LocationMemory
	f.Path = name
	f.RelativePath = "./" + name
	b.doc.Files = append(b.doc.Files, f)
	b.media = append(b.media, Media{Name: name, Data: data})
}

func newWord(id, mediaID string, w timing.Word) Word {
	return Word{
		ID:                id,
		Text:              w.Text,
		StartTime:         w.StartTime,
		Duration:          w.Duration,
		Type:              w.Kind,
		OriginalDuration:  w.Duration,
		OriginalStartTime: w.StartTime,
		TruncatedWords:    []string{},
		AudioIDs:          []string{},
		AssetIDs:          []string{},
		PlaybackRate:      1,
		MediaID:           mediaID,
	}
}

// clipDuration prefers the declared narration length, then the measured one,
// then the scene's image duration.
func clipDuration(scene model.Scene, aud *assets.Audio) float64 {
	if aud != nil {
		if scene.AudioDuration > 0 {
			return scene.AudioDuration
		}
		if aud.Measured > 0 {
			return aud.Measured
		}
	}
	return scene.FallbackDuration()
}

func narrationName(script, fallback string) string {
	r := []rune(strings.TrimSpace(script))
	if len(r) == 0 {
		return fallback
	}
	if len(r) > narrationNameRunes {
		r = r[:narrationNameRunes]
	}
	return string(r) + ".mp3"
}
