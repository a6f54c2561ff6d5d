package vrew

import (
	"errors"
	"fmt"
	"math"

	"vrewexport/internal/timing"
)

// ErrInconsistent reports a document that breaks its own cross references.
var ErrInconsistent = errors.New("vrew: inconsistent project document")

const timeEpsilon = 1e-6

func inconsistent(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInconsistent, fmt.Sprintf(format, args...))
}

// Validate checks that every media id referenced by the transcript or the
// placements is cataloged exactly once, that no cataloged file is unused,
// that media entries match the catalog, that generated ids are unique and
// that each narrated clip has a contiguous word timeline ending in one end
// marker. Clip durations are not serialized, so only documents produced by
// Build can be validated.
func Validate(doc *Document, media []Media) error {
	seen := map[string]string{}
	claim := func(id, what string) error {
		if id == "" {
			return inconsistent("empty %s id", what)
		}
		if prev, dup := seen[id]; dup {
			return inconsistent("id %q used by %s and %s", id, prev, what)
		}
		seen[id] = what
		return nil
	}

	files := make(map[string]File, len(doc.Files))
	for _, f := range doc.Files {
		if err := claim(f.MediaID, "file"); err != nil {
			return err
		}
		files[f.MediaID] = f
	}

	entries := make(map[string]int, len(media))
	for _, m := range media {
		if _, dup := entries[m.Name]; dup {
			return inconsistent("archive entry %q repeated", m.Name)
		}
		entries[m.Name] = len(m.Data)
	}
	if len(entries) != len(files) {
		return inconsistent("%d catalog files but %d archive entries", len(files), len(entries))
	}
	for _, f := range files {
		size, ok := entries[f.Path]
		if !ok {
			return inconsistent("file %s has no archive entry %q", f.MediaID, f.Path)
		}
		if size != f.FileSize {
			return inconsistent("file %s size %d but entry holds %d bytes", f.MediaID, f.FileSize, size)
		}
	}

	refs := map[string]int{}
	for usageID, p := range doc.Props.Assets {
		if err := claim(usageID, "placement"); err != nil {
			return err
		}
		f, ok := files[p.MediaID]
		if !ok || f.Type != TypeImage {
			return inconsistent("placement %s references unknown image %q", usageID, p.MediaID)
		}
		refs[p.MediaID]++
	}

	placed := map[string]int{}
	for si, s := range doc.Transcript.Scenes {
		if err := claim(s.ID, "scene"); err != nil {
			return err
		}
		if len(s.Clips) != 1 {
			return inconsistent("scene %d has %d clips", si+1, len(s.Clips))
		}
		clip := s.Clips[0]
		if err := claim(clip.ID, "clip"); err != nil {
			return err
		}
		if _, ok := doc.Props.OriginalClipsMap[clip.ID]; !ok {
			return inconsistent("clip %s missing from originalClipsMap", clip.ID)
		}
		for _, usageID := range clip.AssetIDs {
			if _, ok := doc.Props.Assets[usageID]; !ok {
				return inconsistent("clip %s references unknown placement %q", clip.ID, usageID)
			}
			placed[usageID]++
		}
		narration, err := checkWords(clip, claim)
		if err != nil {
			return err
		}
		if narration != "" {
			f, ok := files[narration]
			if !ok || f.Type != TypeAVMedia {
				return inconsistent("clip %s words reference unknown narration %q", clip.ID, narration)
			}
			refs[narration]++
		}
	}

	for usageID := range doc.Props.Assets {
		if placed[usageID] != 1 {
			return inconsistent("placement %s used by %d clips", usageID, placed[usageID])
		}
	}
	for id := range doc.Props.TTSClipInfosMap {
		if f, ok := files[id]; !ok || f.Type != TypeAVMedia {
			return inconsistent("voicing info for unknown narration %q", id)
		}
	}
	for id := range files {
		if refs[id] != 1 {
			return inconsistent("file %s referenced %d times", id, refs[id])
		}
	}
	return nil
}

// checkWords verifies the clip timeline and returns the narration media id it
// is bound to, or "" for a clip without words.
func checkWords(clip Clip, claim func(id, what string) error) (string, error) {
	if len(clip.Words) == 0 {
		return "", nil
	}
	mediaID := clip.Words[0].MediaID
	cursor := 0.0
	for i, w := range clip.Words {
		if err := claim(w.ID, "word"); err != nil {
			return "", err
		}
		if w.MediaID != mediaID {
			return "", inconsistent("clip %s mixes narration %q and %q", clip.ID, mediaID, w.MediaID)
		}

		if i < len(clip.Words)-1 {
			if w.Type == timing.EndMarker {
				return "", inconsistent("clip %s has an end marker at position %d", clip.ID, i)
			}
			if w.Duration < 0 || math.Abs(w.StartTime-cursor) > timeEpsilon {
				return "", inconsistent("clip %s word %d starts at %g, expected %g", clip.ID, i, w.StartTime, cursor)
			}
			cursor = w.StartTime + w.Duration
			continue
		}

		if w.Type != timing.EndMarker {
			return "", inconsistent("clip %s does not end with an end marker", clip.ID)
		}
		if w.Duration != 0 || math.Abs(w.StartTime-clip.Duration) > timeEpsilon {
			return "", inconsistent("clip %s end marker at %g, expected %g", clip.ID, w.StartTime, clip.Duration)
		}
		// spoken words, when present, must reach the marker
		if i > 0 && math.Abs(cursor-clip.Duration) > timeEpsilon {
			return "", inconsistent("clip %s words end at %g, marker at %g", clip.ID, cursor, clip.Duration)
		}
	}
	return mediaID, nil
}
