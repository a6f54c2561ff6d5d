package model

import "sort"

// DefaultSceneSeconds is used when a scene carries neither narration length nor image duration.
const DefaultSceneSeconds = 5.0

// Scene is one storyboard unit as produced by the authoring UI.
type Scene struct {
	ID            string  `json:"id,omitempty" toml:"id"`
	Order         int     `json:"order" toml:"order"`
	Script        string  `json:"script" toml:"script"`
	ImageURL      string  `json:"imageUrl,omitempty" toml:"image_url"`
	AudioURL      string  `json:"audioUrl,omitempty" toml:"audio_url"`
	ImageDuration float64 `json:"imageDuration,omitempty" toml:"image_duration"`
	AudioDuration float64 `json:"audioDuration,omitempty" toml:"audio_duration"`
}

// FallbackDuration is the clip length used when no narration length is known.
func (s Scene) FallbackDuration() float64 {
	if s.ImageDuration > 0 {
		return s.ImageDuration
	}
	return DefaultSceneSeconds
}

// Storyboard is an ordered scene list plus the presentation selector.
type Storyboard struct {
	Title       string      `json:"title,omitempty" toml:"title"`
	AspectRatio AspectRatio `json:"aspectRatio,omitempty" toml:"aspect_ratio"`
	Scenes      []Scene     `json:"scenes" toml:"scenes"`
}

// SortScenes returns a copy of scenes stable-sorted by Order. Scenes sharing
// an order value keep their input position.
func SortScenes(scenes []Scene) []Scene {
	out := make([]Scene, len(scenes))
	copy(out, scenes)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order < out[j].Order
	})
	return out
}
