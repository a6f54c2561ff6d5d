package vrew

import (
	"fmt"
	"strconv"
	"time"

	"vrewexport/internal/model"
)

// Caption style applied to every project.
const (
	CaptionFont    = "Kyobo Handwriting 2020-Vrew_400"
	CaptionSize    = "150"
	CaptionTextbox = "uc-0010-simple-textbox"
)

// DefaultTTSSettings is the voice the editor offers for re-voicing narration.
func DefaultTTSSettings() TTSSettings {
	return TTSSettings{
		Pitch:  1,
		Speed:  0,
		Volume: 4,
		Speaker: Speaker{
			Age:       "youth",
			Gender:    "male",
			Lang:      "ko-KR",
			Name:      "vos-male05",
			SpeakerID: "vos-male05",
			Provider:  "kt",
			Emotions:  []string{"neutral", "happy", "calm", "sad", "angry"},
			Tags:      []string{"careful", "trustworthy", "sincere", "descriptive"},
		},
		Emotion: "calm",
	}
}

func defaultProps(aspect model.AspectRatio, now time.Time) Props {
	w, h := aspect.VideoSize()
	ratio := aspect.Scale()
	return Props{
		Assets:             map[string]Placement{},
		AnalyzeDate:        analyzeDate(now),
		CaptionDisplayMode: map[string]bool{"0": true, "1": false},
		MarkerNames:        zeroKeys(6, ""),
		VideoRatio:         ratio,
		GlobalVideoTransform: VideoTransform{
			Zoom: 1,
		},
		VideoSize: Size{Width: w, Height: h},
		GlobalCaptionStyle: CaptionStyle{
			CaptionStyleSetting: CaptionStyleSetting{
				MediaID: CaptionTextbox,
				YAlign:  "bottom",
				YOffset: -0.1,
				XOffset: -0.02,
				Width:   0.96,
				CustomAttributes: []CustomAttribute{
					{AttributeName: "--textbox-color", Type: "color-hex", Value: "rgb(0, 0, 0)"},
					{AttributeName: "--textbox-align", Type: "textbox-align", Value: "center"},
				},
				ScaleFactor: ratio,
			},
			QuillStyle: QuillStyle{
				Font:         CaptionFont,
				Size:         CaptionSize,
				Color:        "#ffffff",
				OutlineOn:    "true",
				OutlineColor: "#000000",
				OutlineWidth: "6",
			},
		},
		LastTTSSettings:      DefaultTTSSettings(),
		InitProjectVideoSize: Size{Width: w, Height: h},
		PronunciationDisplay: true,
		ProjectAudioLanguage: "ko",
		OriginalClipsMap:     map[string][]string{},
		TTSClipInfosMap:      map[string]TTSClipInfo{},
	}
}

func defaultStatistics(now time.Time) Statistics {
	stamp := SaveStamp{
		Version: AppVersion,
		Date:    now.Format("2006-01-02T15:04:05.000Z07:00"),
		Stage:   AppStage,
	}
	return Statistics{
		WordCursorCount:     zeroKeys(8, 0),
		WordSelectionCount:  zeroKeys(8, 0),
		WordCorrectionCount: zeroKeys(8, 0),
		ProjectStartMode:    "ai_voice",
		SaveInfo: SaveInfo{
			Created:   stamp,
			Updated:   stamp,
			SaveCount: 1,
		},
	}
}

// analyzeDate renders Y-M-D H:MM:SS without zero padding on the date part.
func analyzeDate(t time.Time) string {
	return fmt.Sprintf("%d-%d-%d %d:%02d:%02d",
		t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
}

// zeroKeys returns {"0": v, ..., "n-1": v}.
func zeroKeys[V any](n int, v V) map[string]V {
	m := make(map[string]V, n)
	for i := 0; i < n; i++ {
		m[strconv.Itoa(i)] = v
	}
	return m
}
