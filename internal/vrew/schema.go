// Package vrew builds the project document consumed by the Vrew editor and
// packs it, together with its media, into a .vrew archive.
package vrew

import (
	"strings"

	"vrewexport/internal/timing"
)

// Format constants expected by the editor.
const (
	FormatVersion = 15
	AppVersion    = "3.5.4"
	AppStage      = "release"

	ProjectFile = "project.json"
	Extension   = ".vrew"

	OriginUser     = "USER"
	OriginResource = "VREW_RESOURCE"
	TypeImage      = "Image"
	TypeAVMedia    = "AVMedia"
	LocationMemory = "IN_MEMORY"

	NarrationSampleRate = 24000
	NarrationCodec      = "mp3"
)

// Empty serializes as {}.
type Empty struct{}

// Document is the root of project.json.
type Document struct {
	Version         int         `json:"version"`
	Files           []File      `json:"files"`
	Transcript      Transcript  `json:"transcript"`
	Props           Props       `json:"props"`
	Comment         string      `json:"comment"`
	ProjectID       string      `json:"projectId"`
	Statistics      Statistics  `json:"statistics"`
	LastTTSSettings TTSSettings `json:"lastTTSSettings"`
}

// File is one media catalog entry.
type File struct {
	Version            int            `json:"version"`
	MediaID            string         `json:"mediaId"`
	SourceOrigin       string         `json:"sourceOrigin"`
	FileSize           int            `json:"fileSize"`
	Name               string         `json:"name"`
	Type               string         `json:"type"`
	IsTransparent      *bool          `json:"isTransparent,omitempty"`
	VideoAudioMetaInfo *AudioMetaInfo `json:"videoAudioMetaInfo,omitempty"`
	SourceFileType     string         `json:"sourceFileType,omitempty"`
	FileLocation       string         `json:"fileLocation"`
	Path               string         `json:"path"`
	RelativePath       string         `json:"relativePath"`
}

type AudioMetaInfo struct {
	Duration  float64   `json:"duration"`
	AudioInfo AudioInfo `json:"audioInfo"`
}

type AudioInfo struct {
	SampleRate   int    `json:"sampleRate"`
	Codec        string `json:"codec"`
	ChannelCount int    `json:"channelCount"`
}

type Transcript struct {
	Scenes []Scene `json:"scenes"`
}

// Scene wraps exactly one clip.
type Scene struct {
	ID    string     `json:"id"`
	Clips []Clip     `json:"clips"`
	Name  string     `json:"name"`
	Dirty SceneDirty `json:"dirty"`
}

type SceneDirty struct {
	Video bool `json:"video"`
}

// Clip is the timeline unit of one storyboard scene. Duration is the resolved
// clip length; the editor derives it from words and media, so it is not
// serialized. For a clip without narration there are no words to carry it, so
// a scene's imageDuration does not reach the archive: the editor sizes such a
// clip itself once narration is added.
type Clip struct {
	Words               []Word              `json:"words"`
	CaptionMode         string              `json:"captionMode"`
	Captions            []Caption           `json:"captions"`
	AssetIDs            []string            `json:"assetIds"`
	Dirty               ClipDirty           `json:"dirty"`
	TranslationModified TranslationModified `json:"translationModified"`
	ID                  string              `json:"id"`
	AudioIDs            []string            `json:"audioIds"`

	Duration float64 `json:"-"`
}

// CaptionText is the static caption shown for the clip.
func (c Clip) CaptionText() string {
	if len(c.Captions) == 0 || len(c.Captions[0].Text) == 0 {
		return ""
	}
	return strings.TrimSuffix(c.Captions[0].Text[0].Insert, "\n")
}

type ClipDirty struct {
	BlankDeleted bool `json:"blankDeleted"`
	Caption      bool `json:"caption"`
	Video        bool `json:"video"`
}

type TranslationModified struct {
	Result bool `json:"result"`
	Source bool `json:"source"`
}

// Caption is one rich-text line in the editor's delta format.
type Caption struct {
	Text []Insert `json:"text"`
}

type Insert struct {
	Insert string `json:"insert"`
}

// Word is one timed caption unit bound to a narration file.
type Word struct {
	ID                string      `json:"id"`
	Text              string      `json:"text"`
	StartTime         float64     `json:"startTime"`
	Duration          float64     `json:"duration"`
	Aligned           bool        `json:"aligned"`
	Type              timing.Kind `json:"type"`
	OriginalDuration  float64     `json:"originalDuration"`
	OriginalStartTime float64     `json:"originalStartTime"`
	TruncatedWords    []string    `json:"truncatedWords"`
	AutoControl       bool        `json:"autoControl"`
	AudioIDs          []string    `json:"audioIds"`
	AssetIDs          []string    `json:"assetIds"`
	PlaybackRate      float64     `json:"playbackRate"`
	MediaID           string      `json:"mediaId"`
}

// Placement puts an image file on a clip's canvas.
type Placement struct {
	MediaID                  string         `json:"mediaId"`
	XPos                     float64        `json:"xPos"`
	YPos                     float64        `json:"yPos"`
	Height                   float64        `json:"height"`
	Width                    float64        `json:"width"`
	Rotation                 float64        `json:"rotation"`
	ZIndex                   int            `json:"zIndex"`
	Type                     string         `json:"type"`
	OriginalWidthHeightRatio float64        `json:"originalWidthHeightRatio"`
	ImportType               string         `json:"importType"`
	EditInfo                 Empty          `json:"editInfo"`
	Stats                    PlacementStats `json:"stats"`
}

type PlacementStats struct {
	FillType       string `json:"fillType"`
	FillMenu       string `json:"fillMenu"`
	RearrangeCount int    `json:"rearrangeCount"`
}

type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type VideoTransform struct {
	Zoom     float64 `json:"zoom"`
	XPos     float64 `json:"xPos"`
	YPos     float64 `json:"yPos"`
	Rotation float64 `json:"rotation"`
}

// Props holds project-wide presentation settings.
type Props struct {
	Assets               map[string]Placement   `json:"assets"`
	Audios               Empty                  `json:"audios"`
	OverdubInfos         Empty                  `json:"overdubInfos"`
	AnalyzeDate          string                 `json:"analyzeDate"`
	CaptionDisplayMode   map[string]bool        `json:"captionDisplayMode"`
	MediaEffectMap       Empty                  `json:"mediaEffectMap"`
	MarkerNames          map[string]string      `json:"markerNames"`
	FlipSetting          Empty                  `json:"flipSetting"`
	VideoRatio           float64                `json:"videoRatio"`
	GlobalVideoTransform VideoTransform         `json:"globalVideoTransform"`
	VideoSize            Size                   `json:"videoSize"`
	BackgroundMap        Empty                  `json:"backgroundMap"`
	GlobalCaptionStyle   CaptionStyle           `json:"globalCaptionStyle"`
	LastTTSSettings      TTSSettings            `json:"lastTTSSettings"`
	InitProjectVideoSize Size                   `json:"initProjectVideoSize"`
	PronunciationDisplay bool                   `json:"pronunciationDisplay"`
	ProjectAudioLanguage string                 `json:"projectAudioLanguage"`
	AudioLanguagesMap    Empty                  `json:"audioLanguagesMap"`
	OriginalClipsMap     map[string][]string    `json:"originalClipsMap"`
	TTSClipInfosMap      map[string]TTSClipInfo `json:"ttsClipInfosMap"`
}

type CaptionStyle struct {
	CaptionStyleSetting CaptionStyleSetting `json:"captionStyleSetting"`
	QuillStyle          QuillStyle          `json:"quillStyle"`
}

type CaptionStyleSetting struct {
	MediaID          string            `json:"mediaId"`
	YAlign           string            `json:"yAlign"`
	YOffset          float64           `json:"yOffset"`
	XOffset          float64           `json:"xOffset"`
	Rotation         float64           `json:"rotation"`
	Width            float64           `json:"width"`
	CustomAttributes []CustomAttribute `json:"customAttributes"`
	ScaleFactor      float64           `json:"scaleFactor"`
}

type CustomAttribute struct {
	AttributeName string `json:"attributeName"`
	Type          string `json:"type"`
	Value         string `json:"value"`
}

// QuillStyle uses the editor's string-typed style keys.
type QuillStyle struct {
	Font         string `json:"font"`
	Size         string `json:"size"`
	Color        string `json:"color"`
	OutlineOn    string `json:"outline-on"`
	OutlineColor string `json:"outline-color"`
	OutlineWidth string `json:"outline-width"`
}

type TTSSettings struct {
	Pitch   int     `json:"pitch"`
	Speed   int     `json:"speed"`
	Volume  int     `json:"volume"`
	Speaker Speaker `json:"speaker"`
	Emotion string  `json:"emotion"`
}

type Speaker struct {
	Age       string   `json:"age"`
	Gender    string   `json:"gender"`
	Lang      string   `json:"lang"`
	Name      string   `json:"name"`
	SpeakerID string   `json:"speakerId"`
	Provider  string   `json:"provider"`
	Emotions  []string `json:"emotions"`
	Tags      []string `json:"tags"`
}

// TTSClipInfo describes how a narration file was voiced.
type TTSClipInfo struct {
	Duration float64 `json:"duration"`
	Text     TTSText `json:"text"`
	Speaker  Speaker `json:"speaker"`
	Volume   int     `json:"volume"`
	Speed    int     `json:"speed"`
	Pitch    int     `json:"pitch"`
	Emotion  string  `json:"emotion"`
}

type TTSText struct {
	Raw            string `json:"raw"`
	Processed      string `json:"processed"`
	TextAspectLang string `json:"textAspectLang"`
}

type Statistics struct {
	WordCursorCount              map[string]int `json:"wordCursorCount"`
	WordSelectionCount           map[string]int `json:"wordSelectionCount"`
	WordCorrectionCount          map[string]int `json:"wordCorrectionCount"`
	ProjectStartMode             string         `json:"projectStartMode"`
	SaveInfo                     SaveInfo       `json:"saveInfo"`
	SavedStyleApplyCount         int            `json:"savedStyleApplyCount"`
	CumulativeTemplateApplyCount int            `json:"cumulativeTemplateApplyCount"`
	RatioChangedByTemplate       bool           `json:"ratioChangedByTemplate"`
	VideoRemixInfos              Empty          `json:"videoRemixInfos"`
	IsAIWritingUsed              bool           `json:"isAIWritingUsed"`
	ClientLinebreakExecuteCount  int            `json:"clientLinebreakExecuteCount"`
	AgentStats                   AgentStats     `json:"agentStats"`
}

type SaveInfo struct {
	Created   SaveStamp `json:"created"`
	Updated   SaveStamp `json:"updated"`
	LoadCount int       `json:"loadCount"`
	SaveCount int       `json:"saveCount"`
}

type SaveStamp struct {
	Version string `json:"version"`
	Date    string `json:"date"`
	Stage   string `json:"stage"`
}

type AgentStats struct {
	IsEdited       bool `json:"isEdited"`
	RequestCount   int  `json:"requestCount"`
	ResponseCount  int  `json:"responseCount"`
	ToolCallCount  int  `json:"toolCallCount"`
	ToolErrorCount int  `json:"toolErrorCount"`
}

// Media is one binary archive entry.
type Media struct {
	Name string
	Data []byte
}
