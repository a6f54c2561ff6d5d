package service

import (
	"fmt"
	"time"

	"vrewexport/internal/model"
	"vrewexport/internal/vrew"
)

const (
	ReadmeName   = "READ_ME.txt"
	titlePrefix  = "vrew_export_"
	splitSuffix  = "_SPLIT.zip"
	errorSuffix  = "_error.txt"
	windowPrefix = "vrew_project_"
)

const readme = `[How to use the .vrew files]

1. Unzip this archive; it holds one .vrew project per scene range.
2. Start Vrew and open each .vrew file by double-clicking it or through File > Open.
3. The project opens fully populated; no import step is needed.

Files named *_error.txt stand in for ranges that could not be exported and
carry the failure message.
`

// Window is a contiguous run of scenes exported as one project. Start and End
// are 1-based positions in the sorted storyboard, both inclusive.
type Window struct {
	Index  int           `json:"index"`
	Start  int           `json:"start"`
	End    int           `json:"end"`
	Scenes []model.Scene `json:"-"`
}

// Name is the archive base name, e.g. vrew_project_02_(6-10).
func (w Window) Name() string {
	return fmt.Sprintf("%s%02d_(%d-%d)", windowPrefix, w.Index, w.Start, w.End)
}

func (w Window) FileName() string      { return w.Name() + vrew.Extension }
func (w Window) ErrorFileName() string { return w.Name() + errorSuffix }
func (w Window) Len() int              { return w.End - w.Start + 1 }

// PlanWindows splits total scenes into windows of at most size scenes. A size
// of zero or less yields a single window.
func PlanWindows(total, size int) []Window {
	if total <= 0 {
		return nil
	}
	if size <= 0 || size > total {
		size = total
	}
	windows := make([]Window, 0, (total+size-1)/size)
	for start := 0; start < total; start += size {
		end := min(start+size, total)
		windows = append(windows, Window{
			Index: len(windows) + 1,
			Start: start + 1,
			End:   end,
		})
	}
	return windows
}

// Partition assigns scenes, already sorted, to the windows PlanWindows yields.
func Partition(scenes []model.Scene, size int) []Window {
	windows := PlanWindows(len(scenes), size)
	for i := range windows {
		windows[i].Scenes = scenes[windows[i].Start-1 : windows[i].End]
	}
	return windows
}

// DefaultTitle is the download base name for exports started at t.
func DefaultTitle(t time.Time) string {
	return titlePrefix + t.Format("20060102")
}

// DownloadName is the file handed to the user: the project itself for one
// window, or the split bundle for several.
func DownloadName(title string, windows int) string {
	if windows > 1 {
		return title + splitSuffix
	}
	return title + vrew.Extension
}
