package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"vrewexport/internal/model"
	"vrewexport/internal/service"
)

// Exporter is the part of service.Exporter the tool drives.
type Exporter interface {
	Export(ctx context.Context, req service.Request) (*service.Result, error)
}

// ExportTool exposes storyboard export to eino agents. The archive is written
// to OutputDir and the tool returns where it went.
type ExportTool struct {
	exporter  Exporter
	OutputDir string
}

type ExportToolArgs struct {
	Scenes      []model.Scene `json:"scenes"`
	AspectRatio string        `json:"aspect_ratio"`
	BatchSize   int           `json:"batch_size"`
	FileName    string        `json:"file_name"`
}

type ExportToolResp struct {
	File          string `json:"file"`
	Size          int    `json:"size"`
	Windows       int    `json:"windows"`
	FailedWindows int    `json:"failed_windows"`
}

func NewExportTool(exporter Exporter, outputDir string) *ExportTool {
	if outputDir == "" {
		outputDir = os.TempDir()
	}
	return &ExportTool{exporter: exporter, OutputDir: outputDir}
}

func (t *ExportTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	scene := &schema.ParameterInfo{
		Type: schema.Object,
		SubParams: map[string]*schema.ParameterInfo{
			"order":         {Type: schema.Integer, Desc: "position in the storyboard"},
			"script":        {Type: schema.String, Required: true, Desc: "narration text, also used as caption"},
			"imageUrl":      {Type: schema.String, Desc: "image reference: data:, http(s)://, s3:// or local path"},
			"audioUrl":      {Type: schema.String, Desc: "narration mp3 reference"},
			"imageDuration": {Type: schema.Number, Desc: "seconds to show the scene when there is no narration"},
			"audioDuration": {Type: schema.Number, Desc: "narration length in seconds"},
		},
	}
	params := map[string]*schema.ParameterInfo{
		"scenes":       {Type: schema.Array, Required: true, ElemInfo: scene, Desc: "ordered storyboard scenes"},
		"aspect_ratio": {Type: schema.String, Enum: []string{"16:9", "9:16"}, Desc: "canvas, 16:9 by default"},
		"batch_size":   {Type: schema.Integer, Desc: "scenes per project; 0 exports a single project"},
		"file_name":    {Type: schema.String, Desc: "output file name, defaults to a dated name"},
	}
	return &schema.ToolInfo{
		Name:        "vrew_export",
		Desc:        "Package a storyboard into a Vrew project (.vrew) with narration, word-timed captions and images",
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}, nil
}

func (t *ExportTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...einotool.Option) (string, error) {
	var args ExportToolArgs
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return "", err
	}
	if len(args.Scenes) == 0 {
		return "", errors.New("scenes required")
	}

	res, err := t.exporter.Export(ctx, service.Request{
		Scenes:      args.Scenes,
		AspectRatio: model.ParseAspectRatio(args.AspectRatio),
		BatchSize:   args.BatchSize,
	})
	if err != nil {
		return "", err
	}

	name := outputName(args.FileName, res.FileName)
	if err := os.MkdirAll(t.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(t.OutputDir, name)
	if err := os.WriteFile(path, res.Data, 0o644); err != nil {
		return "", fmt.Errorf("write archive: %w", err)
	}

	b, err := json.Marshal(ExportToolResp{
		File:          path,
		Size:          len(res.Data),
		Windows:       res.Windows,
		FailedWindows: res.FailedWindows,
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// outputName keeps only the base of a requested name and gives it the
// extension of the produced archive.
func outputName(requested, produced string) string {
	base := filepath.Base(strings.TrimSpace(requested))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return produced
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + filepath.Ext(produced)
}

var _ einotool.InvokableTool = (*ExportTool)(nil)
