package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// LoadStoryboard reads a storyboard from a .json or .toml file.
func LoadStoryboard(path string) (*Storyboard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read storyboard: %w", err)
	}
	return ParseStoryboard(data, filepath.Ext(path))
}

// ParseStoryboard decodes storyboard bytes. ext selects the format; anything
// other than ".toml" is treated as JSON.
func ParseStoryboard(data []byte, ext string) (*Storyboard, error) {
	var sb Storyboard
	switch strings.ToLower(ext) {
	case ".toml":
		if err := toml.Unmarshal(data, &sb); err != nil {
			return nil, fmt.Errorf("decode toml storyboard: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &sb); err != nil {
			return nil, fmt.Errorf("decode json storyboard: %w", err)
		}
	}
	sb.AspectRatio = sb.AspectRatio.Normalize()
	return &sb, nil
}
