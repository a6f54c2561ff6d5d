package assets

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/vincent-petithory/dataurl"
)

// Source is the shape of an asset reference.
type Source int

const (
	SourceUnsupported Source = iota
	SourceInline
	SourceRemote
	SourceS3
	SourceLocal
)

func (s Source) String() string {
	switch s {
	case SourceInline:
		return "inline"
	case SourceRemote:
		return "remote"
	case SourceS3:
		return "s3"
	case SourceLocal:
		return "local"
	default:
		return "unsupported"
	}
}

var (
	ErrUnsupportedSource = errors.New("assets: unsupported reference")
	ErrNotFound          = errors.New("assets: reference not found")
	ErrOutsideRoot       = errors.New("assets: local path outside asset root")
)

var schemePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*:`)

// Classify inspects a reference without touching the network or filesystem.
func Classify(ref string) Source {
	ref = strings.TrimSpace(ref)
	lower := strings.ToLower(ref)
	switch {
	case ref == "":
		return SourceUnsupported
	case strings.HasPrefix(lower, "data:"):
		return SourceInline
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return SourceRemote
	case strings.HasPrefix(lower, "s3://"):
		return SourceS3
	case strings.HasPrefix(lower, "file:"):
		return SourceLocal
	case isDrivePath(ref):
		return SourceLocal
	case schemePattern.MatchString(ref):
		return SourceUnsupported
	default:
		return SourceLocal
	}
}

// isDrivePath matches Windows paths such as C:\media\a.png or C:/media/a.png.
func isDrivePath(ref string) bool {
	if len(ref) < 3 || ref[1] != ':' {
		return false
	}
	c := ref[0]
	isLetter := (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
	return isLetter && (ref[2] == '\\' || ref[2] == '/')
}

// decodeInline decodes a data: reference.
func decodeInline(ref string) ([]byte, error) {
	if du, err := dataurl.DecodeString(ref); err == nil {
		return du.Data, nil
	}
	// lenient path: unpadded base64 or payloads broken by whitespace
	header, payload, ok := strings.Cut(ref, ",")
	if !ok {
		return nil, fmt.Errorf("%w: data reference without payload", ErrUnsupportedSource)
	}
	if !strings.Contains(strings.ToLower(header), ";base64") {
		s, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("decode inline payload: %w", err)
		}
		return []byte(s), nil
	}
	payload = strings.Join(strings.Fields(payload), "")
	if data, err := base64.StdEncoding.DecodeString(payload); err == nil {
		return data, nil
	}
	data, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
	if err != nil {
		return nil, fmt.Errorf("decode inline payload: %w", err)
	}
	return data, nil
}

// localPath turns a local reference into a cleaned filesystem path, confined
// to root when root is not empty.
func localPath(ref, root string) (string, error) {
	p := strings.TrimSpace(ref)
	if strings.HasPrefix(strings.ToLower(p), "file:") {
		u, err := url.Parse(p)
		if err != nil {
			return "", fmt.Errorf("parse file reference: %w", err)
		}
		p = u.Path
		if u.Host != "" && u.Host != "localhost" {
			p = u.Host + u.Path
		}
		// file:///C:/x parses to /C:/x
		if len(p) > 3 && p[0] == '/' && isDrivePath(p[1:]) {
			p = p[1:]
		}
	} else if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	p = filepath.Clean(filepath.FromSlash(p))

	if root == "" {
		return p, nil
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(absRoot, p)
	}
	rel, err := filepath.Rel(absRoot, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	return p, nil
}
