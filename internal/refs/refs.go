package refs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/ligustah/eccofetch/internal/dataset"
)

// Common errors.
var (
	ErrNoReferenceFile = errors.New("refs: no reference file for dataset")
	ErrKeyNotFound     = errors.New("refs: key not found")
	ErrInvalid         = errors.New("refs: invalid reference file")
)

// ResolvePath returns the reference file for a dataset under root:
// root/MZZ_<GRID>_<TIMERES>/<id>.json for time-varying data. Static
// datasets use the first *native*.json (LLC grids) or *latlon*.json (degree
// grids) in their MZZ_<GRID>_GEOMETRY or MZZ_<GRID>_MIXING_COEFFS directory.
func ResolvePath(fs afero.Fs, root, shortName string) (string, error) {
	id := dataset.Parse(shortName)
	if id.Resolution == dataset.Unknown || id.Grid == "" {
		return "", fmt.Errorf("%w: cannot derive grid and resolution from %q", ErrNoReferenceFile, shortName)
	}

	dir := filepath.Join(root, "MZZ_"+id.Grid+"_"+string(id.Resolution))

	if !id.IsStatic() {
		return filepath.Join(dir, shortName+".json"), nil
	}

	pattern := "*native*.json"
	if id.IsLatLon() {
		pattern = "*latlon*.json"
	}
	matches, err := afero.Glob(fs, filepath.Join(dir, pattern))
	if err != nil {
		return "", fmt.Errorf("refs: glob %s: %w", dir, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: no %s in %s", ErrNoReferenceFile, pattern, dir)
	}
	sort.Strings(matches)
	return matches[0], nil
}

// RangeReader reads byte ranges of stored objects. A negative length reads
// to the end.
type RangeReader interface {
	ReadRange(ctx context.Context, ref string, offset, length int64) ([]byte, error)
}

// Ref is one entry of a reference map: either inline data or a byte range
// of a stored object.
type Ref struct {
	Inline []byte
	URL    string
	Offset int64
	Length int64
}

// IsInline reports whether the data is held in the map itself.
func (r Ref) IsInline() bool {
	return r.URL == ""
}

// Map is a parsed kerchunk reference file.
type Map struct {
	refs map[string]Ref
}

type fileV1 struct {
	Version   int                        `json:"version"`
	Templates map[string]string          `json:"templates"`
	Refs      map[string]json.RawMessage `json:"refs"`
}

// Load parses the reference file at path. Both the versioned layout
// ({"version": 1, "refs": {...}}) and the bare key map are accepted.
func Load(fs afero.Fs, path string) (*Map, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("refs: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses reference file contents.
func Parse(data []byte) (*Map, error) {
	var head map[string]json.RawMessage
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var (
		raw       map[string]json.RawMessage
		templates map[string]string
	)
	if _, ok := head["version"]; ok {
		var f fileV1
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		if f.Version != 1 {
			return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalid, f.Version)
		}
		raw, templates = f.Refs, f.Templates
	} else {
		raw = head
	}

	m := &Map{refs: make(map[string]Ref, len(raw))}
	for key, v := range raw {
		ref, err := parseRef(v, templates)
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %v", ErrInvalid, key, err)
		}
		m.refs[key] = ref
	}
	return m, nil
}

func parseRef(v json.RawMessage, templates map[string]string) (Ref, error) {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if enc, ok := strings.CutPrefix(s, "base64:"); ok {
			b, err := base64.StdEncoding.DecodeString(enc)
			if err != nil {
				return Ref{}, err
			}
			return Ref{Inline: b}, nil
		}
		return Ref{Inline: []byte(s)}, nil
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(v, &parts); err != nil {
		return Ref{}, errors.New("want a string or an array")
	}
	if len(parts) != 1 && len(parts) != 3 {
		return Ref{}, fmt.Errorf("want [url] or [url, offset, length], got %d elements", len(parts))
	}

	var ref Ref
	if err := json.Unmarshal(parts[0], &ref.URL); err != nil {
		return Ref{}, fmt.Errorf("url: %v", err)
	}
	for name, val := range templates {
		ref.URL = strings.ReplaceAll(ref.URL, "{{"+name+"}}", val)
	}
	if ref.URL == "" {
		return Ref{}, errors.New("empty url")
	}

	ref.Length = -1
	if len(parts) == 3 {
		if err := json.Unmarshal(parts[1], &ref.Offset); err != nil {
			return Ref{}, fmt.Errorf("offset: %v", err)
		}
		if err := json.Unmarshal(parts[2], &ref.Length); err != nil {
			return Ref{}, fmt.Errorf("length: %v", err)
		}
		if ref.Offset < 0 || ref.Length < 0 {
			return Ref{}, fmt.Errorf("negative range %d+%d", ref.Offset, ref.Length)
		}
	}
	return ref, nil
}

// Keys returns all keys, sorted.
func (m *Map) Keys() []string {
	keys := make([]string, 0, len(m.refs))
	for k := range m.refs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of keys.
func (m *Map) Len() int {
	return len(m.refs)
}

// Ref returns the entry for key.
func (m *Map) Ref(key string) (Ref, bool) {
	r, ok := m.refs[key]
	return r, ok
}

// Get returns the bytes for key, reading remote ranges through r.
func (m *Map) Get(ctx context.Context, r RangeReader, key string) ([]byte, error) {
	ref, ok := m.refs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	if ref.IsInline() {
		return ref.Inline, nil
	}
	return r.ReadRange(ctx, ref.URL, ref.Offset, ref.Length)
}
