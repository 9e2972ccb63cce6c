package content

import (
	"encoding/json"
	"fmt"
	"path"
)

// AudioIndex resolves content identifiers to clip locations for one
// language.
type AudioIndex struct {
	dir   string
	files map[string]string
}

// ParseAudioIndex decodes an id → filename map. Clip locations are built
// as <audioDir>/<lang>/<filename>.
func ParseAudioIndex(data []byte, audioDir, lang string) (*AudioIndex, error) {
	files := map[string]string{}
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("unable to parse audio index: %w", err)
	}
	return NewAudioIndex(files, path.Join(audioDir, lang)), nil
}

// NewAudioIndex builds an index from a map of filenames relative to dir.
func NewAudioIndex(files map[string]string, dir string) *AudioIndex {
	return &AudioIndex{dir: dir, files: files}
}

// Src returns the clip location for id.
func (a *AudioIndex) Src(id string) (string, bool) {
	if a == nil {
		return "", false
	}
	f, ok := a.files[id]
	if !ok || f == "" {
		return "", false
	}
	return path.Join(a.dir, f), true
}

// Has reports whether id has a clip.
func (a *AudioIndex) Has(id string) bool {
	_, ok := a.Src(id)
	return ok
}

// IDs returns every identifier with a clip.
func (a *AudioIndex) IDs() []string {
	if a == nil {
		return nil
	}
	ids := make([]string, 0, len(a.files))
	for id := range a.files {
		ids = append(ids, id)
	}
	return ids
}
