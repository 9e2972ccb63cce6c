package content

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the bundle descriptor at the bundle root.
const ManifestFile = "book.yml"

// TimecodeMode selects how word timestamps are loaded.
type TimecodeMode string

const (
	// TimecodesBulk loads i18n/<lang>/timecodes.json once per language.
	TimecodesBulk TimecodeMode = "bulk"

	// TimecodesLazy loads i18n/<lang>/timecodes/<id>.json on first use.
	TimecodesLazy TimecodeMode = "lazy"
)

// Manifest describes a textbook bundle.
type Manifest struct {
	Title           string       `yaml:"title"`
	Languages       []string     `yaml:"languages"`
	DefaultLanguage string       `yaml:"default_language"`
	Pages           []string     `yaml:"pages"`
	AudioDir        string       `yaml:"audio_dir"`
	I18nDir         string       `yaml:"i18n_dir"`
	Timecodes       TimecodeMode `yaml:"timecodes"`
}

// ParseManifest decodes a manifest and fills in defaults.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("unable to parse %s: %w", ManifestFile, err)
	}
	m.setDefaults()
	return m, m.validate()
}

func (m *Manifest) setDefaults() {
	if m.AudioDir == "" {
		m.AudioDir = "audio"
	}
	if m.I18nDir == "" {
		m.I18nDir = "i18n"
	}
	if m.Timecodes == "" {
		m.Timecodes = TimecodesBulk
	}
	if len(m.Languages) == 0 {
		m.Languages = []string{"en"}
	}
	if m.DefaultLanguage == "" {
		m.DefaultLanguage = m.Languages[0]
	}
}

func (m Manifest) validate() error {
	switch m.Timecodes {
	case TimecodesBulk, TimecodesLazy:
	default:
		return fmt.Errorf("unknown timecodes mode %q", m.Timecodes)
	}
	if !m.HasLanguage(m.DefaultLanguage) {
		return fmt.Errorf("default language %q is not listed in languages", m.DefaultLanguage)
	}
	return nil
}

// HasLanguage reports whether lang is offered by the bundle.
func (m Manifest) HasLanguage(lang string) bool {
	for _, l := range m.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// NextLanguage returns the language after lang, wrapping around.
func (m Manifest) NextLanguage(lang string) string {
	for i, l := range m.Languages {
		if l == lang {
			return m.Languages[(i+1)%len(m.Languages)]
		}
	}
	return m.DefaultLanguage
}
