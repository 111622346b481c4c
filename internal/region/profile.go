package region

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var defaultProfiles []byte

// Profile holds the speech-style parameters for one region.
type Profile struct {
	Code           Code     `yaml:"code"`
	Accent         string   `yaml:"accent"`
	NativeLanguage string   `yaml:"native_language"`
	FillerWords    []string `yaml:"filler_words"`
	Phrases        []string `yaml:"phrases"`
	NativeWords    []string `yaml:"native_words"`
	// LanguageMix describes mixing intensity in free text.
	LanguageMix string `yaml:"language_mix"`
	SpeechStyle string `yaml:"speech_style"`

	// Voices maps a TTS provider name to the voice used for this region.
	Voices        map[string]string `yaml:"voices"`
	VoiceSettings VoiceSettings     `yaml:"voice_settings"`
}

// VoiceSettings tunes expressive TTS providers.
type VoiceSettings struct {
	Stability       float64 `yaml:"stability"`
	SimilarityBoost float64 `yaml:"similarity_boost"`
	Style           float64 `yaml:"style"`
	SpeakerBoost    bool    `yaml:"speaker_boost"`
}

// ConfigurationError reports a profile table that could not be loaded or is
// incomplete. It is fatal at startup.
type ConfigurationError struct {
	Source  string
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("region profiles (%s): %s: %v", e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("region profiles (%s): %s", e.Source, e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Table is a read-only set of profiles keyed by code.
type Table struct {
	profiles map[Code]Profile
	order    []Code
}

type tableFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// DefaultTable parses the embedded profile table.
func DefaultTable() (*Table, error) {
	return ParseTable("embedded", defaultProfiles)
}

// LoadTable reads a profile table from path. An empty path returns the
// embedded table.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return DefaultTable()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Source: path, Message: "read file", Err: err}
	}
	return ParseTable(path, data)
}

// ParseTable decodes and validates YAML profile data.
func ParseTable(source string, data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &ConfigurationError{Source: source, Message: "parse yaml", Err: err}
	}
	if len(f.Profiles) == 0 {
		return nil, &ConfigurationError{Source: source, Message: "no profiles defined"}
	}

	t := &Table{profiles: make(map[Code]Profile, len(f.Profiles))}
	for i, p := range f.Profiles {
		p.Code = Code(strings.ToLower(strings.TrimSpace(string(p.Code))))
		if p.Code == "" {
			return nil, &ConfigurationError{Source: source, Message: fmt.Sprintf("profile %d has no code", i)}
		}
		if _, dup := t.profiles[p.Code]; dup {
			return nil, &ConfigurationError{Source: source, Message: fmt.Sprintf("duplicate profile %q", p.Code)}
		}
		if strings.TrimSpace(p.Accent) == "" {
			return nil, &ConfigurationError{Source: source, Message: fmt.Sprintf("profile %q has no accent", p.Code)}
		}
		t.profiles[p.Code] = p
		t.order = append(t.order, p.Code)
	}

	var missing []string
	for _, c := range Codes {
		if _, ok := t.profiles[c]; !ok {
			missing = append(missing, string(c))
		}
	}
	if len(missing) > 0 {
		return nil, &ConfigurationError{Source: source, Message: "missing profiles: " + strings.Join(missing, ", ")}
	}
	return t, nil
}

// Lookup returns the profile for code, falling back to the default profile.
func (t *Table) Lookup(code Code) Profile {
	if p, ok := t.profiles[code]; ok {
		return p
	}
	return t.profiles[Default]
}

// Profiles returns all profiles in file order.
func (t *Table) Profiles() []Profile {
	out := make([]Profile, 0, len(t.order))
	for _, c := range t.order {
		out = append(out, t.profiles[c])
	}
	return out
}
