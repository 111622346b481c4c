package persona

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Persona is a structured profile of a simulated call participant. Records
// are produced by the extraction pipeline and never mutated here.
type Persona struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`

	Demographics       Demographics       `json:"demographics"`
	Traits             Traits             `json:"traits"`
	CommunicationStyle CommunicationStyle `json:"communication_style"`
	SpeechPatterns     SpeechPatterns     `json:"speech_patterns"`
	VocabularyProfile  VocabularyProfile  `json:"vocabulary_profile"`
	EmotionalProfile   EmotionalProfile   `json:"emotional_profile"`
	CognitiveProfile   CognitiveProfile   `json:"cognitive_profile"`

	Objectives      []string `json:"objectives,omitempty"`
	Frustrations    []string `json:"frustrations,omitempty"`
	TechSavviness   string   `json:"tech_savviness,omitempty"`
	BackgroundStory string   `json:"background_story,omitempty"`
}

type Demographics struct {
	Age         int    `json:"age,omitempty"`
	Gender      string `json:"gender,omitempty"`
	Education   string `json:"education,omitempty"`
	IncomeRange string `json:"income_range,omitempty"`
	Occupation  string `json:"occupation,omitempty"`
}

type Traits struct {
	Archetype  string   `json:"personality_archetype,omitempty"`
	Adjectives []string `json:"adjectives,omitempty"`
}

type CommunicationStyle struct {
	SentenceLength string `json:"sentence_length,omitempty"`
	Formality      int    `json:"formality,omitempty"` // 1-10
	QuestionStyle  string `json:"question_style,omitempty"`
}

type SpeechPatterns struct {
	FillerWords   []string `json:"filler_words,omitempty"`
	CommonPhrases []string `json:"common_phrases,omitempty"`
	NativePhrases []string `json:"native_phrases,omitempty"`
	// EnglishLevel is one of beginner, elementary, intermediate, advanced, expert.
	EnglishLevel   string `json:"english_level,omitempty"`
	NativeLanguage string `json:"native_language,omitempty"`
}

type VocabularyProfile struct {
	Complexity  int      `json:"complexity,omitempty"` // 1-10
	CommonWords []string `json:"common_words,omitempty"`
}

type EmotionalProfile struct {
	Baseline string   `json:"baseline,omitempty"`
	Triggers []string `json:"frustration_triggers,omitempty"`
}

type CognitiveProfile struct {
	Patience           int    `json:"patience,omitempty"` // 1-10
	ComprehensionSpeed string `json:"comprehension_speed,omitempty"`
}

// UnmarshalJSON decodes leniently. A sub-object with the wrong shape is left
// at its zero value, so normalization fills its defaults instead of the
// whole record failing to load. Ages may be numbers or numeric strings, and
// a top-level english_savvy stands in for a missing
// speech_patterns.english_level.
func (p *Persona) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("persona: %w", err)
	}

	var out Persona
	decode := func(key string, dst any) {
		raw, ok := fields[key]
		if !ok {
			return
		}
		_ = json.Unmarshal(raw, dst)
	}

	decode("id", &out.ID)
	decode("name", &out.Name)
	decode("location", &out.Location)
	decode("demographics", &out.Demographics)
	decode("traits", &out.Traits)
	decode("communication_style", &out.CommunicationStyle)
	decode("speech_patterns", &out.SpeechPatterns)
	decode("vocabulary_profile", &out.VocabularyProfile)
	decode("emotional_profile", &out.EmotionalProfile)
	decode("cognitive_profile", &out.CognitiveProfile)
	decode("objectives", &out.Objectives)
	decode("frustrations", &out.Frustrations)
	decode("tech_savviness", &out.TechSavviness)
	decode("background_story", &out.BackgroundStory)

	if out.Demographics.Age == 0 {
		var demo map[string]json.RawMessage
		decode("demographics", &demo)
		out.Demographics.Age = lenientInt(demo["age"])
	}
	if out.SpeechPatterns.EnglishLevel == "" {
		decode("english_savvy", &out.SpeechPatterns.EnglishLevel)
	}

	*p = out
	return nil
}

// lenientInt reads a JSON number or a string holding one. Anything else is 0.
func lenientInt(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		n = json.Number(strings.TrimSpace(s))
	}
	if v, err := n.Int64(); err == nil {
		return int(v)
	}
	if f, err := strconv.ParseFloat(n.String(), 64); err == nil {
		return int(f)
	}
	return 0
}

// ParseList decodes a JSON array of personas.
func ParseList(data []byte) ([]Persona, error) {
	var list []Persona
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse personas: %w", err)
	}
	return list, nil
}
