package prompt

import (
	"fmt"
	"strings"
)

// Level is an English-proficiency level, ordered from least to most fluent.
type Level int

const (
	Beginner Level = iota
	Elementary
	Intermediate
	Advanced
	Expert
)

var levelNames = map[string]Level{
	"beginner":     Beginner,
	"elementary":   Elementary,
	"intermediate": Intermediate,
	"advanced":     Advanced,
	"expert":       Expert,

	// Survey labels used by older persona exports.
	"very low":  Beginner,
	"low":       Elementary,
	"medium":    Intermediate,
	"high":      Advanced,
	"very high": Expert,
}

// ParseLevel maps a recorded proficiency label to a Level. Anything
// unrecognized is Intermediate.
func ParseLevel(s string) Level {
	if l, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l
	}
	return Intermediate
}

func (l Level) String() string {
	switch l {
	case Beginner:
		return "beginner"
	case Elementary:
		return "elementary"
	case Advanced:
		return "advanced"
	case Expert:
		return "expert"
	default:
		return "intermediate"
	}
}

// MixingInstruction returns the language-mixing rule for a proficiency level.
// lang is the speaker's native language.
func MixingInstruction(level, lang string) string {
	if lang = strings.TrimSpace(lang); lang == "" {
		lang = "your native language"
	}

	switch ParseLevel(level) {
	case Beginner:
		return fmt.Sprintf("VERY HEAVY MIXING (4-5 native words per sentence) - You struggle with English and prefer %s. Use native language primarily, falling back to simple English words only when needed.", lang)
	case Elementary:
		return fmt.Sprintf("HEAVY MIXING (3-4 native words per sentence) - Your English is basic. Mix %s words freely into short English sentences.", lang)
	case Advanced:
		return fmt.Sprintf("LIGHT MIXING (occasional native words) - You speak English comfortably. Use %s words only for emphasis and emotions.", lang)
	case Expert:
		return fmt.Sprintf("MINIMAL MIXING (rare native words) - You are fluent in English. Use %s only for cultural expressions or emotions.", lang)
	default:
		return fmt.Sprintf("MODERATE MIXING (1-2 native words per sentence) - You are comfortable in English but naturally slip %s words into most sentences.", lang)
	}
}
