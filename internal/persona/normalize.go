package persona

import (
	"strings"

	"github.com/apresai/personacall/internal/region"
)

// Generic defaults, used when neither the persona nor its regional profile
// supplies a value.
const (
	DefaultName           = "Participant"
	DefaultLocation       = "India"
	DefaultAge            = 30
	DefaultGender         = "unspecified"
	DefaultEducation      = "graduate"
	DefaultIncome         = "middle income"
	DefaultOccupation     = "working professional"
	DefaultArchetype      = "pragmatic"
	DefaultSentenceLength = "medium"
	DefaultQuestionStyle  = "direct"
	DefaultEnglishLevel   = "intermediate"
	DefaultNativeLanguage = "Hindi"
	DefaultAccent         = "Speak naturally with an Indian English accent"
	DefaultSpeechStyle    = "friendly and conversational"
	DefaultBaseline       = "neutral"
	DefaultComprehension  = "medium"
	DefaultTechSavviness  = "medium"
	DefaultScale          = 5
)

var (
	defaultAdjectives    = []string{"practical", "curious"}
	defaultFillerWords   = []string{"you know", "actually"}
	defaultCommonPhrases = []string{"I think", "to be honest"}
	defaultNativePhrases = []string{"Achha"}
	defaultCommonWords   = []string{"simple", "everyday"}
	defaultTriggers      = []string{"confusing screens", "slow responses"}
	defaultNotApplicable = []string{"N/A"}
)

// View is a fully-defaulted rendering of a Persona combined with its
// regional profile. Every field is populated.
type View struct {
	Name     string
	Location string
	Region   region.Code

	Age        int
	Gender     string
	Education  string
	Income     string
	Occupation string

	Archetype  string
	Adjectives []string

	SentenceLength string
	Formality      int
	QuestionStyle  string

	Accent         string
	SpeechStyle    string
	LanguageMix    string
	FillerWords    []string
	CommonPhrases  []string
	NativePhrases  []string
	EnglishLevel   string
	NativeLanguage string

	Complexity  int
	CommonWords []string

	Baseline string
	Triggers []string

	Patience      int
	Comprehension string

	Objectives      []string
	Frustrations    []string
	TechSavviness   string
	BackgroundStory string
}

// Normalize applies the precedence rule persona value > regional default >
// generic default to every field. p is not modified.
func Normalize(p Persona, prof region.Profile) View {
	sp := p.SpeechPatterns

	return View{
		Name:     str(p.Name, DefaultName),
		Location: str(p.Location, DefaultLocation),
		Region:   prof.Code,

		Age:        positive(p.Demographics.Age, DefaultAge),
		Gender:     str(p.Demographics.Gender, DefaultGender),
		Education:  str(p.Demographics.Education, DefaultEducation),
		Income:     str(p.Demographics.IncomeRange, DefaultIncome),
		Occupation: str(p.Demographics.Occupation, DefaultOccupation),

		Archetype:  str(p.Traits.Archetype, DefaultArchetype),
		Adjectives: list(p.Traits.Adjectives, defaultAdjectives),

		SentenceLength: str(p.CommunicationStyle.SentenceLength, DefaultSentenceLength),
		Formality:      scale(p.CommunicationStyle.Formality),
		QuestionStyle:  str(p.CommunicationStyle.QuestionStyle, DefaultQuestionStyle),

		Accent:         str(prof.Accent, DefaultAccent),
		SpeechStyle:    str(prof.SpeechStyle, DefaultSpeechStyle),
		LanguageMix:    strings.TrimSpace(prof.LanguageMix),
		FillerWords:    list(sp.FillerWords, clean(prof.FillerWords), defaultFillerWords),
		CommonPhrases:  list(sp.CommonPhrases, clean(prof.Phrases), defaultCommonPhrases),
		NativePhrases:  list(sp.NativePhrases, clean(prof.NativeWords), defaultNativePhrases),
		EnglishLevel:   str(sp.EnglishLevel, DefaultEnglishLevel),
		NativeLanguage: str(sp.NativeLanguage, str(prof.NativeLanguage, DefaultNativeLanguage)),

		Complexity:  scale(p.VocabularyProfile.Complexity),
		CommonWords: list(p.VocabularyProfile.CommonWords, defaultCommonWords),

		Baseline: str(p.EmotionalProfile.Baseline, DefaultBaseline),
		Triggers: list(p.EmotionalProfile.Triggers, defaultTriggers),

		Patience:      scale(p.CognitiveProfile.Patience),
		Comprehension: str(p.CognitiveProfile.ComprehensionSpeed, DefaultComprehension),

		Objectives:      list(p.Objectives, defaultNotApplicable),
		Frustrations:    list(p.Frustrations, defaultNotApplicable),
		TechSavviness:   str(p.TechSavviness, DefaultTechSavviness),
		BackgroundStory: strings.TrimSpace(p.BackgroundStory),
	}
}

func str(v, def string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return def
}

func positive(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// scale clamps a 1-10 score; zero or negative means unset.
func scale(v int) int {
	switch {
	case v <= 0:
		return DefaultScale
	case v > 10:
		return 10
	default:
		return v
	}
}

// list returns a copy of the first candidate with at least one non-blank entry.
func list(candidates ...[]string) []string {
	for _, c := range candidates {
		if cleaned := clean(c); len(cleaned) > 0 {
			return cleaned
		}
	}
	return nil
}

func clean(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
