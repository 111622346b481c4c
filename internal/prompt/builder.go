package prompt

import (
	"fmt"
	"strings"

	"github.com/apresai/personacall/internal/persona"
	"github.com/apresai/personacall/internal/region"
)

// DefaultTopic replaces an empty call topic.
const DefaultTopic = "product feedback"

// DefaultBriefWords bounds the reference material embedded in a prompt.
const DefaultBriefWords = 400

// forbiddenPhrases are assistant-style openers that break the illusion of a
// real participant.
var forbiddenPhrases = []string{
	"How can I help you",
	"I'd be happy to help",
	"As an AI",
	"Great question",
	"Is there anything else",
	"I understand your concern",
}

// ForbiddenPhrases returns the assistant-style phrases a persona must never use.
func ForbiddenPhrases() []string {
	out := make([]string, len(forbiddenPhrases))
	copy(out, forbiddenPhrases)
	return out
}

// Builder renders persona instructions. The zero value is ready to use.
type Builder struct {
	// Brief is optional reference material the participant has seen.
	Brief      string
	BriefWords int
}

// Build renders the generation instructions for p with no brief.
func Build(p persona.Persona, prof region.Profile, topic string) string {
	return Builder{}.Build(p, prof, topic)
}

// Build renders the generation instructions for p. Identical inputs always
// produce identical output.
func (b Builder) Build(p persona.Persona, prof region.Profile, topic string) string {
	v := persona.Normalize(p, prof)
	if topic = strings.TrimSpace(topic); topic == "" {
		topic = DefaultTopic
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "You are %s, participating in a user research call about %s.\n", v.Name, topic)
	sb.WriteString("You are a real person, not an assistant. Stay in character for the whole call.\n\n")

	sb.WriteString("WHO YOU ARE:\n")
	fmt.Fprintf(&sb, "- %d years old, %s, from %s\n", v.Age, v.Gender, v.Location)
	fmt.Fprintf(&sb, "- Works as: %s\n", v.Occupation)
	fmt.Fprintf(&sb, "- Education: %s; income: %s\n", v.Education, v.Income)
	fmt.Fprintf(&sb, "- Personality: %s (%s)\n", v.Archetype, strings.Join(v.Adjectives, ", "))
	fmt.Fprintf(&sb, "- Tech savviness: %s\n", v.TechSavviness)
	if v.BackgroundStory != "" {
		fmt.Fprintf(&sb, "- Background: %s\n", v.BackgroundStory)
	}
	sb.WriteString("\n")

	sb.WriteString("HOW YOU SPEAK:\n")
	fmt.Fprintf(&sb, "- Accent: %s\n", v.Accent)
	fmt.Fprintf(&sb, "- Speaking style: %s\n", v.SpeechStyle)
	fmt.Fprintf(&sb, "- Sentence length: %s; formality: %d/10; question style: %s\n", v.SentenceLength, v.Formality, v.QuestionStyle)
	fmt.Fprintf(&sb, "- Filler words you use: %s\n", quoteJoin(v.FillerWords))
	fmt.Fprintf(&sb, "- Phrases you often say: %s\n", quoteJoin(v.CommonPhrases))
	fmt.Fprintf(&sb, "- %s words and phrases you use: %s\n", v.NativeLanguage, quoteJoin(v.NativePhrases))
	sb.WriteString("\n")

	sb.WriteString("LANGUAGE MIXING:\n")
	fmt.Fprintf(&sb, "- English level: %s\n", ParseLevel(v.EnglishLevel))
	fmt.Fprintf(&sb, "- Rule: %s\n", MixingInstruction(v.EnglishLevel, v.NativeLanguage))
	if v.LanguageMix != "" {
		fmt.Fprintf(&sb, "- Regional flavour: %s\n", v.LanguageMix)
	}
	sb.WriteString("\n")

	sb.WriteString("VOCABULARY:\n")
	fmt.Fprintf(&sb, "- Complexity: %d/10\n", v.Complexity)
	fmt.Fprintf(&sb, "- Words you reach for: %s\n\n", strings.Join(v.CommonWords, ", "))

	sb.WriteString("EMOTIONAL AND COGNITIVE PROFILE:\n")
	fmt.Fprintf(&sb, "- Baseline mood: %s\n", v.Baseline)
	fmt.Fprintf(&sb, "- Gets frustrated by: %s\n", strings.Join(v.Triggers, ", "))
	fmt.Fprintf(&sb, "- Patience: %d/10; comprehension speed: %s\n\n", v.Patience, v.Comprehension)

	sb.WriteString("WHAT YOU WANT:\n")
	fmt.Fprintf(&sb, "- Objectives: %s\n", strings.Join(v.Objectives, "; "))
	fmt.Fprintf(&sb, "- Frustrations: %s\n\n", strings.Join(v.Frustrations, "; "))

	if brief := excerpt(b.Brief, b.BriefWords); brief != "" {
		sb.WriteString("WHAT YOU HAVE SEEN:\n")
		sb.WriteString(brief)
		sb.WriteString("\n\n")
	}

	sb.WriteString("RULES:\n")
	sb.WriteString("1. Reply in 2-3 sentences at most, like spoken conversation\n")
	sb.WriteString("2. Use contractions and your filler words naturally; do not sound robotic or scripted\n")
	sb.WriteString("3. Give your honest opinion from your own experience, including doubts and complaints\n")
	sb.WriteString("4. Follow the language mixing rule above\n")
	sb.WriteString("5. Never say you are an AI or a language model\n")
	fmt.Fprintf(&sb, "6. Never use assistant phrases such as %s\n", quoteJoin(forbiddenPhrases))
	sb.WriteString("7. Output only your spoken words: no name label, no quotes, no stage directions")

	return sb.String()
}

// UserMessage wraps an interviewer utterance for the completion request.
func UserMessage(utterance string) string {
	return fmt.Sprintf("The interviewer just said: %q\n\nRespond naturally, in character.", strings.TrimSpace(utterance))
}

func quoteJoin(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = `"` + s + `"`
	}
	return strings.Join(quoted, ", ")
}

// excerpt returns at most n words of text; n <= 0 means DefaultBriefWords.
func excerpt(text string, n int) string {
	if n <= 0 {
		n = DefaultBriefWords
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	if len(words) > n {
		return strings.Join(words[:n], " ") + " ..."
	}
	return strings.Join(words, " ")
}
