package call

import (
	"regexp"
	"strings"

	"github.com/apresai/personacall/internal/prompt"
)

var (
	fenceRe = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\n?(.*?)\n?```")
	// *laughs*, [pause]
	stageRe = regexp.MustCompile(`\*[^*\n]{1,40}\*|\[[^\]\n]{1,40}\]`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// cleanResponse turns raw completion text into speakable text. name is the
// responder's name, stripped if the model echoed it as a speaker label.
func cleanResponse(text, name string) string {
	text = strings.TrimSpace(text)
	if m := fenceRe.FindStringSubmatch(text); len(m) > 1 {
		text = m[1]
	}
	text = stageRe.ReplaceAllString(text, "")
	text = spaceRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	for _, label := range speakerLabels(name) {
		if len(text) > len(label) && strings.EqualFold(text[:len(label)], label) {
			text = strings.TrimSpace(text[len(label):])
			break
		}
	}

	return strings.TrimSpace(strings.Trim(text, `"“”`))
}

func speakerLabels(name string) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	labels := []string{name + ":"}
	if first, _, ok := strings.Cut(name, " "); ok {
		labels = append(labels, first+":")
	}
	return labels
}

// assistantSpeak returns the first forbidden assistant phrase found in text.
func assistantSpeak(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, phrase := range prompt.ForbiddenPhrases() {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return phrase, true
		}
	}
	return "", false
}
