package call

import "github.com/apresai/personacall/internal/persona"

// Session is a live call: its participants in join order and what it is
// about. An empty Topic falls back to prompt.DefaultTopic.
type Session struct {
	ID           string
	Topic        string
	Mode         Mode
	Participants []persona.Persona
	Brief        string
}

// Turn builds the turn for one utterance spoken in s.
func (s Session) Turn(utterance string) Turn {
	return Turn{
		SessionID:    s.ID,
		Utterance:    utterance,
		Mode:         s.Mode,
		Participants: s.Participants,
		Topic:        s.Topic,
		Brief:        s.Brief,
	}
}
