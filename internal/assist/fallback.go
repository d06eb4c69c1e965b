package assist

import (
	"strings"

	"github.com/capitalize-ai/stylemirror/internal/model"
)

var (
	professionalMarkers = []string{"boss", "mr", "mrs"}
	familyMarkers       = []string{"mom", "dad"}
	laughterTokens      = []string{"lol", "haha"}
	meetingTokens       = []string{"call", "meet"}
)

// Canned replies used when the inference service cannot answer.
const (
	ReplyClarifyFormal = "I will look into that and get back to you shortly."
	ReplyClarifyCasual = "Idk tbh, lemme check! 🤔"
	ReplyLaugh         = "LMAO right?? 💀"
	ReplyMeetFormal    = "I am available at 2 PM."
	ReplyMeetCasual    = "Yeah sure! I'm free whenever."
	ReplyAckFormal     = "Acknowledged. Thank you."
	ReplyAckCasual     = "Sounds good!"
)

// MockProfile returns a canned profile picked from markers in the contact name.
// Professional markers win over family markers.
func MockProfile(contactName string) model.StyleProfile {
	name := strings.ToLower(contactName)

	switch {
	case containsAny(name, professionalMarkers):
		return model.StyleProfile{
			Formality:   85,
			Warmth:      30,
			Humor:       15,
			Brevity:     70,
			EmojiUsage:  5,
			Keywords:    []string{"Certainly", "Will do", "Thanks", "Report", "Meeting"},
			Description: "Professional, concise, and respectful. You avoid slang and keep messages work-focused.",
		}
	case containsAny(name, familyMarkers):
		return model.StyleProfile{
			Formality:   20,
			Warmth:      95,
			Humor:       60,
			Brevity:     40,
			EmojiUsage:  60,
			Keywords:    []string{"Love you", "Ok", "Call me", "Home", "Soon"},
			Description: "Warm and affectionate. You prioritize connection and frequent updates.",
		}
	default:
		return model.StyleProfile{
			Formality:   15,
			Warmth:      80,
			Humor:       85,
			Brevity:     30,
			EmojiUsage:  90,
			Keywords:    []string{"Omg", "Literally", "Dead", "Rn", "Lmao"},
			Description: "Highly casual and expressive. You use internet slang, lots of emojis, and an energetic tone.",
		}
	}
}

// MockReply picks a canned reply by keyword. It is total: every input gets a
// non-empty reply.
func MockReply(incoming string, style *model.StyleProfile) string {
	text := strings.ToLower(incoming)
	formal := style.IsFormal()

	switch {
	case strings.Contains(text, "?"):
		return pick(formal, ReplyClarifyFormal, ReplyClarifyCasual)
	case containsAny(text, laughterTokens):
		return ReplyLaugh
	case containsAny(text, meetingTokens):
		return pick(formal, ReplyMeetFormal, ReplyMeetCasual)
	default:
		return pick(formal, ReplyAckFormal, ReplyAckCasual)
	}
}

func pick(formal bool, formalReply, casualReply string) string {
	if formal {
		return formalReply
	}
	return casualReply
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
