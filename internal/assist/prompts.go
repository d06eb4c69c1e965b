package assist

import (
	"fmt"
	"strings"

	"github.com/capitalize-ai/stylemirror/internal/llm"
	"github.com/capitalize-ai/stylemirror/internal/model"
)

// HistoryWindow is how many recent messages a reply prompt carries.
const HistoryWindow = 10

const styleSystemPrompt = `You analyze how a person writes text messages to one specific contact.
Score each dimension from 0 to 100 and answer with a single JSON object only.`

const styleUserPrompt = `Analyze the following messages sent by a user to their contact named %q.
Determine the user's communication style specifically for this relationship.

Messages:
%s`

const replyPrompt = `You are acting as 'Me'. You need to reply to a text from %[1]s.

History of conversation:
%[2]s

New Incoming Message from %[1]s:
%[3]q

Directives:
1. %[4]s
2. Maintain the established tone (e.g., if I usually use lowercase or specific slang, do that).
3. If brevity is high, keep it short.
4. Provide ONLY the text of the reply, no quotes or explanations.`

const noStyleDirective = "Respond naturally based on the conversation history."

// StyleSchema is the structured output requested for style inference.
func StyleSchema() *llm.Schema {
	return &llm.Schema{
		Type: llm.TypeObject,
		Properties: map[string]*llm.Schema{
			"formality":   llm.Number("0-100 score (100 is very formal)", model.MinScore, model.MaxScore),
			"warmth":      llm.Number("0-100 score (100 is very warm)", model.MinScore, model.MaxScore),
			"humor":       llm.Number("0-100 score (100 is very humorous)", model.MinScore, model.MaxScore),
			"brevity":     llm.Number("0-100 score (100 is very brief/short messages)", model.MinScore, model.MaxScore),
			"emojiUsage":  llm.Number("0-100 score for frequency of emoji use", model.MinScore, model.MaxScore),
			"keywords":    llm.ArrayOf(llm.String(""), "List of 3-5 frequent characteristic words or phrases"),
			"description": llm.String("A concise qualitative description of the communication persona."),
		},
		Required: []string{"formality", "warmth", "humor", "brevity", "emojiUsage", "keywords", "description"},
	}
}

// StylePrompt is the user turn of a style inference request.
func StylePrompt(contactName, selfText string) string {
	return fmt.Sprintf(styleUserPrompt, contactName, selfText)
}

// ReplyPrompt builds the reply-generation prompt from the contact's name,
// its last HistoryWindow messages and its style profile, if any.
func ReplyPrompt(contact model.Contact, incoming string) string {
	recent := contact.RecentMessages(HistoryWindow)
	history := make([]string, len(recent))
	for i, m := range recent {
		speaker := contact.Name
		if m.Sender == model.SenderSelf {
			speaker = "Me"
		}
		history[i] = speaker + ": " + m.Text
	}

	return fmt.Sprintf(replyPrompt,
		contact.Name,
		strings.Join(history, "\n"),
		incoming,
		styleDirective(contact.Name, contact.Style),
	)
}

func styleDirective(name string, style *model.StyleProfile) string {
	if style == nil {
		return noStyleDirective
	}
	return fmt.Sprintf("My usual style with %s is: %s. Stats - Formality: %g, Humor: %g, Emoji Usage: %g, Brevity: %g.",
		name,
		strings.TrimSuffix(style.Description, "."),
		style.Formality, style.Humor, style.EmojiUsage, style.Brevity,
	)
}

func selfText(messages []model.Message) string {
	self := model.FilterSender(messages, model.SenderSelf)
	lines := make([]string, 0, len(self))
	for _, m := range self {
		lines = append(lines, m.Text)
	}
	return strings.Join(lines, "\n")
}
