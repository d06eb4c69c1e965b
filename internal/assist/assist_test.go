package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/stylemirror/internal/llm"
	"github.com/capitalize-ai/stylemirror/internal/model"
	"github.com/capitalize-ai/stylemirror/pkg/logger"
)

type fakeBackend struct {
	profile    model.StyleProfile
	reply      string
	err        error
	styleCalls atomic.Int32
	replyCalls atomic.Int32
	lastPrompt string
}

func (f *fakeBackend) InferStyle(ctx context.Context, contactName, selfText string) (model.StyleProfile, error) {
	f.styleCalls.Add(1)
	return f.profile, f.err
}

func (f *fakeBackend) ContinueText(ctx context.Context, prompt string) (string, error) {
	f.replyCalls.Add(1)
	f.lastPrompt = prompt
	return f.reply, f.err
}

func msgs(pairs ...string) []model.Message {
	out := make([]model.Message, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		sender := model.SenderOther
		if pairs[i] == "me" {
			sender = model.SenderSelf
		}
		out = append(out, model.Message{ID: fmt.Sprint(i), Sender: sender, Text: pairs[i+1]})
	}
	return out
}

func TestAnalyzeStyle_NeutralWithoutSelfMessages(t *testing.T) {
	fb := &fakeBackend{}
	for _, backend := range []Backend{nil, fb} {
		c := NewStyleClient(backend, logger.NewNop())
		got := c.AnalyzeStyle(context.Background(), "Mr. Johnson", msgs("them", "hi", "them", "you there?"))
		assert.Equal(t, model.NeutralProfile(), got)
	}
	assert.Zero(t, fb.styleCalls.Load(), "neutral path must not contact the service")
}

func TestAnalyzeStyle_NoCredentialUsesMock(t *testing.T) {
	c := NewStyleClient(nil, logger.NewNop())
	got := c.AnalyzeStyle(context.Background(), "Mom", msgs("me", "love you"))
	assert.Equal(t, MockProfile("Mom"), got)
	assert.NoError(t, got.Validate())
}

func TestAnalyzeStyle_ServiceFailureUsesMock(t *testing.T) {
	fb := &fakeBackend{err: errors.New("quota exceeded")}
	c := NewStyleClient(fb, logger.NewNop())

	got := c.AnalyzeStyle(context.Background(), "My Boss", msgs("me", "Will do."))
	assert.Equal(t, MockProfile("My Boss"), got)
	assert.EqualValues(t, 1, fb.styleCalls.Load())
}

func TestAnalyzeStyle_LiveResult(t *testing.T) {
	live := model.StyleProfile{Formality: 42, Warmth: 60, Humor: 10, Brevity: 90, EmojiUsage: 3,
		Keywords: []string{"ok"}, Description: "Terse."}
	fb := &fakeBackend{profile: live}
	c := NewStyleClient(fb, logger.NewNop())

	got := c.AnalyzeStyle(context.Background(), "Sarah", msgs("me", "ok", "them", "cool"))
	assert.Equal(t, live, got)
}

func TestMockProfile_Markers(t *testing.T) {
	for _, name := range []string{"Mr. Johnson (Boss)", "boss", "Mrs. Smith", "THE BOSS"} {
		p := MockProfile(name)
		assert.GreaterOrEqual(t, p.Formality, 70.0, name)
		assert.LessOrEqual(t, p.Warmth, 40.0, name)
		assert.NoError(t, p.Validate(), name)
	}
	for _, name := range []string{"Mom", "dad", "Grandma's Mom"} {
		p := MockProfile(name)
		assert.GreaterOrEqual(t, p.Warmth, 80.0, name)
		assert.NoError(t, p.Validate(), name)
	}

	casual := MockProfile("Sarah (Bestie)")
	assert.Equal(t, 90.0, casual.EmojiUsage)
	assert.Len(t, casual.Keywords, 5)

	// professional is checked first
	assert.Equal(t, 85.0, MockProfile("Mr. Dad").Formality)
}

func TestMockReply(t *testing.T) {
	formal := &model.StyleProfile{Formality: 80}
	casual := &model.StyleProfile{Formality: 10}
	edge := &model.StyleProfile{Formality: 50}

	tests := []struct {
		name     string
		incoming string
		style    *model.StyleProfile
		want     string
	}{
		{"question formal", "Can you send the report?", formal, ReplyClarifyFormal},
		{"question casual", "wyd?", casual, ReplyClarifyCasual},
		{"question no profile", "wyd?", nil, ReplyClarifyCasual},
		{"laughter", "HAHA that's wild", formal, ReplyLaugh},
		{"lol", "lol", casual, ReplyLaugh},
		{"meet formal", "Let's meet tomorrow", formal, ReplyMeetFormal},
		{"call casual", "call me later", casual, ReplyMeetCasual},
		{"ack formal", "Report is done.", formal, ReplyAckFormal},
		{"ack casual", "k", casual, ReplyAckCasual},
		{"formality 50 is casual", "noted", edge, ReplyAckCasual},
		{"question beats laughter", "lol really?", casual, ReplyClarifyCasual},
		{"empty input", "", nil, ReplyAckCasual},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MockReply(tt.incoming, tt.style))
		})
	}
}

func TestGenerateReply_Fallbacks(t *testing.T) {
	contact := model.Contact{ID: "c1", Name: "Mr. Johnson", Style: &model.StyleProfile{Formality: 80}}

	tests := []struct {
		name    string
		backend Backend
	}{
		{"no credential", nil},
		{"service failure", &fakeBackend{err: errors.New("network down")}},
		{"empty reply", &fakeBackend{reply: "   "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewReplyClient(tt.backend, logger.NewNop())
			got := c.GenerateReply(context.Background(), contact, "Is the deck ready?")
			assert.Equal(t, ReplyClarifyFormal, got)
		})
	}
}

func TestGenerateReply_Live(t *testing.T) {
	fb := &fakeBackend{reply: "  on my way  "}
	c := NewReplyClient(fb, logger.NewNop())

	got := c.GenerateReply(context.Background(), model.Contact{ID: "c1", Name: "Sarah"}, "where r u")
	assert.Equal(t, "on my way", got)
	assert.Contains(t, fb.lastPrompt, noStyleDirective)
	assert.Contains(t, fb.lastPrompt, `"where r u"`)
}

func TestReplyPrompt_HistoryWindowAndStyle(t *testing.T) {
	var history []model.Message
	for i := 0; i < 15; i++ {
		sender := model.SenderOther
		if i%2 == 0 {
			sender = model.SenderSelf
		}
		history = append(history, model.Message{Sender: sender, Text: fmt.Sprintf("msg-%02d", i)})
	}
	contact := model.Contact{
		Name:     "Sarah",
		Messages: history,
		Style:    &model.StyleProfile{Formality: 15, Humor: 85, EmojiUsage: 90, Brevity: 30, Description: "Casual."},
	}

	prompt := ReplyPrompt(contact, "omg")

	assert.NotContains(t, prompt, "msg-04")
	assert.Contains(t, prompt, "Sarah: msg-05")
	assert.Contains(t, prompt, "Me: msg-14")
	assert.Contains(t, prompt, "My usual style with Sarah is: Casual. Stats - Formality: 15, Humor: 85, Emoji Usage: 90, Brevity: 30.")
	assert.NotContains(t, prompt, noStyleDirective)
}

func TestParseStyle(t *testing.T) {
	good := `{"formality": 120, "warmth": 40, "humor": -3, "brevity": 50, "emojiUsage": 10,
		"keywords": ["ok", " ", "sure", "k", "yep", "np", "ty"], "description": " Short and direct. "}`

	p, err := ParseStyle("```json\n" + good + "\n```")
	require.NoError(t, err)
	assert.Equal(t, 100.0, p.Formality)
	assert.Equal(t, 0.0, p.Humor)
	assert.Equal(t, []string{"ok", "sure", "k", "yep", "np"}, p.Keywords)
	assert.Equal(t, "Short and direct.", p.Description)

	bad := []string{
		"not json",
		`{"warmth": 1, "humor": 1, "brevity": 1, "emojiUsage": 1, "description": "x"}`,
		`{"formality": 1, "warmth": 1, "humor": 1, "brevity": 1, "emojiUsage": 1, "description": ""}`,
	}
	for _, raw := range bad {
		_, err := ParseStyle(raw)
		assert.Error(t, err, raw)
	}
}

type fakeLLM struct {
	content string
	err     error
	last    *llm.CompletionRequest
}

func (f *fakeLLM) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.content, Model: "fake-model", TokensIn: 1, TokensOut: 1}, nil
}

func (f *fakeLLM) Name() string     { return "fake" }
func (f *fakeLLM) Models() []string { return []string{"fake-model"} }

func TestLLMBackend_InferStyle(t *testing.T) {
	client := &fakeLLM{content: `{"formality": 30, "warmth": 70, "humor": 50, "brevity": 60, "emojiUsage": 20,
		"keywords": ["haha"], "description": "Friendly."}`}
	b := NewLLMBackend(client)

	p, err := b.InferStyle(context.Background(), "Sarah", "haha ok\nsee u")
	require.NoError(t, err)
	assert.Equal(t, 70.0, p.Warmth)

	require.NotNil(t, client.last.Schema)
	assert.ElementsMatch(t, StyleSchema().Required, client.last.Schema.Required)
	require.Len(t, client.last.Messages, 1)
	assert.True(t, strings.Contains(client.last.Messages[0].Content, "haha ok\nsee u"))
	assert.Contains(t, client.last.Messages[0].Content, `"Sarah"`)
}

func TestLLMBackend_Errors(t *testing.T) {
	b := NewLLMBackend(&fakeLLM{err: errors.New("boom")})
	_, err := b.InferStyle(context.Background(), "Sarah", "hi")
	assert.ErrorContains(t, err, "boom")

	_, err = b.ContinueText(context.Background(), "prompt")
	assert.Error(t, err)

	b = NewLLMBackend(&fakeLLM{content: "garbage"})
	_, err = b.InferStyle(context.Background(), "Sarah", "hi")
	assert.Error(t, err)
}

func TestNewBackend_DemoModeWithoutKey(t *testing.T) {
	b, err := NewBackend(context.Background(), llm.ProviderGemini, llm.Config{})
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = NewBackend(context.Background(), llm.ProviderOpenAI, llm.Config{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.IsType(t, &LLMBackend{}, b)
}
