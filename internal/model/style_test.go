package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeutralProfile(t *testing.T) {
	p := NeutralProfile()
	assert.Equal(t, 50.0, p.Formality)
	assert.Equal(t, 50.0, p.Warmth)
	assert.Equal(t, 50.0, p.Humor)
	assert.Equal(t, 50.0, p.Brevity)
	assert.Equal(t, 0.0, p.EmojiUsage)
	assert.Empty(t, p.Keywords)
	assert.NotNil(t, p.Keywords)
	assert.Equal(t, "insufficient data", p.Description)
	require.NoError(t, p.Validate())
}

func TestValidate_OutOfRange(t *testing.T) {
	p := NeutralProfile()
	p.Humor = 140
	assert.Error(t, p.Validate())

	p = NeutralProfile()
	p.Warmth = math.NaN()
	assert.Error(t, p.Validate())

	p = NeutralProfile()
	p.Description = "  "
	assert.Error(t, p.Validate())
}

func TestNormalize(t *testing.T) {
	p := StyleProfile{
		Formality:   -3,
		Warmth:      250,
		Humor:       math.NaN(),
		Brevity:     40,
		EmojiUsage:  100,
		Keywords:    []string{" a ", "", "b", "c", "d", "e", "f"},
		Description: "  dry ",
	}.Normalize()

	assert.Equal(t, 0.0, p.Formality)
	assert.Equal(t, 100.0, p.Warmth)
	assert.Equal(t, 50.0, p.Humor)
	assert.Equal(t, 40.0, p.Brevity)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, p.Keywords)
	assert.Equal(t, "dry", p.Description)
	require.NoError(t, p.Validate())
}

func TestIsFormal(t *testing.T) {
	var nilProfile *StyleProfile
	assert.False(t, nilProfile.IsFormal())
	assert.False(t, (&StyleProfile{Formality: 50}).IsFormal())
	assert.True(t, (&StyleProfile{Formality: 51}).IsFormal())
}

func TestContactClone_Independent(t *testing.T) {
	c := Contact{
		ID:       "1",
		Messages: []Message{{ID: "m1", Sender: SenderSelf, Text: "hi"}},
		Style:    &StyleProfile{Keywords: []string{"hey"}},
	}
	cp := c.Clone()
	cp.Messages[0].Text = "changed"
	cp.Style.Keywords[0] = "changed"

	assert.Equal(t, "hi", c.Messages[0].Text)
	assert.Equal(t, "hey", c.Style.Keywords[0])
	assert.Equal(t, AnalysisIdle, cp.Analysis)
}

func TestContactHelpers(t *testing.T) {
	c := Contact{Messages: []Message{
		{ID: "1", Sender: SenderOther, Text: "a"},
		{ID: "2", Sender: SenderSelf, Text: "b"},
		{ID: "3", Sender: SenderOther, Text: "c"},
		{ID: "4", Sender: SenderSelf, Text: "d"},
	}}

	assert.Len(t, c.SelfMessages(), 2)
	assert.Equal(t, []Message{c.Messages[2], c.Messages[3]}, c.RecentMessages(2))
	assert.Len(t, c.RecentMessages(10), 4)

	last, ok := c.LastIncoming()
	require.True(t, ok)
	assert.Equal(t, "c", last.Text)

	_, ok = (&Contact{}).LastIncoming()
	assert.False(t, ok)
}

func TestStyleProfileClone_KeepsEmptyKeywords(t *testing.T) {
	p := NeutralProfile()
	c := p.Clone()
	require.NotNil(t, c.Keywords)

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"keywords":[]`)

	var nilKeywords *StyleProfile = &StyleProfile{Description: "x"}
	assert.Nil(t, nilKeywords.Clone().Keywords)

	p.Keywords = []string{"ok"}
	c = p.Clone()
	c.Keywords[0] = "changed"
	assert.Equal(t, "ok", p.Keywords[0])
}
