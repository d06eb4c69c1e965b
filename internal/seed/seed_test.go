package seed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/stylemirror/internal/model"
)

func TestDefault(t *testing.T) {
	contacts, err := Default()
	require.NoError(t, err)
	require.Len(t, contacts, 3)

	assert.Equal(t, "Sarah (Bestie)", contacts[0].Name)
	assert.Equal(t, "Mr. Johnson (Boss)", contacts[1].Name)
	assert.Equal(t, "Mom", contacts[2].Name)

	sarah := contacts[0]
	require.Len(t, sarah.Messages, 6)
	assert.Equal(t, model.SenderOther, sarah.Messages[0].Sender)
	assert.Equal(t, "sarah-1", sarah.Messages[0].ID)
	assert.Len(t, sarah.SelfMessages(), 3)
	assert.True(t, sarah.Messages[0].Timestamp.Before(sarah.Messages[5].Timestamp))

	for _, c := range contacts {
		assert.Nil(t, c.Style)
		assert.NotEmpty(t, c.AvatarURL)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.toml")
	data := `
[[contact]]
id = "a"
name = "Alex"

  [[contact.message]]
  sender = "self"
  text = "yo"
  timestamp = 2024-01-01T00:00:00Z
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	contacts, err := Load(path)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "https://ui-avatars.com/api/?name=Alex&background=random", contacts[0].AvatarURL)
	assert.Equal(t, "yo", contacts[0].Messages[0].Text)
}

func TestLoad_EmptyPathUsesDefault(t *testing.T) {
	contacts, err := Load("")
	require.NoError(t, err)
	assert.Len(t, contacts, 3)
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"bad toml":     `[[contact`,
		"missing name": "[[contact]]\nid = \"a\"",
		"duplicate id": "[[contact]]\nid = \"a\"\nname = \"A\"\n[[contact]]\nid = \"a\"\nname = \"B\"",
		"bad sender":   "[[contact]]\nid = \"a\"\nname = \"A\"\n[[contact.message]]\nsender = \"them\"\ntext = \"x\"",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(data)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
