package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	// MinScore and MaxScore bound every StyleProfile score.
	MinScore = 0
	MaxScore = 100

	// MaxKeywords is the most keywords a profile keeps.
	MaxKeywords = 5
)

// StyleProfile summarises how the user writes to one contact.
type StyleProfile struct {
	Formality   float64  `json:"formality"`
	Warmth      float64  `json:"warmth"`
	Humor       float64  `json:"humor"`
	Brevity     float64  `json:"brevity"` // 100 is very brief
	EmojiUsage  float64  `json:"emojiUsage"`
	Keywords    []string `json:"keywords"`
	Description string   `json:"description"`
}

// NeutralProfile is returned when there is nothing the user wrote to learn from.
func NeutralProfile() StyleProfile {
	return StyleProfile{
		Formality:   50,
		Warmth:      50,
		Humor:       50,
		Brevity:     50,
		EmojiUsage:  0,
		Keywords:    []string{},
		Description: "insufficient data",
	}
}

// Validate reports whether the profile has the shape of a real inference result.
func (p StyleProfile) Validate() error {
	scores := map[string]float64{
		"formality":  p.Formality,
		"warmth":     p.Warmth,
		"humor":      p.Humor,
		"brevity":    p.Brevity,
		"emojiUsage": p.EmojiUsage,
	}
	for name, v := range scores {
		if math.IsNaN(v) || v < MinScore || v > MaxScore {
			return fmt.Errorf("%s score %v out of range", name, v)
		}
	}
	if strings.TrimSpace(p.Description) == "" {
		return errors.New("description is empty")
	}
	return nil
}

// Normalize clamps scores into range, drops blank keywords and caps the keyword list.
func (p StyleProfile) Normalize() StyleProfile {
	p.Formality = clampScore(p.Formality)
	p.Warmth = clampScore(p.Warmth)
	p.Humor = clampScore(p.Humor)
	p.Brevity = clampScore(p.Brevity)
	p.EmojiUsage = clampScore(p.EmojiUsage)

	keywords := make([]string, 0, len(p.Keywords))
	for _, k := range p.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
		if len(keywords) == MaxKeywords {
			break
		}
	}
	p.Keywords = keywords
	p.Description = strings.TrimSpace(p.Description)
	return p
}

// IsFormal reports whether replies should use the formal register.
func (p *StyleProfile) IsFormal() bool {
	return p != nil && p.Formality > 50
}

// Clone returns a deep copy.
func (p *StyleProfile) Clone() *StyleProfile {
	if p == nil {
		return nil
	}
	c := *p
	if p.Keywords != nil {
		c.Keywords = append(make([]string, 0, len(p.Keywords)), p.Keywords...)
	}
	return &c
}

func clampScore(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 50
	case v < MinScore:
		return MinScore
	case v > MaxScore:
		return MaxScore
	}
	return v
}
