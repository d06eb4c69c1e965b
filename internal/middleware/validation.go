package middleware

import (
	"errors"
	"mime"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxTextLength bounds message and incoming text.
	MaxTextLength = 10000
	// MaxTranscriptLength bounds an imported transcript.
	MaxTranscriptLength = 1 << 20
	// MaxNameLength bounds a contact name.
	MaxNameLength = 256
	// MaxContactIDLength bounds a contact ID.
	MaxContactIDLength = 128
	// MaxBodyBytes bounds a JSON request body.
	MaxBodyBytes = MaxTranscriptLength + 64*1024
)

// ValidateText validates message text. Blank text is allowed; workflows
// treat it as a no-op.
func ValidateText(text string) error {
	if len(text) > MaxTextLength {
		return errors.New("text exceeds maximum length")
	}
	if !utf8.ValidString(text) {
		return errors.New("text must be valid UTF-8")
	}
	return nil
}

// ValidateTranscript validates an imported transcript.
func ValidateTranscript(transcript string) error {
	if len(transcript) > MaxTranscriptLength {
		return errors.New("transcript exceeds maximum length")
	}
	if !utf8.ValidString(transcript) {
		return errors.New("transcript must be valid UTF-8")
	}
	return nil
}

// ValidateName validates a contact name.
func ValidateName(name string) error {
	if len(name) > MaxNameLength {
		return errors.New("name exceeds maximum length")
	}
	if !utf8.ValidString(name) {
		return errors.New("name must be valid UTF-8")
	}
	return nil
}

// ValidateContactID validates a contact ID taken from the URL.
func ValidateContactID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("contact ID cannot be empty")
	}
	if len(id) > MaxContactIDLength {
		return errors.New("contact ID exceeds maximum length")
	}
	if strings.IndexFunc(id, unicode.IsControl) >= 0 {
		return errors.New("invalid contact ID format")
	}
	return nil
}

// RequireJSON rejects request bodies that are not application/json and caps
// the body size.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength != 0 && r.Body != nil && r.Body != http.NoBody {
			mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mt != "application/json" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				w.Write([]byte(`{"error":"content type must be application/json"}`))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}
