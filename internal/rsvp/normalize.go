package rsvp

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"wedding-rsvp/internal/models"
)

var (
	yesTokens = map[string]bool{"si": true, "sa-": true, "yes": true, "y": true}
	noTokens  = map[string]bool{"no": true, "n": true}
)

// FoldText lowers s and removes combining diacritics.
func FoldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// NormalizeAnswer maps the many ways an answer has been stored onto the
// display forms "Sí" and "No". Unknown values come back trimmed.
func NormalizeAnswer(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return ""
	}
	simplified := FoldText(base)
	switch {
	case yesTokens[simplified]:
		return models.DisplayYes
	case noTokens[simplified]:
		return models.DisplayNo
	}
	return base
}

// ParseAnswer maps free input onto the tri-state answer.
func ParseAnswer(raw string) models.Answer {
	switch NormalizeAnswer(raw) {
	case models.DisplayYes:
		return models.AnswerYes
	case models.DisplayNo:
		return models.AnswerNo
	}
	return models.AnswerUnset
}

type wireNoteMember struct {
	Name   models.LooseString `json:"name"`
	Answer models.LooseString `json:"answer"`
}

type wireNote struct {
	Members json.RawMessage `json:"members"`
	Extras  json.RawMessage `json:"extras"`
	Comment json.RawMessage `json:"comment"`
}

// ParseStoredNote parses the note column. Legacy free text becomes a raw
// comment; a JSON object becomes a structured note. Anything else is an empty
// structured note.
func ParseStoredNote(raw json.RawMessage) models.StoredNote {
	empty := models.StoredNote{Structured: &models.Note{}}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return empty
	}
	switch raw[0] {
	case '"':
		var text string
		if err := json.Unmarshal(raw, &text); err != nil || text == "" {
			return empty
		}
		inner := bytes.TrimSpace([]byte(text))
		if !json.Valid(inner) {
			return models.StoredNote{RawComment: text}
		}
		if len(inner) == 0 || inner[0] != '{' {
			return empty
		}
		return decodeStructuredNote(inner)
	case '{':
		return decodeStructuredNote(raw)
	}
	return empty
}

func decodeStructuredNote(data []byte) models.StoredNote {
	var w wireNote
	if err := json.Unmarshal(data, &w); err != nil {
		return models.StoredNote{Structured: &models.Note{}}
	}
	note := &models.Note{}
	// Only string comments count.
	_ = json.Unmarshal(w.Comment, &note.Comment)

	members := bytes.TrimSpace(w.Members)
	if len(members) > 0 && members[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(members, &list); err == nil {
			note.Members = make([]models.NoteMember, 0, len(list))
			for _, item := range list {
				var m wireNoteMember
				// Non-object entries keep empty fields.
				_ = json.Unmarshal(item, &m)
				note.Members = append(note.Members, models.NoteMember{
					Name:   string(m.Name),
					Answer: string(m.Answer),
				})
			}
		}
	}

	var extras models.LooseStrings
	if err := json.Unmarshal(w.Extras, &extras); err == nil && extras != nil {
		note.Extras = make([]string, 0, len(extras))
		for _, e := range extras {
			note.Extras = append(note.Extras, string(e))
		}
	}
	return models.StoredNote{Structured: note}
}

// EncodeNote serializes a note for the sheet's note column.
func EncodeNote(n models.Note) (string, error) {
	if n.Members == nil {
		n.Members = []models.NoteMember{}
	}
	if n.Extras == nil {
		n.Extras = []string{}
	}
	data, err := json.Marshal(n)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
