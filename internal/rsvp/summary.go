package rsvp

import (
	"bytes"
	"encoding/json"
	"strings"

	"wedding-rsvp/internal/models"
)

// BuildSummary turns a stored status row into the read-model shown to the
// guest. Confirmed is always recomputed from the members and extras; Guests
// keeps the stored count when the sheet has a number for it.
func BuildSummary(raw models.RawStatus, fallbackName string) models.StatusSummary {
	parsed := ParseStoredNote(raw.Note)

	var members []models.NoteMember
	for _, m := range parsed.Members() {
		name := m.Name
		if name == "" {
			name = fallbackName
		}
		members = append(members, models.NoteMember{Name: name, Answer: NormalizeAnswer(m.Answer)})
	}
	if len(members) == 0 {
		switch {
		case raw.Name != "":
			members = []models.NoteMember{{Name: string(raw.Name), Answer: NormalizeAnswer(string(raw.Answer))}}
		case fallbackName != "":
			members = []models.NoteMember{{Name: fallbackName, Answer: NormalizeAnswer(string(raw.Answer))}}
		}
	}
	if members == nil {
		members = []models.NoteMember{}
	}

	extras := parsed.Extras()
	if extras == nil {
		extras = []string{}
	}

	comment := strings.TrimSpace(parsed.Comment())
	if comment == "" {
		if text, ok := noteText(raw.Note); ok && parsed.Members() == nil {
			comment = text
		}
	}

	confirmedMembers := 0
	for _, m := range members {
		if m.Answer == models.DisplayYes {
			confirmedMembers++
		}
	}
	confirmed := confirmedMembers + len(extras)

	guests := confirmed
	if raw.Guests.Valid {
		guests = raw.Guests.Value
	}

	summaryType := models.SummaryIndividual
	if len(members) > 1 {
		summaryType = models.SummaryGroup
	}

	submittedAt := string(raw.ReceivedAt)
	if submittedAt == "" {
		submittedAt = string(raw.Timestamp)
	}

	return models.StatusSummary{
		Type:             summaryType,
		SubmittedAt:      submittedAt,
		Note:             comment,
		Guests:           guests,
		Confirmed:        confirmed,
		ConfirmedMembers: confirmedMembers,
		Members:          members,
		Extras:           extras,
		Hash:             string(raw.EntryHash),
	}
}

// noteText returns the note when it was stored as a JSON string.
func noteText(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
