package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Canonical display forms stored in the sheet.
const (
	DisplayYes = "Sí"
	DisplayNo  = "No"

	// GroupAnswer is written in the answer column for multi-member parties.
	GroupAnswer = "grupo"

	SummaryIndividual = "individual"
	SummaryGroup      = "grupo"

	// DefaultGuestName is used when neither the party nor the link names anyone.
	DefaultGuestName = "Invitado/a"
)

// Answer is the tri-state attendance selection for one member.
type Answer string

const (
	AnswerUnset Answer = ""
	AnswerYes   Answer = "yes"
	AnswerNo    Answer = "no"
)

// Display returns the form written to the sheet ("Sí"/"No").
func (a Answer) Display() string {
	switch a {
	case AnswerYes:
		return DisplayYes
	case AnswerNo:
		return DisplayNo
	default:
		return string(a)
	}
}

// Valid reports whether a is one of the selectable answers.
func (a Answer) Valid() bool {
	return a == AnswerYes || a == AnswerNo
}

// Party is the group of invitees behind one invitation token.
type Party struct {
	Token        string   `json:"token"`
	DisplayName  string   `json:"displayName"`
	Members      []string `json:"members"`
	AllowedExtra int      `json:"allowedExtra"`
}

// MemberAnswer is one member's selection during an RSVP session.
type MemberAnswer struct {
	Name   string `json:"name"`
	Answer Answer `json:"answer"`
}

// ExtraGuestSlot is an unnamed extra seat that may be filled with a name.
type ExtraGuestSlot struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// NoteMember is a member entry inside the serialized note.
type NoteMember struct {
	Name   string `json:"name"`
	Answer string `json:"answer"`
}

// Note is the structured payload stored in the sheet's single note column.
type Note struct {
	Members []NoteMember `json:"members"`
	Extras  []string     `json:"extras"`
	Comment string       `json:"comment"`
}

// StoredNote is the parsed form of a stored note: either a legacy free-text
// comment or a structured Note.
type StoredNote struct {
	Structured *Note
	RawComment string
}

// IsRaw reports whether the note was legacy free text.
func (n StoredNote) IsRaw() bool { return n.Structured == nil }

// Comment returns the comment text of either variant.
func (n StoredNote) Comment() string {
	if n.Structured == nil {
		return n.RawComment
	}
	return n.Structured.Comment
}

// Members returns nil for raw notes and for structured notes without a
// members list.
func (n StoredNote) Members() []NoteMember {
	if n.Structured == nil {
		return nil
	}
	return n.Structured.Members
}

// Extras returns the filled extra-guest names, if any.
func (n StoredNote) Extras() []string {
	if n.Structured == nil {
		return nil
	}
	return n.Structured.Extras
}

// SubmissionPayload is the single-row shape posted to the RSVP endpoint.
type SubmissionPayload struct {
	Token      *string `json:"token"`
	Name       string  `json:"name"`
	Answer     string  `json:"answer"`
	Guests     int     `json:"guests"`
	Note       string  `json:"note"`
	ReceivedAt string  `json:"receivedAt"`
	EntryHash  string  `json:"entryHash"`
}

// TokenValue returns the payload token or "".
func (p SubmissionPayload) TokenValue() string {
	if p.Token == nil {
		return ""
	}
	return *p.Token
}

// StatusSummary is the read-model shown once an RSVP is terminal.
type StatusSummary struct {
	Type             string       `json:"type"`
	SubmittedAt      string       `json:"submittedAt,omitempty"`
	Note             string       `json:"note,omitempty"`
	Guests           int          `json:"guests"`
	Confirmed        int          `json:"confirmed"`
	ConfirmedMembers int          `json:"confirmedMembers"`
	Members          []NoteMember `json:"members"`
	Extras           []string     `json:"extras"`
	Hash             string       `json:"hash,omitempty"`
}

// SubmittedTime parses SubmittedAt. The zero time is returned when the value
// is missing or not RFC 3339.
func (s StatusSummary) SubmittedTime() time.Time {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s.SubmittedAt))
	if err != nil {
		return time.Time{}
	}
	return t
}

// RawStatus is a status row as returned by the spreadsheet service.
type RawStatus struct {
	Name       LooseString     `json:"name"`
	Answer     LooseString     `json:"answer"`
	Guests     OptionalInt     `json:"guests"`
	Note       json.RawMessage `json:"note,omitempty"`
	ReceivedAt LooseString     `json:"receivedAt,omitempty"`
	Timestamp  LooseString     `json:"timestamp,omitempty"`
	EntryHash  LooseString     `json:"entryHash,omitempty"`
}

// PartyRecord is the party envelope returned by the spreadsheet service.
type PartyRecord struct {
	DisplayName  LooseString  `json:"displayName"`
	Members      LooseStrings `json:"members"`
	AllowedExtra LooseInt     `json:"allowedExtra"`
}

// Party converts the record, dropping blank members and clamping the seat
// count into [0, MaxExtraSeats].
func (r PartyRecord) Party(token string) Party {
	return Party{
		Token:        token,
		DisplayName:  strings.TrimSpace(string(r.DisplayName)),
		Members:      r.Members.Strings(),
		AllowedExtra: ClampExtraSeats(int(r.AllowedExtra)),
	}
}

// MaxExtraSeats bounds the extra seats one invitation can offer. Sheet cells
// are typed by hand, so anything larger is treated as a typo.
const MaxExtraSeats = 20

// ClampExtraSeats limits n to [0, MaxExtraSeats].
func ClampExtraSeats(n int) int {
	return min(max(n, 0), MaxExtraSeats)
}

// PartyResponse is the body of a party lookup.
type PartyResponse struct {
	OK    bool         `json:"ok"`
	Party *PartyRecord `json:"party,omitempty"`
	Error string       `json:"error,omitempty"`
}

// StatusResponse is the body of a status lookup and of a 409 conflict.
type StatusResponse struct {
	OK     bool       `json:"ok"`
	Reason string     `json:"reason,omitempty"`
	Status *RawStatus `json:"status,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// Rejection reasons returned by the RSVP endpoint.
const (
	ReasonAlreadyConfirmed = "already_confirmed"
	ReasonDeadlinePassed   = "deadline_passed"
)
