package rsvp

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"

	"wedding-rsvp/internal/models"
)

// EntryInput is the content fingerprinted for one submission.
type EntryInput struct {
	Token     string
	Members   []models.NoteMember
	Extras    []string
	Timestamp string
}

// entryDocument fixes the key order of the canonical form.
type entryDocument struct {
	Event     string              `json:"event"`
	Token     *string             `json:"token"`
	Timestamp string              `json:"timestamp"`
	Members   []models.NoteMember `json:"members"`
	Extras    []string            `json:"extras"`
}

// EntryHasher fingerprints submissions for deduplication and audit.
// With a nil New the canonical JSON itself is returned, so callers must not
// assume a fixed length.
type EntryHasher struct {
	EventID string
	New     func() hash.Hash
}

// NewEntryHasher returns a SHA-256 hasher for the event.
func NewEntryHasher(eventID string) EntryHasher {
	return EntryHasher{EventID: eventID, New: sha256.New}
}

// Canonical returns the canonical JSON form of in: fixed key order, no HTML
// escaping, and U+2028/U+2029 written raw as JSON.stringify does.
func (h EntryHasher) Canonical(in EntryInput) ([]byte, error) {
	doc := entryDocument{
		Event:     h.EventID,
		Timestamp: in.Timestamp,
		Members:   in.Members,
		Extras:    in.Extras,
	}
	if in.Token != "" {
		token := in.Token
		doc.Token = &token
	}
	if doc.Members == nil {
		doc.Members = []models.NoteMember{}
	}
	if doc.Extras == nil {
		doc.Extras = []string{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode entry: %w", err)
	}
	return rawLineSeparators(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// rawLineSeparators undoes encoding/json's \u2028 and \u2029 escapes. An
// escaped backslash followed by "u2028" is literal text and is left alone.
func rawLineSeparators(b []byte) []byte {
	if !bytes.Contains(b, []byte(`\u202`)) {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != '\\' || i+1 == len(b) {
			out = append(out, b[i])
			continue
		}
		if rest := b[i+1:]; len(rest) >= 5 && string(rest[:4]) == "u202" && (rest[4] == '8' || rest[4] == '9') {
			if rest[4] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			continue
		}
		out = append(out, b[i], b[i+1])
		i++
	}
	return out
}

// Compute returns the lowercase hex digest of the canonical form.
func (h EntryHasher) Compute(in EntryInput) (string, error) {
	canonical, err := h.Canonical(in)
	if err != nil {
		return "", err
	}
	if h.New == nil {
		return string(canonical), nil
	}
	d := h.New()
	d.Write(canonical)
	return hex.EncodeToString(d.Sum(nil)), nil
}
