package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wedding-rsvp/internal/apiclient"
	"wedding-rsvp/internal/i18n"
	"wedding-rsvp/internal/models"
	"wedding-rsvp/internal/rsvp"
)

type stubBackend struct {
	party     *models.Party
	status    *models.RawStatus
	submitted []models.SubmissionPayload
}

func (b *stubBackend) LoadParty(context.Context, string) (*models.Party, error) {
	return b.party, nil
}

func (b *stubBackend) FetchStatus(context.Context, string) (*models.RawStatus, error) {
	return b.status, nil
}

func (b *stubBackend) Submit(_ context.Context, p models.SubmissionPayload) error {
	b.submitted = append(b.submitted, p)
	return nil
}

func newStubSession(backend rsvp.Backend, token string) *rsvp.Session {
	return rsvp.NewSession(backend, rsvp.Options{
		Token:  token,
		Hasher: rsvp.NewEntryHasher("boda-test"),
		Now:    func() time.Time { return time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC) },
	})
}

func TestRunRespondSubmitsParty(t *testing.T) {
	backend := &stubBackend{party: &models.Party{
		Token:        "fam",
		DisplayName:  "Familia López",
		Members:      []string{"Ana", "Luis"},
		AllowedExtra: 1,
	}}
	session := newStubSession(backend, "fam")

	input := strings.Join([]string{
		"si 1",
		"no 2",
		"extra 1 Marta Ruiz",
		"nota llegamos tarde",
		"enviar",
	}, "\n")
	var out bytes.Buffer
	require.NoError(t, runRespond(context.Background(), session, i18n.New("es", ""), strings.NewReader(input), &out))

	assert.Equal(t, rsvp.StateConfirmed, session.State())
	require.Len(t, backend.submitted, 1)
	p := backend.submitted[0]
	assert.Equal(t, 2, p.Guests)
	assert.Contains(t, p.Note, "Marta Ruiz")
	assert.Contains(t, p.Note, "llegamos tarde")

	text := out.String()
	assert.Contains(t, text, "Familia López")
	assert.Contains(t, text, "Registramos tu respuesta correctamente.")
	assert.Contains(t, text, "Lugares confirmados: 2")
}

func TestRunRespondIncompleteKeepsEditing(t *testing.T) {
	backend := &stubBackend{party: &models.Party{Members: []string{"Ana", "Luis"}}}
	session := newStubSession(backend, "fam")

	var out bytes.Buffer
	input := "yes 1\nsubmit\nquit\n"
	require.NoError(t, runRespond(context.Background(), session, i18n.New("en", ""), strings.NewReader(input), &out))

	assert.Equal(t, rsvp.StateEditable, session.State())
	assert.Empty(t, backend.submitted)
	assert.Contains(t, out.String(), "Choose an option for every guest.")
}

func TestRunRespondAlreadyConfirmed(t *testing.T) {
	backend := &stubBackend{status: &models.RawStatus{Name: "Ana", Answer: "si", Guests: models.IntValue(1)}}
	session := newStubSession(backend, "fam")

	var out bytes.Buffer
	require.NoError(t, runRespond(context.Background(), session, i18n.New("es", ""), strings.NewReader(""), &out))

	assert.Equal(t, rsvp.StateAlreadyConfirmed, session.State())
	assert.Contains(t, out.String(), "Ya registramos tu confirmación previamente.")
	assert.Contains(t, out.String(), "Lugares confirmados: 1")
}

func TestRunRespondAllCommand(t *testing.T) {
	backend := &stubBackend{party: &models.Party{Members: []string{"Ana", "Luis", "Sofía"}}}
	session := newStubSession(backend, "fam")

	var out bytes.Buffer
	require.NoError(t, runRespond(context.Background(), session, i18n.New("es", ""), strings.NewReader("todos sí\nenviar\n"), &out))

	require.Len(t, backend.submitted, 1)
	assert.Equal(t, 3, backend.submitted[0].Guests)
}

func TestAdminColumns(t *testing.T) {
	rows := []apiclient.AdminRow{
		{"zeta": "1", "name": "Ana", "guests": json.Number("2")},
		{"receivedAt": "2025-10-01T12:00:00.000Z", "alpha": true, "name": "Luis"},
	}
	assert.Equal(t, []string{"receivedAt", "name", "guests", "alpha", "zeta"}, adminColumns(rows))
}

func TestFormatAdminRows(t *testing.T) {
	now := time.Date(2025, 10, 4, 12, 0, 0, 0, time.UTC)
	rows := []apiclient.AdminRow{{
		"receivedAt": "2025-10-01T12:00:00.000Z",
		"name":       "Familia López",
		"guests":     json.Number("3"),
		"note":       `{"members":[{"name":"Ana","answer":"Sí"}],"extras":["Marta"],"comment":"sin gluten"}`,
	}, {
		"name":   "Luis",
		"guests": json.Number("1"),
		"note":   "llego tarde",
	}}

	out := formatAdminRows(rows, now)
	assert.Contains(t, out, "3 days ago")
	assert.Contains(t, out, "+ Marta | sin gluten")
	assert.Contains(t, out, "llego tarde")
	assert.Equal(t, 4, totalGuests(rows))
}

func TestNoteCell(t *testing.T) {
	assert.Empty(t, noteCell(nil))
	assert.Equal(t, "hola", noteCell("hola"))
	assert.Equal(t, "+ A, B", noteCell(map[string]any{"extras": []any{"A", "B"}}))
}

type fakeInviter struct {
	calls [][3]string
}

func (f *fakeInviter) SendInvitation(_ context.Context, phone, name, token string) error {
	f.calls = append(f.calls, [3]string{phone, name, token})
	return nil
}

type fakeLister struct {
	guests []models.Guest
}

func (f *fakeLister) GetAllGuests(context.Context) ([]models.Guest, error) {
	return f.guests, nil
}

func (f *fakeLister) GetGuestsByStatus(_ context.Context, status models.OutreachStatus) ([]models.Guest, error) {
	var out []models.Guest
	for _, g := range f.guests {
		if g.Status == status {
			out = append(out, g)
		}
	}
	return out, nil
}

func TestBotMenu(t *testing.T) {
	inviter := &fakeInviter{}
	lister := &fakeLister{guests: []models.Guest{
		{PhoneNumber: "1", Name: "Ana", Status: models.OutreachAccepted, InvitedDate: time.Now().Add(-time.Hour)},
		{PhoneNumber: "2", Name: "Luis", Status: models.OutreachPending, InvitedDate: time.Now()},
	}}
	var out bytes.Buffer
	menu := &botMenu{handler: inviter, storage: lister, out: &out}

	input := strings.Join([]string{
		"1", "Marta", "+502 5555 0003", "fam-3",
		"3", "2",
		"9",
		"4",
	}, "\n")
	menu.run(context.Background(), strings.NewReader(input))

	require.Len(t, inviter.calls, 1)
	assert.Equal(t, [3]string{"+502 5555 0003", "Marta", "fam-3"}, inviter.calls[0])

	text := out.String()
	assert.Contains(t, text, "Invitation sent.")
	assert.Contains(t, text, "Ana")
	assert.NotContains(t, text, "Luis")
	assert.Contains(t, text, "Invalid command.")
}

func TestAnswerTables(t *testing.T) {
	loc := i18n.New("en", "")
	out := answerTable(loc, []models.MemberAnswer{{Name: "Ana", Answer: models.AnswerYes}, {Name: "Luis"}})
	assert.Contains(t, out, "Ana")
	assert.Contains(t, out, "No answer")
	assert.Contains(t, out, "Guest")

	assert.Empty(t, extraSlotTable(loc, nil))
	assert.Contains(t, extraSlotTable(loc, []models.ExtraGuestSlot{{Index: 0, Name: "Marta"}}), "Marta")

	tables := summaryTables(loc, &models.StatusSummary{Extras: []string{"Marta"}})
	require.Len(t, tables, 1)
	assert.Contains(t, tables[0], "Extra guest")
}
