package rsvp

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wedding-rsvp/internal/models"
)

// fakeSheet behaves like the spreadsheet behind the API: the first submission
// per token wins and later ones get a conflict carrying the stored row.
type fakeSheet struct {
	mu        sync.Mutex
	parties   map[string]*models.Party
	partyErr  error
	statusErr error
	submitErr error
	rows      map[string]models.SubmissionPayload
	submits   []models.SubmissionPayload

	partyCalls  atomic.Int32
	statusCalls atomic.Int32
}

func newFakeSheet() *fakeSheet {
	return &fakeSheet{
		parties: map[string]*models.Party{},
		rows:    map[string]models.SubmissionPayload{},
	}
}

func (f *fakeSheet) LoadParty(_ context.Context, token string) (*models.Party, error) {
	f.partyCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.partyErr != nil {
		return nil, f.partyErr
	}
	return f.parties[token], nil
}

func (f *fakeSheet) FetchStatus(_ context.Context, token string) (*models.RawStatus, error) {
	f.statusCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	row, ok := f.rows[token]
	if !ok {
		return nil, nil
	}
	return rowToStatus(row), nil
}

func (f *fakeSheet) Submit(_ context.Context, payload models.SubmissionPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, payload)
	if f.submitErr != nil {
		return f.submitErr
	}
	token := payload.TokenValue()
	if row, ok := f.rows[token]; ok {
		return &ConflictError{Status: rowToStatus(row)}
	}
	f.rows[token] = payload
	return nil
}

func (f *fakeSheet) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submits)
}

func rowToStatus(p models.SubmissionPayload) *models.RawStatus {
	note, _ := json.Marshal(p.Note)
	return &models.RawStatus{
		Name:       models.LooseString(p.Name),
		Answer:     models.LooseString(p.Answer),
		Guests:     models.IntValue(p.Guests),
		Note:       note,
		ReceivedAt: models.LooseString(p.ReceivedAt),
		EntryHash:  models.LooseString(p.EntryHash),
	}
}

var (
	testNow      = time.Date(2025, 10, 1, 18, 30, 0, 0, time.UTC)
	testDeadline = time.Date(2025, 11, 16, 6, 0, 0, 0, time.UTC)
)

func testOptions(token string) Options {
	return Options{
		Token:        token,
		FallbackName: "Familia López",
		Hasher:       NewEntryHasher("boda-test"),
		Deadline:     DeadlineGate{Deadline: testDeadline, Now: func() time.Time { return testNow }},
		Now:          func() time.Time { return testNow },
		Logger:       zerolog.Nop(),
	}
}

func loadedSession(t *testing.T, backend Backend, opts Options) *Session {
	t.Helper()
	s := NewSession(backend, opts)
	require.NoError(t, s.Load(context.Background()))
	return s
}

func TestSessionAllYesWithExtra(t *testing.T) {
	sheet := newFakeSheet()
	sheet.parties["tok"] = &models.Party{Token: "tok", DisplayName: "Familia López", Members: []string{"Ana", "Luis", "Sofía"}, AllowedExtra: 2}

	s := loadedSession(t, sheet, testOptions("tok"))
	require.Equal(t, StateEditable, s.State())

	view := s.View()
	require.Len(t, view.Members, 3)
	require.Len(t, view.Extras, 2)
	assert.False(t, view.CanSubmit)

	for i := range view.Members {
		require.NoError(t, s.SetAnswer(i, models.AnswerYes))
	}
	require.NoError(t, s.SetExtraName(0, "  Marta "))
	require.NoError(t, s.SetExtraName(1, "   "))
	require.NoError(t, s.SetNote("  sin mariscos "))
	require.True(t, s.View().CanSubmit)

	require.NoError(t, s.Submit(context.Background()))
	assert.Equal(t, StateConfirmed, s.State())

	require.Equal(t, 1, sheet.submitCount())
	payload := sheet.submits[0]
	assert.Equal(t, 4, payload.Guests)
	assert.Equal(t, models.GroupAnswer, payload.Answer)
	assert.Equal(t, "Familia López", payload.Name)
	assert.Equal(t, "tok", payload.TokenValue())
	assert.Equal(t, "2025-10-01T18:30:00.000Z", payload.ReceivedAt)
	assert.Len(t, payload.EntryHash, 64)
	assert.JSONEq(t, `{"members":[{"name":"Ana","answer":"Sí"},{"name":"Luis","answer":"Sí"},{"name":"Sofía","answer":"Sí"}],"extras":["Marta"],"comment":"sin mariscos"}`, payload.Note)

	summary := s.Summary()
	require.NotNil(t, summary)
	assert.Equal(t, 4, summary.Confirmed)
	assert.Equal(t, 4, summary.Guests)
	assert.Equal(t, 3, summary.ConfirmedMembers)
	assert.Equal(t, models.SummaryGroup, summary.Type)
	assert.Equal(t, payload.EntryHash, summary.Hash)
	assert.Equal(t, []string{"Marta"}, summary.Extras)
	assert.True(t, s.View().ExtrasReadOnly)
}

func TestSessionMixedAnswers(t *testing.T) {
	sheet := newFakeSheet()
	sheet.parties["tok"] = &models.Party{Members: []string{"Ana", "Luis"}}

	s := loadedSession(t, sheet, testOptions("tok"))
	require.NoError(t, s.SetAnswer(0, models.AnswerYes))
	require.NoError(t, s.SetAnswer(1, models.AnswerNo))
	require.NoError(t, s.Submit(context.Background()))

	summary := s.Summary()
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.Confirmed)
	assert.Equal(t, 1, sheet.submits[0].Guests)
}

func TestSessionSingleMemberPayload(t *testing.T) {
	sheet := newFakeSheet()
	sheet.parties["tok"] = &models.Party{Members: []string{"Ana"}, AllowedExtra: 1}

	s := loadedSession(t, sheet, testOptions("tok"))
	require.NoError(t, s.SetAnswer(0, models.AnswerNo))
	require.NoError(t, s.Submit(context.Background()))

	payload := sheet.submits[0]
	assert.Equal(t, "Ana", payload.Name)
	assert.Equal(t, "No", payload.Answer)
	assert.Equal(t, 0, payload.Guests)
	assert.Equal(t, models.SummaryIndividual, s.Summary().Type)
}

func TestSessionIncompleteAnswersNeverSubmit(t *testing.T) {
	sheet := newFakeSheet()
	sheet.parties["tok"] = &models.Party{Members: []string{"Ana", "Luis"}}

	s := loadedSession(t, sheet, testOptions("tok"))
	require.NoError(t, s.SetAnswer(0, models.AnswerYes))

	err := s.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.ErrorIs(t, err, ErrIncompleteAnswers)
	assert.Equal(t, 0, sheet.submitCount())
	assert.Equal(t, StateEditable, s.State())
	assert.Equal(t, KindValidation, KindOf(s.View().Err))
}

func TestSessionRejectsInvalidAnswer(t *testing.T) {
	s := NewSession(newFakeSheet(), testOptions(""))
	assert.Error(t, s.SetAnswer(0, models.AnswerUnset))
	assert.Error(t, s.SetAnswer(0, "maybe"))
	assert.Error(t, s.SetAnswer(3, models.AnswerYes))
}

func TestSessionConflictShowsFirstWriter(t *testing.T) {
	sheet := newFakeSheet()
	sheet.parties["tok"] = &models.Party{Members: []string{"Ana", "Luis"}}

	first := loadedSession(t, sheet, testOptions("tok"))
	second := loadedSession(t, sheet, testOptions("tok"))
	require.Equal(t, StateEditable, first.State())
	require.Equal(t, StateEditable, second.State())

	require.NoError(t, first.SetAnswer(0, models.AnswerYes))
	require.NoError(t, first.SetAnswer(1, models.AnswerYes))
	require.NoError(t, first.SetNote("llegamos temprano"))

	require.NoError(t, second.SetAnswer(0, models.AnswerNo))
	require.NoError(t, second.SetAnswer(1, models.AnswerNo))
	require.NoError(t, second.SetNote("no podemos"))

	require.NoError(t, first.Submit(context.Background()))
	require.NoError(t, second.Submit(context.Background()))

	assert.Equal(t, StateConfirmed, first.State())
	assert.Equal(t, StateAlreadyConfirmed, second.State())
	assert.Equal(t, 2, sheet.submitCount(), "the losing write is not retried")

	summary := second.Summary()
	require.NotNil(t, summary)
	assert.Equal(t, "llegamos temprano", summary.Note)
	assert.Equal(t, []models.NoteMember{{Name: "Ana", Answer: "Sí"}, {Name: "Luis", Answer: "Sí"}}, summary.Members)
	assert.Equal(t, 2, summary.Confirmed)
	assert.Equal(t, first.Summary().Hash, summary.Hash)
	assert.NoError(t, second.Err())
}

func TestSessionConflictWithoutStatus(t *testing.T) {
	sheet := newFakeSheet()
	sheet.submitErr = &ConflictError{}

	s := NewSession(sheet, testOptions(""))
	require.NoError(t, s.SetAnswer(0, models.AnswerYes))
	require.NoError(t, s.Submit(context.Background()))

	assert.Equal(t, StateAlreadyConfirmed, s.State())
	assert.Nil(t, s.Summary())
	assert.Equal(t, KindConflict, KindOf(s.Err()))
}

func TestSessionExistingStatusShortCircuits(t *testing.T) {
	sheet := newFakeSheet()
	sheet.parties["tok"] = &models.Party{Members: []string{"Ana"}}
	sheet.rows["tok"] = models.SubmissionPayload{Name: "Ana", Answer: "Sí", Guests: 1, Note: `{"members":[{"name":"Ana","answer":"Sí"}],"extras":["Leo"],"comment":""}`}

	s := loadedSession(t, sheet, testOptions("tok"))
	assert.Equal(t, StateAlreadyConfirmed, s.State())

	view := s.View()
	require.NotNil(t, view.Summary)
	assert.Equal(t, 2, view.Summary.Confirmed)
	assert.True(t, view.ExtrasReadOnly)
	assert.Equal(t, []models.ExtraGuestSlot{{Index: 0, Name: "Leo"}}, view.Extras)

	assert.ErrorIs(t, s.SetAnswer(0, models.AnswerNo), ErrAlreadyConfirmed)
	assert.ErrorIs(t, s.Submit(context.Background()), ErrAlreadyConfirmed)
	assert.Equal(t, 0, sheet.submitCount())
}

func TestSessionUnknownPartyFallsBack(t *testing.T) {
	sheet := newFakeSheet()
	opts := testOptions("adhoc")
	opts.FallbackName = "  Tía Carmen "
	opts.FallbackExtra = 1

	s := loadedSession(t, sheet, opts)
	require.Equal(t, StateEditable, s.State())

	view := s.View()
	assert.Nil(t, view.Party)
	assert.Equal(t, []models.MemberAnswer{{Name: "Tía Carmen"}}, view.Members)
	assert.Len(t, view.Extras, 1)

	require.NoError(t, s.SetAnswer(0, models.AnswerYes))
	require.NoError(t, s.Submit(context.Background()))
	assert.Equal(t, "Tía Carmen", sheet.submits[0].Name)
}

func TestSessionClampsExtraSeats(t *testing.T) {
	sheet := newFakeSheet()
	sheet.parties["big"] = &models.Party{Token: "big", Members: []string{"Ana"}, AllowedExtra: 1 << 40}

	s := loadedSession(t, sheet, testOptions("big"))
	assert.Len(t, s.View().Extras, models.MaxExtraSeats)

	opts := testOptions("")
	opts.FallbackExtra = 1_000_000
	s = NewSession(sheet, opts)
	assert.Len(t, s.View().Extras, models.MaxExtraSeats)
}

func TestSessionPartyErrorFallsBack(t *testing.T) {
	sheet := newFakeSheet()
	sheet.partyErr = NewError(KindInvalidResponse, "load party", errors.New("bad json"))

	s := loadedSession(t, sheet, testOptions("tok"))
	assert.Equal(t, StateEditable, s.State())
	assert.Equal(t, []models.MemberAnswer{{Name: "Familia López"}}, s.View().Members)
}

func TestSessionWithoutTokenStartsEditable(t *testing.T) {
	sheet := newFakeSheet()
	opts := testOptions("")
	opts.FallbackName = ""

	s := NewSession(sheet, opts)
	assert.Equal(t, StateEditable, s.State())
	assert.Equal(t, []models.MemberAnswer{{Name: models.DefaultGuestName}}, s.View().Members)

	require.NoError(t, s.Load(context.Background()))
	assert.Zero(t, sheet.partyCalls.Load())
	assert.Zero(t, sheet.statusCalls.Load())

	require.NoError(t, s.SetAnswer(0, models.AnswerYes))
	require.NoError(t, s.Submit(context.Background()))
	assert.Nil(t, sheet.submits[0].Token)
}

func TestSessionInitialStatus(t *testing.T) {
	sheet := newFakeSheet()
	opts := testOptions("tok")
	opts.InitialStatus = &models.StatusSummary{Type: models.SummaryIndividual, Extras: []string{"Leo"}}

	s := NewSession(sheet, opts)
	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, StateAlreadyConfirmed, s.State())
	assert.Zero(t, sheet.statusCalls.Load())
	assert.Len(t, s.View().Extras, 1)
}

func TestSessionDeadlinePassed(t *testing.T) {
	sheet := newFakeSheet()
	sheet.parties["tok"] = &models.Party{Members: []string{"Ana"}}
	opts := testOptions("tok")
	opts.Deadline.Now = func() time.Time { return testDeadline.Add(time.Minute) }

	s := loadedSession(t, sheet, opts)
	assert.Equal(t, StateDeadlinePassed, s.State())
	assert.False(t, s.View().CanSubmit)

	err := s.Submit(context.Background())
	assert.Equal(t, KindDeadline, KindOf(err))
	assert.Equal(t, 0, sheet.submitCount())
}

func TestSessionConfirmationBeatsDeadline(t *testing.T) {
	sheet := newFakeSheet()
	sheet.rows["tok"] = models.SubmissionPayload{Name: "Ana", Answer: "Sí", Guests: 1}
	opts := testOptions("tok")
	opts.Deadline.Now = func() time.Time { return testDeadline.Add(time.Hour) }

	s := NewSession(sheet, opts)
	// The poll fires first.
	assert.True(t, s.CheckDeadline())
	require.NoError(t, s.Load(context.Background()))

	assert.Equal(t, StateAlreadyConfirmed, s.State())
	require.NotNil(t, s.Summary())
}

func TestSessionNetworkFailureIsRetryable(t *testing.T) {
	sheet := newFakeSheet()
	sheet.submitErr = NewError(KindNetwork, "submit", errors.New("connection refused"))

	s := NewSession(sheet, testOptions(""))
	require.NoError(t, s.SetAnswer(0, models.AnswerYes))

	err := s.Submit(context.Background())
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.Equal(t, StateEditable, s.State())

	sheet.mu.Lock()
	sheet.submitErr = nil
	sheet.mu.Unlock()

	require.NoError(t, s.Submit(context.Background()))
	assert.Equal(t, StateConfirmed, s.State())
	assert.NoError(t, s.Err())
}

func TestSessionServerDeadlineRejection(t *testing.T) {
	sheet := newFakeSheet()
	sheet.submitErr = NewError(KindDeadline, "submit", ErrDeadlinePassed)

	s := NewSession(sheet, testOptions(""))
	require.NoError(t, s.SetAnswer(0, models.AnswerNo))
	assert.Error(t, s.Submit(context.Background()))
	assert.Equal(t, StateDeadlinePassed, s.State())
}

// blockingSheet holds lookups until released.
type blockingSheet struct {
	*fakeSheet
	release chan struct{}
}

func (b *blockingSheet) FetchStatus(ctx context.Context, token string) (*models.RawStatus, error) {
	<-b.release
	return b.fakeSheet.FetchStatus(ctx, token)
}

func TestSessionDiscardsResultsAfterClose(t *testing.T) {
	sheet := &blockingSheet{fakeSheet: newFakeSheet(), release: make(chan struct{})}
	sheet.rows["tok"] = models.SubmissionPayload{Name: "Ana", Answer: "Sí"}

	s := NewSession(sheet, testOptions("tok"))
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Load(context.Background())
	}()

	s.Close()
	close(sheet.release)
	<-done

	assert.Equal(t, StateLoadingStatus, s.State())
	assert.Nil(t, s.Summary())
}

func TestSessionLoadIsDeduplicated(t *testing.T) {
	sheet := &blockingSheet{fakeSheet: newFakeSheet(), release: make(chan struct{})}
	s := NewSession(sheet, testOptions("tok"))

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Load(context.Background())
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(sheet.release)
	wg.Wait()

	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, int32(1), sheet.statusCalls.Load())
	assert.Equal(t, StateEditable, s.State())
}

func TestSessionWatchMovesToDeadlinePassed(t *testing.T) {
	var passed atomic.Bool
	opts := testOptions("")
	opts.Deadline.Now = func() time.Time {
		if passed.Load() {
			return testDeadline
		}
		return testNow
	}

	s := NewSession(newFakeSheet(), opts)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Watch(ctx, 5*time.Millisecond)
	}()

	assert.Equal(t, StateEditable, s.State())
	passed.Store(true)
	assert.Eventually(t, func() bool { return s.State() == StateDeadlinePassed }, time.Second, 5*time.Millisecond)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watch did not stop after reaching a terminal state")
	}
}
