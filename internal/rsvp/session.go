package rsvp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"wedding-rsvp/internal/models"
)

// State is the session's position in the RSVP flow.
type State int

const (
	StateLoadingStatus State = iota
	StateEditable
	StateSubmitting
	StateConfirmed
	StateAlreadyConfirmed
	StateDeadlinePassed
)

func (s State) String() string {
	switch s {
	case StateLoadingStatus:
		return "loading_status"
	case StateEditable:
		return "editable"
	case StateSubmitting:
		return "submitting"
	case StateConfirmed:
		return "confirmed"
	case StateAlreadyConfirmed:
		return "already_confirmed"
	case StateDeadlinePassed:
		return "deadline_passed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further edits are possible.
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateAlreadyConfirmed || s == StateDeadlinePassed
}

// timestampLayout matches the millisecond UTC form the sheet already holds.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// DefaultPollInterval is how often Watch re-checks the deadline.
const DefaultPollInterval = time.Minute

// Options configure one RSVP session.
type Options struct {
	Token string
	// FallbackName and FallbackExtra come from the invitation link and are
	// used when the token has no registered party.
	FallbackName  string
	FallbackExtra int
	// InitialStatus skips loading and shows the summary directly.
	InitialStatus *models.StatusSummary
	Hasher        EntryHasher
	Deadline      DeadlineGate
	Now           func() time.Time
	Logger        zerolog.Logger
}

// View is a snapshot of the session for the host to render.
type View struct {
	ID             string
	State          State
	Party          *models.Party
	Members        []models.MemberAnswer
	Extras         []models.ExtraGuestSlot
	ExtrasReadOnly bool
	Note           string
	Summary        *models.StatusSummary
	Err            error
	CanSubmit      bool
}

// Session is the RSVP state machine for one invitation visit. It is safe for
// use by one host plus the deadline watcher.
type Session struct {
	mu      sync.Mutex
	id      string
	backend Backend
	opts    Options
	log     zerolog.Logger

	state        State
	party        *models.Party
	members      []models.MemberAnswer
	extras       []models.ExtraGuestSlot
	extrasLocked bool
	note         string
	summary      *models.StatusSummary
	err          error

	needsLoad bool
	loading   bool
	loaded    bool
	closed    bool
}

// NewSession creates a session. It starts in AlreadyConfirmed when a status
// was preloaded, in LoadingStatus when a token is present and otherwise in
// Editable with a single member named after the fallback name.
func NewSession(backend Backend, opts Options) *Session {
	opts.FallbackName = strings.TrimSpace(opts.FallbackName)
	opts.FallbackExtra = models.ClampExtraSeats(opts.FallbackExtra)
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Hasher.New == nil && opts.Hasher.EventID == "" {
		opts.Hasher = NewEntryHasher("")
	}

	s := &Session{
		id:      uuid.NewString(),
		backend: backend,
		opts:    opts,
	}
	s.log = opts.Logger.With().Str("session", s.id).Str("token", opts.Token).Logger()

	switch {
	case opts.InitialStatus != nil:
		s.confirmLocked(*opts.InitialStatus, StateAlreadyConfirmed)
	case opts.Token != "":
		s.state = StateLoadingStatus
		s.needsLoad = true
	default:
		s.state = StateEditable
		s.populateLocked(nil)
	}
	return s
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Load fetches the party and any existing status concurrently and settles the
// initial state. It runs at most once per session: without a token, with a
// preloaded status or while another call is in flight it returns immediately.
// A deadline reached before loading finishes still yields to a stored status.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if !s.needsLoad || s.loading || s.loaded || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	token := s.opts.Token
	s.mu.Unlock()

	var (
		party             *models.Party
		status            *models.RawStatus
		partyErr, statErr error
		g                 errgroup.Group
	)
	g.Go(func() error {
		party, partyErr = s.backend.LoadParty(ctx, token)
		return nil
	})
	g.Go(func() error {
		status, statErr = s.backend.FetchStatus(ctx, token)
		return nil
	})
	_ = g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.loaded = true
	if s.closed {
		s.log.Debug().Msg("Discarding load result for closed session")
		return nil
	}

	if partyErr != nil {
		s.log.Warn().Err(partyErr).Msg("Could not load party, using fallback guest")
		party = nil
	}
	if statErr != nil {
		s.log.Warn().Err(statErr).Msg("Could not load RSVP status")
		status = nil
	}

	s.populateLocked(party)

	if status != nil {
		s.confirmLocked(BuildSummary(*status, s.opts.FallbackName), StateAlreadyConfirmed)
		s.log.Info().Msg("RSVP already confirmed")
		return nil
	}
	if s.state == StateDeadlinePassed || s.opts.Deadline.Passed() {
		s.state = StateDeadlinePassed
		return nil
	}
	s.state = StateEditable
	return nil
}

// populateLocked builds one answer per member and the extra-seat slots.
func (s *Session) populateLocked(party *models.Party) {
	s.party = party
	names := []string{}
	extra := s.opts.FallbackExtra
	fallback := s.opts.FallbackName
	if party != nil {
		names = party.Members
		extra = models.ClampExtraSeats(party.AllowedExtra)
		if party.DisplayName != "" {
			fallback = party.DisplayName
		}
	}
	if len(names) == 0 {
		if fallback == "" {
			fallback = models.DefaultGuestName
		}
		names = []string{fallback}
	}

	s.members = make([]models.MemberAnswer, len(names))
	for i, name := range names {
		s.members[i] = models.MemberAnswer{Name: name}
	}
	if !s.extrasLocked {
		s.extras = make([]models.ExtraGuestSlot, extra)
		for i := range s.extras {
			s.extras[i] = models.ExtraGuestSlot{Index: i}
		}
	}
}

// confirmLocked moves to a terminal confirmation state. A stored status
// fixes the extra slots and makes them read-only.
func (s *Session) confirmLocked(summary models.StatusSummary, state State) {
	s.summary = &summary
	s.state = state
	s.err = nil
	s.extrasLocked = true
	s.extras = make([]models.ExtraGuestSlot, len(summary.Extras))
	for i, name := range summary.Extras {
		s.extras[i] = models.ExtraGuestSlot{Index: i, Name: name}
	}
}

func (s *Session) editableLocked(op string) error {
	switch s.state {
	case StateEditable:
		return nil
	case StateDeadlinePassed:
		return NewError(KindDeadline, op, ErrDeadlinePassed)
	case StateConfirmed, StateAlreadyConfirmed:
		return NewError(KindValidation, op, ErrAlreadyConfirmed)
	case StateLoadingStatus:
		return NewError(KindValidation, op, ErrStatusPending)
	default:
		return NewError(KindValidation, op, ErrNotEditable)
	}
}

// SetAnswer records member i's answer, which must be yes or no.
func (s *Session) SetAnswer(i int, answer models.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked("set answer"); err != nil {
		return err
	}
	if i < 0 || i >= len(s.members) {
		return NewError(KindValidation, "set answer", fmt.Errorf("member %d out of range", i))
	}
	if !answer.Valid() {
		return NewError(KindValidation, "set answer", fmt.Errorf("invalid answer %q", answer))
	}
	s.members[i].Answer = answer
	return nil
}

// SetNote replaces the free-text comment.
func (s *Session) SetNote(note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked("set note"); err != nil {
		return err
	}
	s.note = note
	return nil
}

// SetExtraName names extra seat i. Blank names leave the seat unused.
func (s *Session) SetExtraName(i int, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked("set extra"); err != nil {
		return err
	}
	if s.extrasLocked {
		return NewError(KindValidation, "set extra", ErrNotEditable)
	}
	if i < 0 || i >= len(s.extras) {
		return NewError(KindValidation, "set extra", fmt.Errorf("extra seat %d out of range", i))
	}
	s.extras[i].Name = name
	return nil
}

func (s *Session) allSelectedLocked() bool {
	if len(s.members) == 0 {
		return false
	}
	for _, m := range s.members {
		if !m.Answer.Valid() {
			return false
		}
	}
	return true
}

// Submit validates the answers, posts the submission and settles the final
// state. A conflict is not an error: the session shows the stored winner.
// Other failures leave the session editable and are returned.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	if err := s.editableLocked("submit"); err != nil {
		s.err = err
		s.mu.Unlock()
		return err
	}
	if s.opts.Deadline.Passed() {
		s.state = StateDeadlinePassed
		s.err = NewError(KindDeadline, "submit", ErrDeadlinePassed)
		s.mu.Unlock()
		return s.err
	}
	if !s.allSelectedLocked() {
		s.err = NewError(KindValidation, "submit", ErrIncompleteAnswers)
		s.mu.Unlock()
		return s.err
	}
	payload, summary, err := s.buildSubmissionLocked()
	if err != nil {
		s.err = NewError(KindValidation, "submit", err)
		s.mu.Unlock()
		return s.err
	}
	s.state = StateSubmitting
	s.err = nil
	s.mu.Unlock()

	s.log.Info().Int("guests", payload.Guests).Str("entry_hash", payload.EntryHash).Msg("Submitting RSVP")
	submitErr := s.backend.Submit(ctx, payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.log.Debug().Msg("Discarding submit result for closed session")
		return nil
	}

	var conflict *ConflictError
	switch {
	case submitErr == nil:
		s.confirmLocked(summary, StateConfirmed)
		s.log.Info().Msg("RSVP confirmed")
		return nil
	case errors.As(submitErr, &conflict):
		s.log.Info().Msg("RSVP conflict, showing stored confirmation")
		if conflict.Status != nil {
			fallback := s.opts.FallbackName
			if fallback == "" {
				fallback = models.DefaultGuestName
			}
			s.confirmLocked(BuildSummary(*conflict.Status, fallback), StateAlreadyConfirmed)
			return nil
		}
		s.state = StateAlreadyConfirmed
		s.summary = nil
		s.err = submitErr
		return nil
	case KindOf(submitErr) == KindDeadline:
		s.state = StateDeadlinePassed
		s.err = submitErr
		return submitErr
	default:
		s.log.Warn().Err(submitErr).Msg("RSVP submission failed")
		s.state = StateEditable
		s.err = submitErr
		return submitErr
	}
}

// buildSubmissionLocked derives the payload and the summary shown on success.
func (s *Session) buildSubmissionLocked() (models.SubmissionPayload, models.StatusSummary, error) {
	now := s.opts.Now().UTC().Format(timestampLayout)
	comment := strings.TrimSpace(s.note)

	members := make([]models.NoteMember, len(s.members))
	confirmedMembers := 0
	for i, m := range s.members {
		members[i] = models.NoteMember{Name: m.Name, Answer: m.Answer.Display()}
		if m.Answer == models.AnswerYes {
			confirmedMembers++
		}
	}
	extras := []string{}
	for _, slot := range s.extras {
		if name := strings.TrimSpace(slot.Name); name != "" {
			extras = append(extras, name)
		}
	}
	guests := confirmedMembers + len(extras)

	note, err := EncodeNote(models.Note{Members: members, Extras: extras, Comment: comment})
	if err != nil {
		return models.SubmissionPayload{}, models.StatusSummary{}, fmt.Errorf("failed to encode note: %w", err)
	}
	hash, err := s.opts.Hasher.Compute(EntryInput{
		Token:     s.opts.Token,
		Members:   members,
		Extras:    extras,
		Timestamp: now,
	})
	if err != nil {
		return models.SubmissionPayload{}, models.StatusSummary{}, fmt.Errorf("failed to hash entry: %w", err)
	}

	payload := models.SubmissionPayload{
		Guests:     guests,
		Note:       note,
		ReceivedAt: now,
		EntryHash:  hash,
	}
	if s.opts.Token != "" {
		token := s.opts.Token
		payload.Token = &token
	}
	summaryType := models.SummaryIndividual
	if len(members) > 1 {
		summaryType = models.SummaryGroup
		payload.Answer = models.GroupAnswer
		payload.Name = s.contactNameLocked()
	} else {
		payload.Answer = members[0].Answer
		payload.Name = firstNonEmpty(members[0].Name, s.opts.FallbackName, models.DefaultGuestName)
	}

	summary := models.StatusSummary{
		Type:             summaryType,
		SubmittedAt:      now,
		Note:             comment,
		Guests:           guests,
		Confirmed:        guests,
		ConfirmedMembers: confirmedMembers,
		Members:          members,
		Extras:           extras,
		Hash:             hash,
	}
	return payload, summary, nil
}

func (s *Session) contactNameLocked() string {
	var display, first string
	if s.party != nil {
		display = s.party.DisplayName
	}
	if len(s.members) > 0 {
		first = s.members[0].Name
	}
	return firstNonEmpty(s.opts.FallbackName, display, first, models.DefaultGuestName)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// CheckDeadline moves a loading or editable session to DeadlinePassed once
// the deadline has passed and reports whether the session is in that state.
func (s *Session) CheckDeadline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if (s.state == StateEditable || s.state == StateLoadingStatus) && s.opts.Deadline.Passed() {
		s.log.Info().Msg("RSVP deadline passed")
		s.state = StateDeadlinePassed
	}
	return s.state == StateDeadlinePassed
}

// Watch re-checks the deadline every interval until ctx ends, the session
// closes or reaches a terminal state.
func (s *Session) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CheckDeadline()
			s.mu.Lock()
			done := s.closed || s.state.Terminal()
			s.mu.Unlock()
			if done {
				return
			}
		}
	}
}

// Close tears the session down. Results that arrive afterwards are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Summary returns the terminal summary, if any.
func (s *Session) Summary() *models.StatusSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary == nil {
		return nil
	}
	summary := *s.summary
	return &summary
}

// Err returns the last recoverable or terminal error.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// View returns a copy of the session for rendering.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		ID:             s.id,
		State:          s.state,
		Members:        append([]models.MemberAnswer(nil), s.members...),
		Extras:         append([]models.ExtraGuestSlot(nil), s.extras...),
		ExtrasReadOnly: s.extrasLocked,
		Note:           s.note,
		Err:            s.err,
		CanSubmit:      s.state == StateEditable && s.allSelectedLocked(),
	}
	if s.party != nil {
		party := *s.party
		v.Party = &party
	}
	if s.summary != nil {
		summary := *s.summary
		v.Summary = &summary
	}
	return v
}
