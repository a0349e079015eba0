package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow/types/events"

	"wedding-rsvp/internal/i18n"
	"wedding-rsvp/internal/models"
	"wedding-rsvp/internal/rsvp"
	"wedding-rsvp/internal/storage"
	"wedding-rsvp/internal/whatsapp"
)

// Messenger delivers text to a phone number.
type Messenger interface {
	SendMessage(ctx context.Context, phoneNumber, message string) error
	Normalize(phoneNumber string) string
}

// GuestStore is the outreach registry.
type GuestStore interface {
	AddGuest(ctx context.Context, guest models.Guest) error
	GetGuest(ctx context.Context, phoneNumber string) (*models.Guest, error)
	RecordReply(ctx context.Context, phoneNumber string, status models.OutreachStatus, reply string) error
}

type Config struct {
	// InviteLink builds the RSVP link sent with an invitation.
	InviteLink func(token, name string) string
	Hasher     rsvp.EntryHasher
	Deadline   rsvp.DeadlineGate
	Timeout    time.Duration
}

type RSVPHandler struct {
	messenger Messenger
	storage   GuestStore
	backend   rsvp.Backend
	loc       *i18n.Localizer
	config    *Config
	log       zerolog.Logger
}

// NewRSVPHandler creates a new RSVP handler
func NewRSVPHandler(messenger Messenger, store GuestStore, backend rsvp.Backend, loc *i18n.Localizer, cfg *Config, logger zerolog.Logger) *RSVPHandler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &RSVPHandler{
		messenger: messenger,
		storage:   store,
		backend:   backend,
		loc:       loc,
		config:    cfg,
		log:       logger.With().Str("component", "rsvp-bot").Logger(),
	}
}

// HandleMessage processes incoming WhatsApp messages for RSVP responses
func (h *RSVPHandler) HandleMessage(msg *events.Message) error {
	text := whatsapp.MessageText(msg)
	if text == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()
	return h.HandleReply(ctx, whatsapp.SenderPhone(msg), text)
}

// HandleReply turns a yes/no reply from an invited guest into a submission
// for the guest's whole party. Messages from unknown numbers and replies that
// are neither yes nor no are ignored.
func (h *RSVPHandler) HandleReply(ctx context.Context, phoneNumber, text string) error {
	phoneNumber = h.messenger.Normalize(phoneNumber)

	guest, err := h.storage.GetGuest(ctx, phoneNumber)
	if errors.Is(err, storage.ErrGuestNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up guest: %w", err)
	}

	answer := ClassifyReply(text)
	if answer == models.AnswerUnset {
		return nil
	}
	log := h.log.With().Str("phone", phoneNumber).Str("token", guest.Token).Logger()

	session := rsvp.NewSession(h.backend, rsvp.Options{
		Token:        guest.Token,
		FallbackName: guest.Name,
		Hasher:       h.config.Hasher,
		Deadline:     h.config.Deadline,
		Logger:       log,
	})
	defer session.Close()

	if err := session.Load(ctx); err != nil {
		return fmt.Errorf("failed to load rsvp: %w", err)
	}
	if session.State() == rsvp.StateEditable {
		for i := range session.View().Members {
			if err := session.SetAnswer(i, answer); err != nil {
				return fmt.Errorf("failed to set answer: %w", err)
			}
		}
		if err := session.Submit(ctx); err != nil && session.State() == rsvp.StateEditable {
			log.Warn().Err(err).Msg("Submission from WhatsApp failed")
			return h.reply(ctx, phoneNumber, h.loc.Error(err))
		}
	}

	var (
		status   models.OutreachStatus
		response string
	)
	switch session.State() {
	case rsvp.StateConfirmed:
		summary := session.Summary()
		if answer == models.AnswerYes {
			status = models.OutreachAccepted
			response = h.loc.Text(i18n.MsgBotAccepted, h.loc.Text(i18n.MsgSeats, summary.Guests))
		} else {
			status = models.OutreachDeclined
			response = h.loc.Text(i18n.MsgBotDeclined, "")
		}
	case rsvp.StateAlreadyConfirmed:
		status = models.OutreachConfirmed
		suffix := ""
		if summary := session.Summary(); summary != nil {
			suffix = h.loc.Text(i18n.MsgSeats, summary.Guests)
		}
		response = h.loc.Text(i18n.MsgBotAlreadyHandled, suffix)
	case rsvp.StateDeadlinePassed:
		status = models.OutreachClosed
		response = h.loc.Deadline()
	default:
		return fmt.Errorf("unexpected rsvp state %s", session.State())
	}

	if err := h.storage.RecordReply(ctx, phoneNumber, status, text); err != nil {
		return fmt.Errorf("failed to record reply: %w", err)
	}
	log.Info().Str("status", string(status)).Msg("WhatsApp reply handled")
	return h.reply(ctx, phoneNumber, response)
}

func (h *RSVPHandler) reply(ctx context.Context, phoneNumber, text string) error {
	if err := h.messenger.SendMessage(ctx, phoneNumber, strings.TrimSpace(text)); err != nil {
		return fmt.Errorf("failed to send confirmation: %w", err)
	}
	return nil
}

// SendInvitation registers the guest and sends the RSVP link.
func (h *RSVPHandler) SendInvitation(ctx context.Context, phoneNumber, name, token string) error {
	normalizedNumber := h.messenger.Normalize(phoneNumber)

	guest := models.Guest{
		PhoneNumber: normalizedNumber,
		Name:        strings.TrimSpace(name),
		Token:       strings.TrimSpace(token),
		Status:      models.OutreachPending,
	}
	if err := h.storage.AddGuest(ctx, guest); err != nil {
		return fmt.Errorf("failed to add guest: %w", err)
	}

	link := h.config.InviteLink(guest.Token, guest.Name)
	if err := h.messenger.SendMessage(ctx, normalizedNumber, h.loc.Text(i18n.MsgBotInvitation, guest.Name, link)); err != nil {
		return fmt.Errorf("failed to send invitation: %w", err)
	}
	return nil
}

var (
	declinePhrases = []string{
		"no puedo", "no podre", "no podremos", "no vamos", "no voy", "no asistire", "no asistiremos",
		"not coming", "can't come", "cant come", "won't come", "can't make it", "cannot come",
	}
	acceptWords   = []string{"si", "yes", "yep", "yeah", "claro", "confirmo", "confirmamos", "asistire", "asistiremos", "attending", "coming", "✅"}
	acceptPhrases = []string{"ahi estaremos", "ahi estare", "will come", "will be there", "por supuesto"}
	declineWords  = []string{"no", "nope", "decline", "declining", "❌"}
)

// ClassifyReply reads a free-text reply as yes, no or neither.
func ClassifyReply(text string) models.Answer {
	folded := rsvp.FoldText(strings.TrimSpace(text))
	if folded == "" {
		return models.AnswerUnset
	}
	words := strings.FieldsFunc(folded, func(r rune) bool {
		return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '\'')
	})
	padded := " " + strings.Join(words, " ") + " "

	switch {
	case containsAny(padded, declinePhrases...):
		return models.AnswerNo
	case containsAny(padded, acceptPhrases...), containsWord(words, acceptWords...):
		return models.AnswerYes
	case containsWord(words, declineWords...):
		return models.AnswerNo
	}
	return models.AnswerUnset
}

// containsAny checks if the padded text contains any of the given phrases
// on word boundaries.
func containsAny(padded string, phrases ...string) bool {
	for _, phrase := range phrases {
		if strings.Contains(padded, " "+phrase+" ") {
			return true
		}
	}
	return false
}

func containsWord(words []string, keywords ...string) bool {
	for _, w := range words {
		for _, k := range keywords {
			if w == k || (!isWordy(k) && strings.Contains(w, k)) {
				return true
			}
		}
	}
	return false
}

// isWordy reports whether k is made of letters, as opposed to an emoji.
func isWordy(k string) bool {
	for _, r := range k {
		if !unicode.IsLetter(r) && r != '\'' {
			return false
		}
	}
	return true
}
