// Package i18n holds the guest-facing messages in Spanish and English.
package i18n

import (
	"errors"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"wedding-rsvp/internal/rsvp"
)

// Message keys.
const (
	MsgLoading           = "rsvp.loading"
	MsgStatusPending     = "rsvp.status_pending"
	MsgAlreadyConfirmed  = "rsvp.already_confirmed"
	MsgIncomplete        = "rsvp.incomplete"
	MsgDeadline          = "rsvp.deadline"
	MsgDeadlineContact   = "rsvp.deadline_contact"
	MsgNetwork           = "rsvp.network"
	MsgTimeout           = "rsvp.timeout"
	MsgInvalidResponse   = "rsvp.invalid_response"
	MsgGeneric           = "rsvp.generic"
	MsgConfirmedAt       = "rsvp.confirmed_at"
	MsgConfirmed         = "rsvp.confirmed"
	MsgSeats             = "rsvp.seats"
	MsgBotInvitation     = "bot.invitation"
	MsgBotAccepted       = "bot.accepted"
	MsgBotDeclined       = "bot.declined"
	MsgBotAlreadyHandled = "bot.already_confirmed"
	MsgColGuest          = "cli.col_guest"
	MsgColAnswer         = "cli.col_answer"
	MsgColExtra          = "cli.col_extra"
	MsgNote              = "cli.note"
	MsgPending           = "cli.pending"
	MsgHelp              = "cli.help"
)

var catalog = map[language.Tag]map[string]string{
	language.Spanish: {
		MsgLoading:           "Estamos verificando si ya registraste tu respuesta. Por favor espera unos segundos.",
		MsgStatusPending:     "Estamos verificando una confirmación previa. Intenta nuevamente en unos segundos.",
		MsgAlreadyConfirmed:  "Ya registramos tu confirmación previamente.",
		MsgIncomplete:        "Selecciona una opción para cada invitado.",
		MsgDeadline:          "Cerramos confirmaciones el %s.",
		MsgDeadlineContact:   "Si necesitas ayuda, contáctanos directamente.",
		MsgNetwork:           "No pudimos registrar la confirmación. Intenta nuevamente.",
		MsgTimeout:           "El servidor tardó demasiado en responder. Intenta nuevamente.",
		MsgInvalidResponse:   "Recibimos una respuesta inesperada. Intenta nuevamente en unos minutos.",
		MsgGeneric:           "Ocurrió un error al enviar tu confirmación.",
		MsgConfirmedAt:       "Registramos tu respuesta el %s.",
		MsgConfirmed:         "Registramos tu respuesta correctamente. Te esperamos.",
		MsgSeats:             "Lugares confirmados: %d",
		MsgBotInvitation:     "Hola %s, ¡estás invitado/a a nuestra boda! Confirma tu asistencia aquí: %s\n\nTambién puedes responder *SÍ* o *NO* a este mensaje.",
		MsgBotAccepted:       "¡Qué alegría! Registramos tu asistencia. %s",
		MsgBotDeclined:       "Gracias por avisarnos. Te vamos a extrañar. %s",
		MsgBotAlreadyHandled: "Ya registramos tu confirmación previamente. %s",
		MsgColGuest:          "Invitado",
		MsgColAnswer:         "Respuesta",
		MsgColExtra:          "Acompañante",
		MsgNote:              "Nota: %s",
		MsgPending:           "Sin responder",
		MsgHelp:              "Comandos: si N | no N | todos si|no | extra N nombre | nota texto | enviar | salir",
	},
	language.English: {
		MsgLoading:           "We are checking whether you already replied. Please wait a few seconds.",
		MsgStatusPending:     "We are still checking for an earlier reply. Try again in a few seconds.",
		MsgAlreadyConfirmed:  "We already have your RSVP on record.",
		MsgIncomplete:        "Choose an option for every guest.",
		MsgDeadline:          "RSVPs closed on %s.",
		MsgDeadlineContact:   "If you need help, please contact us directly.",
		MsgNetwork:           "We couldn't record your RSVP. Please try again.",
		MsgTimeout:           "The server took too long to answer. Please try again.",
		MsgInvalidResponse:   "We got an unexpected response. Please try again in a few minutes.",
		MsgGeneric:           "Something went wrong while sending your RSVP.",
		MsgConfirmedAt:       "We recorded your reply on %s.",
		MsgConfirmed:         "We recorded your reply. See you there!",
		MsgSeats:             "Confirmed seats: %d",
		MsgBotInvitation:     "Hi %s, you're invited to our wedding! Please RSVP here: %s\n\nYou can also reply *YES* or *NO* to this message.",
		MsgBotAccepted:       "Wonderful! We've recorded your attendance. %s",
		MsgBotDeclined:       "Thank you for letting us know. We'll miss you! %s",
		MsgBotAlreadyHandled: "We already have your RSVP on record. %s",
		MsgColGuest:          "Guest",
		MsgColAnswer:         "Answer",
		MsgColExtra:          "Extra guest",
		MsgNote:              "Note: %s",
		MsgPending:           "No answer",
		MsgHelp:              "Commands: yes N | no N | all yes|no | extra N name | note text | submit | quit",
	},
}

var supported = []language.Tag{language.Spanish, language.English}

var matcher = language.NewMatcher(supported)

func init() {
	for tag, messages := range catalog {
		for key, msg := range messages {
			if err := message.SetString(tag, key, msg); err != nil {
				panic(err)
			}
		}
	}
}

// Parse picks the closest supported language. Spanish is the default.
func Parse(lang string) language.Tag {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return language.Spanish
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return language.Spanish
	}
	_, idx, _ := matcher.Match(tag)
	return supported[idx]
}

// Localizer renders guest-facing messages for one language.
type Localizer struct {
	printer       *message.Printer
	deadlineLabel string
}

// New returns a localizer for lang. deadlineLabel is the human form of the
// RSVP deadline used in the closed message.
func New(lang, deadlineLabel string) *Localizer {
	return &Localizer{
		printer:       message.NewPrinter(Parse(lang)),
		deadlineLabel: deadlineLabel,
	}
}

// Text renders the message for key.
func (l *Localizer) Text(key string, args ...any) string {
	return l.printer.Sprintf(key, args...)
}

// Deadline renders the closed message with the contact fallback.
func (l *Localizer) Deadline() string {
	return l.Text(MsgDeadline, l.deadlineLabel) + " " + l.Text(MsgDeadlineContact)
}

// Error renders a short message for err. Raw codes never reach the guest.
func (l *Localizer) Error(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, rsvp.ErrIncompleteAnswers):
		return l.Text(MsgIncomplete)
	case errors.Is(err, rsvp.ErrStatusPending):
		return l.Text(MsgStatusPending)
	case errors.Is(err, rsvp.ErrAlreadyConfirmed):
		return l.Text(MsgAlreadyConfirmed)
	}

	switch rsvp.KindOf(err) {
	case rsvp.KindDeadline:
		return l.Deadline()
	case rsvp.KindConflict:
		return l.Text(MsgAlreadyConfirmed)
	case rsvp.KindTimeout:
		return l.Text(MsgTimeout)
	case rsvp.KindInvalidResponse:
		return l.Text(MsgInvalidResponse)
	case rsvp.KindNetwork:
		var e *rsvp.Error
		if errors.As(err, &e) && e.Message != "" {
			return e.Message
		}
		return l.Text(MsgNetwork)
	}
	return l.Text(MsgGeneric)
}
