package i18n

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"

	"wedding-rsvp/internal/rsvp"
)

func TestParse(t *testing.T) {
	assert.Equal(t, language.Spanish, Parse(""))
	assert.Equal(t, language.Spanish, Parse("es-GT"))
	assert.Equal(t, language.English, Parse("en"))
	assert.Equal(t, language.English, Parse("en-US"))
	assert.Equal(t, language.Spanish, Parse("not a tag"))
}

func TestLocalizerErrors(t *testing.T) {
	es := New("es", "15 de noviembre de 2025")
	en := New("en", "November 15, 2025")

	tests := []struct {
		name string
		err  error
		es   string
		en   string
	}{
		{
			name: "incomplete",
			err:  rsvp.NewError(rsvp.KindValidation, "submit", rsvp.ErrIncompleteAnswers),
			es:   "Selecciona una opción para cada invitado.",
			en:   "Choose an option for every guest.",
		},
		{
			name: "deadline",
			err:  rsvp.NewError(rsvp.KindDeadline, "submit", rsvp.ErrDeadlinePassed),
			es:   "Cerramos confirmaciones el 15 de noviembre de 2025. Si necesitas ayuda, contáctanos directamente.",
			en:   "RSVPs closed on November 15, 2025. If you need help, please contact us directly.",
		},
		{
			name: "conflict",
			err:  &rsvp.ConflictError{},
			es:   "Ya registramos tu confirmación previamente.",
			en:   "We already have your RSVP on record.",
		},
		{
			name: "timeout",
			err:  rsvp.NewError(rsvp.KindTimeout, "submit", errors.New("deadline exceeded")),
			es:   "El servidor tardó demasiado en responder. Intenta nuevamente.",
			en:   "The server took too long to answer. Please try again.",
		},
		{
			name: "unclassified",
			err:  errors.New("boom"),
			es:   "Ocurrió un error al enviar tu confirmación.",
			en:   "Something went wrong while sending your RSVP.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.es, es.Error(tt.err))
			assert.Equal(t, tt.en, en.Error(tt.err))
		})
	}
}

func TestLocalizerSurfacesBackendMessage(t *testing.T) {
	err := &rsvp.Error{Kind: rsvp.KindNetwork, Op: "submit", Message: "Hoja llena"}
	assert.Equal(t, "Hoja llena", New("es", "").Error(err))
	assert.Empty(t, New("es", "").Error(nil))
}
