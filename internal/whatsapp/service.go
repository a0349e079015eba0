package whatsapp

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// MessageHandler is called for every incoming message not sent by us.
type MessageHandler func(*events.Message) error

type Config struct {
	DataDir string
	// CountryCode is prefixed to local numbers that start with a trunk 0.
	CountryCode string
}

type Service struct {
	client         *whatsmeow.Client
	cfg            *Config
	log            zerolog.Logger
	messageHandler MessageHandler
}

// NewService opens the device store under cfg.DataDir and prepares a client.
func NewService(ctx context.Context, cfg *Config, logger zerolog.Logger) (*Service, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	container, err := sqlstore.New(ctx, "sqlite3", fmt.Sprintf("file:%s/whatsmeow.db?_foreign_keys=on", cfg.DataDir), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	service := &Service{
		client: whatsmeow.NewClient(deviceStore, nil),
		cfg:    cfg,
		log:    logger.With().Str("component", "whatsapp").Logger(),
	}
	service.client.AddEventHandler(service.eventHandler)
	return service, nil
}

// NormalizePhoneNumber strips formatting and converts local numbers with a
// trunk 0 to international form using countryCode.
func NormalizePhoneNumber(phoneNumber, countryCode string) string {
	var b strings.Builder
	for _, r := range phoneNumber {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	phoneNumber = b.String()

	if countryCode == "" {
		return phoneNumber
	}
	if strings.HasPrefix(phoneNumber, "00") {
		return phoneNumber[2:]
	}
	if strings.HasPrefix(phoneNumber, "0") {
		return countryCode + phoneNumber[1:]
	}
	// Country code followed by the trunk 0.
	if strings.HasPrefix(phoneNumber, countryCode+"0") {
		return countryCode + phoneNumber[len(countryCode)+1:]
	}
	return phoneNumber
}

// Normalize applies NormalizePhoneNumber with the configured country code.
func (s *Service) Normalize(phoneNumber string) string {
	return NormalizePhoneNumber(phoneNumber, s.cfg.CountryCode)
}

// Connect connects to WhatsApp, printing a pairing QR code on first use.
func (s *Service) Connect(ctx context.Context) error {
	if s.client.Store.ID != nil {
		if err := s.client.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		return nil
	}

	qrChan, _ := s.client.GetQRChannel(ctx)
	if err := s.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	for evt := range qrChan {
		if evt.Event != "code" {
			s.log.Info().Str("event", evt.Event).Msg("Pairing event")
			continue
		}
		printPairingCode(os.Stdout, evt.Code)
	}
	return nil
}

const pairingHelp = `Link this bot from the phone that sends the invitations:
WhatsApp > Settings > Linked Devices > Link a Device, then scan the code.`

func printPairingCode(w io.Writer, code string) {
	q, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		fmt.Fprintf(w, "Pairing code: %s\n%s\n", code, pairingHelp)
		return
	}
	fmt.Fprintf(w, "\n%s\n%s\n\n", q.ToSmallString(false), pairingHelp)
}

// Disconnect closes the WhatsApp connection.
func (s *Service) Disconnect() {
	s.client.Disconnect()
}

// SendMessage sends a text message to a phone number registered on WhatsApp.
func (s *Service) SendMessage(ctx context.Context, phoneNumber, message string) error {
	phoneNumber = s.Normalize(phoneNumber)

	jid, err := s.resolve(ctx, phoneNumber)
	if err != nil {
		return err
	}

	sent, err := s.client.SendMessage(ctx, jid, &waE2E.Message{Conversation: &message})
	if err != nil {
		if strings.Contains(err.Error(), "unknown server") || strings.Contains(err.Error(), "can't send message") {
			return fmt.Errorf("failed to send message to %s (JID: %s): %w; the recipient may need to be in your contacts", phoneNumber, jid.String(), err)
		}
		return fmt.Errorf("failed to send message: %w", err)
	}

	s.log.Info().Str("id", sent.ID).Time("timestamp", sent.Timestamp).Str("phone", phoneNumber).Msg("Message sent")
	return nil
}

// resolve verifies the number is on WhatsApp and returns the JID the server
// knows it by.
func (s *Service) resolve(ctx context.Context, phoneNumber string) (types.JID, error) {
	resp, err := s.client.IsOnWhatsApp(ctx, []string{phoneNumber})
	if err != nil {
		return types.JID{}, fmt.Errorf("failed to verify number on WhatsApp: %w", err)
	}
	if len(resp) == 0 || !resp[0].IsIn {
		return types.JID{}, fmt.Errorf("number %s is not registered on WhatsApp", phoneNumber)
	}
	s.log.Debug().Str("phone", phoneNumber).Str("jid", resp[0].JID.String()).Msg("Number verified on WhatsApp")
	return resp[0].JID, nil
}

func (s *Service) eventHandler(evt any) {
	switch evt := evt.(type) {
	case *events.Message:
		s.dispatch(evt)
	case *events.Connected:
		s.log.Info().Msg("WhatsApp session up")
	case *events.Disconnected:
		s.log.Warn().Msg("WhatsApp session down")
	case *events.LoggedOut:
		s.log.Warn().Int("reason", int(evt.Reason)).Msg("Device unlinked; pair again on next start")
	}
}

func (s *Service) dispatch(msg *events.Message) {
	if msg.Info.IsFromMe {
		return
	}
	log := s.log.With().Str("from", SenderPhone(msg)).Str("msg_id", msg.Info.ID).Logger()
	if s.messageHandler == nil {
		log.Debug().Str("text", MessageText(msg)).Msg("No handler registered, dropping message")
		return
	}
	if err := s.messageHandler(msg); err != nil {
		log.Error().Err(err).Msg("Failed to handle incoming message")
	}
}

// SetMessageHandler registers the callback for incoming messages.
func (s *Service) SetMessageHandler(handler MessageHandler) {
	s.messageHandler = handler
}

// MessageText returns the plain text of a message, whether it was sent as a
// bare conversation or as extended text.
func MessageText(msg *events.Message) string {
	if msg == nil || msg.Message == nil {
		return ""
	}
	if text := msg.Message.GetConversation(); text != "" {
		return text
	}
	return msg.Message.GetExtendedTextMessage().GetText()
}

// SenderPhone returns the sender's phone number without the server part.
func SenderPhone(msg *events.Message) string {
	return msg.Info.Sender.User
}
