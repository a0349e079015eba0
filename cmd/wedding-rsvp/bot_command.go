package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"wedding-rsvp/internal/handler"
	"wedding-rsvp/internal/models"
	"wedding-rsvp/internal/rsvp"
	"wedding-rsvp/internal/storage"
	"wedding-rsvp/internal/whatsapp"
)

func newBotCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Send invitations over WhatsApp and record yes/no replies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.logger()
			gate, err := ctx.deadlineGate()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			guestStorage, err := storage.NewStorage(filepath.Join(cfg.WhatsAppDataDir, "outreach.db"))
			if err != nil {
				return fmt.Errorf("initialize storage: %w", err)
			}
			defer guestStorage.Close()

			whatsappService, err := whatsapp.NewService(runCtx, &whatsapp.Config{
				DataDir:     cfg.WhatsAppDataDir,
				CountryCode: cfg.WhatsAppCountryCode,
			}, logger)
			if err != nil {
				return fmt.Errorf("initialize WhatsApp service: %w", err)
			}

			rsvpHandler := handler.NewRSVPHandler(whatsappService, guestStorage, ctx.apiClient(logger), ctx.localizer(), &handler.Config{
				InviteLink: cfg.InviteLink,
				Hasher:     rsvp.NewEntryHasher(cfg.EventID),
				Deadline:   gate,
				Timeout:    2 * cfg.RequestTimeout(),
			}, logger)
			whatsappService.SetMessageHandler(rsvpHandler.HandleMessage)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Connecting to WhatsApp...")
			if err := whatsappService.Connect(runCtx); err != nil {
				return err
			}
			defer whatsappService.Disconnect()
			fmt.Fprintln(out, "✅ Connected. Listening for RSVP replies.")

			menu := &botMenu{handler: rsvpHandler, storage: guestStorage, out: out}
			done := make(chan struct{})
			go func() {
				defer close(done)
				menu.run(runCtx, cmd.InOrStdin())
			}()

			select {
			case <-runCtx.Done():
			case <-done:
			}
			fmt.Fprintln(out, "Shutting down...")
			return nil
		},
	}
}

// guestLister is the read side of the outreach registry.
type guestLister interface {
	GetAllGuests(ctx context.Context) ([]models.Guest, error)
	GetGuestsByStatus(ctx context.Context, status models.OutreachStatus) ([]models.Guest, error)
}

type inviter interface {
	SendInvitation(ctx context.Context, phoneNumber, name, token string) error
}

type botMenu struct {
	handler inviter
	storage guestLister
	out     io.Writer
}

func (m *botMenu) run(ctx context.Context, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for ctx.Err() == nil {
		fmt.Fprintln(m.out, "\nCommands:")
		fmt.Fprintln(m.out, "  1. Send invitation")
		fmt.Fprintln(m.out, "  2. View all guests")
		fmt.Fprintln(m.out, "  3. View guests by status")
		fmt.Fprintln(m.out, "  4. Exit")
		fmt.Fprint(m.out, "\nEnter command (1-4): ")

		if !scanner.Scan() {
			return
		}
		switch strings.TrimSpace(scanner.Text()) {
		case "1":
			m.sendInvitation(ctx, scanner)
		case "2":
			m.listGuests(m.storage.GetAllGuests(ctx))
		case "3":
			m.viewByStatus(ctx, scanner)
		case "4":
			return
		default:
			fmt.Fprintln(m.out, "Invalid command. Please try again.")
		}
	}
}

func (m *botMenu) prompt(scanner *bufio.Scanner, label string) (string, bool) {
	fmt.Fprint(m.out, label)
	if !scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(scanner.Text()), true
}

func (m *botMenu) sendInvitation(ctx context.Context, scanner *bufio.Scanner) {
	name, ok := m.prompt(scanner, "Guest name: ")
	if !ok {
		return
	}
	phone, ok := m.prompt(scanner, "Phone number (with country code): ")
	if !ok {
		return
	}
	token, ok := m.prompt(scanner, "Invitation token (blank for none): ")
	if !ok {
		return
	}

	fmt.Fprintf(m.out, "\nSending invitation to %s (%s)...\n", name, phone)
	if err := m.handler.SendInvitation(ctx, phone, name, token); err != nil {
		fmt.Fprintf(m.out, "❌ Error sending invitation: %v\n", err)
		return
	}
	fmt.Fprintln(m.out, "✅ Invitation sent.")
}

var menuStatuses = []models.OutreachStatus{
	models.OutreachPending,
	models.OutreachAccepted,
	models.OutreachDeclined,
	models.OutreachConfirmed,
	models.OutreachClosed,
}

func (m *botMenu) viewByStatus(ctx context.Context, scanner *bufio.Scanner) {
	fmt.Fprintln(m.out, "\nSelect status:")
	for i, status := range menuStatuses {
		fmt.Fprintf(m.out, "  %d. %s\n", i+1, status)
	}
	choice, ok := m.prompt(scanner, fmt.Sprintf("Enter choice (1-%d): ", len(menuStatuses)))
	if !ok {
		return
	}
	var n int
	if _, err := fmt.Sscan(choice, &n); err != nil || n < 1 || n > len(menuStatuses) {
		fmt.Fprintln(m.out, "Invalid choice.")
		return
	}
	m.listGuests(m.storage.GetGuestsByStatus(ctx, menuStatuses[n-1]))
}

func (m *botMenu) listGuests(guests []models.Guest, err error) {
	if err != nil {
		fmt.Fprintf(m.out, "❌ Error loading guests: %v\n", err)
		return
	}
	if len(guests) == 0 {
		fmt.Fprintln(m.out, "\nNo guests found.")
		return
	}
	fmt.Fprintln(m.out, formatGuests(guests, time.Now()))
}

func formatGuests(guests []models.Guest, now time.Time) string {
	rows := make([][]string, 0, len(guests))
	for _, g := range guests {
		replied := ""
		if !g.ReplyDate.IsZero() {
			replied = humanize.RelTime(g.ReplyDate, now, "ago", "from now")
		}
		rows = append(rows, []string{
			g.Name,
			g.PhoneNumber,
			g.Token,
			string(g.Status),
			humanize.RelTime(g.InvitedDate, now, "ago", "from now"),
			replied,
			g.LastReply,
		})
	}
	return renderTable(columns("Name", "Phone", "Token", "Status", "Invited", "Replied", "Last reply"), rows)
}
