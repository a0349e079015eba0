package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"wedding-rsvp/internal/i18n"
	"wedding-rsvp/internal/models"
	"wedding-rsvp/internal/rsvp"
)

func newRespondCommand(ctx *commandContext) *cobra.Command {
	var (
		token string
		name  string
		extra int
	)

	cmd := &cobra.Command{
		Use:   "respond",
		Short: "Answer an invitation interactively",
		Long: "Opens the RSVP for an invitation token against the API configured in api_base_url.\n" +
			"Without --token a single guest named by --name answers.",
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

			session := rsvp.NewSession(ctx.apiClient(logger), rsvp.Options{
				Token:         strings.TrimSpace(token),
				FallbackName:  name,
				FallbackExtra: extra,
				Hasher:        rsvp.NewEntryHasher(cfg.EventID),
				Deadline:      gate,
				Logger:        logger,
			})
			defer session.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go session.Watch(runCtx, cfg.DeadlinePoll())

			return runRespond(runCtx, session, ctx.localizer(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&token, "token", "p", "", "Invitation token")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Guest name used when the token has no party")
	cmd.Flags().IntVar(&extra, "extra", 0, "Extra seats offered when the token has no party")
	return cmd
}

// respondPrompt drives one session from line-oriented input.
type respondPrompt struct {
	session *rsvp.Session
	loc     *i18n.Localizer
	out     io.Writer
}

func runRespond(ctx context.Context, session *rsvp.Session, loc *i18n.Localizer, in io.Reader, out io.Writer) error {
	p := &respondPrompt{session: session, loc: loc, out: out}
	if session.State() == rsvp.StateLoadingStatus {
		p.render()
	}
	if err := session.Load(ctx); err != nil {
		return err
	}
	p.render()

	scanner := bufio.NewScanner(in)
	for !session.State().Terminal() {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		if p.exec(ctx, scanner.Text()) {
			break
		}
		p.render()
	}
	return scanner.Err()
}

// exec runs one command line and reports whether the user asked to quit.
func (p *respondPrompt) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	var err error
	switch rsvp.FoldText(fields[0]) {
	case "si", "yes", "no":
		i, ok := p.index(fields, 1)
		if !ok {
			return false
		}
		err = p.session.SetAnswer(i, rsvp.ParseAnswer(fields[0]))
	case "todos", "all":
		if len(fields) < 2 {
			p.help()
			return false
		}
		answer := rsvp.ParseAnswer(fields[1])
		for i := range p.session.View().Members {
			if err = p.session.SetAnswer(i, answer); err != nil {
				break
			}
		}
	case "extra":
		i, ok := p.index(fields, 1)
		if !ok {
			return false
		}
		err = p.session.SetExtraName(i, strings.Join(fields[2:], " "))
	case "nota", "note":
		err = p.session.SetNote(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0])))
	case "enviar", "submit":
		// Failures are kept on the session and shown by render.
		_ = p.session.Submit(ctx)
		return false
	case "salir", "quit", "exit":
		return true
	default:
		p.help()
		return false
	}
	if err != nil {
		fmt.Fprintln(p.out, p.loc.Error(err))
	}
	return false
}

// index reads a 1-based position from fields[pos].
func (p *respondPrompt) index(fields []string, pos int) (int, bool) {
	if len(fields) <= pos {
		p.help()
		return 0, false
	}
	n, err := strconv.Atoi(fields[pos])
	if err != nil || n < 1 {
		p.help()
		return 0, false
	}
	return n - 1, true
}

func (p *respondPrompt) help() {
	fmt.Fprintln(p.out, p.loc.Text(i18n.MsgHelp))
}

func (p *respondPrompt) render() {
	view := p.session.View()
	switch view.State {
	case rsvp.StateLoadingStatus:
		fmt.Fprintln(p.out, p.loc.Text(i18n.MsgLoading))
	case rsvp.StateEditable, rsvp.StateSubmitting:
		p.renderForm(view)
	case rsvp.StateConfirmed:
		fmt.Fprintln(p.out, p.loc.Text(i18n.MsgConfirmed))
		p.renderSummary(view.Summary)
	case rsvp.StateAlreadyConfirmed:
		fmt.Fprintln(p.out, p.loc.Text(i18n.MsgAlreadyConfirmed))
		p.renderSummary(view.Summary)
	case rsvp.StateDeadlinePassed:
		fmt.Fprintln(p.out, p.loc.Deadline())
	}
}

func (p *respondPrompt) renderForm(view rsvp.View) {
	if view.Party != nil && view.Party.DisplayName != "" {
		fmt.Fprintln(p.out, view.Party.DisplayName)
	}

	fmt.Fprintln(p.out, answerTable(p.loc, view.Members))
	if extras := extraSlotTable(p.loc, view.Extras); extras != "" {
		fmt.Fprintln(p.out, extras)
	}
	if view.Note != "" {
		fmt.Fprintln(p.out, p.loc.Text(i18n.MsgNote, view.Note))
	}
	if view.Err != nil {
		fmt.Fprintln(p.out, p.loc.Error(view.Err))
	}
	p.help()
}

func (p *respondPrompt) renderSummary(summary *models.StatusSummary) {
	if summary == nil {
		return
	}
	if t := summary.SubmittedTime(); !t.IsZero() {
		fmt.Fprintln(p.out, p.loc.Text(i18n.MsgConfirmedAt, t.Local().Format("2006-01-02 15:04")))
	}

	for _, t := range summaryTables(p.loc, summary) {
		fmt.Fprintln(p.out, t)
	}
	fmt.Fprintln(p.out, p.loc.Text(i18n.MsgSeats, summary.Guests))
	if summary.Note != "" {
		fmt.Fprintln(p.out, p.loc.Text(i18n.MsgNote, summary.Note))
	}
}
