package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"wedding-rsvp/internal/apiclient"
	"wedding-rsvp/internal/rsvp"
)

// Columns shown first, in this order. Anything else the sheet returns follows
// alphabetically.
var preferredColumns = []string{"receivedAt", "token", "name", "answer", "guests", "note"}

func newGuestsCommand(ctx *commandContext) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "guests",
		Short: "List every stored RSVP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if password == "" {
				password = cfg.AdminPassword
			}

			rows, err := ctx.apiClient(ctx.logger()).AdminList(cmd.Context(), password)
			if err != nil {
				return fmt.Errorf("list rsvps: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No RSVPs yet.")
				return nil
			}
			fmt.Fprintln(out, formatAdminRows(rows, time.Now()))
			fmt.Fprintf(out, "%s responses, %s confirmed seats\n",
				humanize.Comma(int64(len(rows))), humanize.Comma(int64(totalGuests(rows))))
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Admin password (defaults to admin_password)")
	return cmd
}

func formatAdminRows(rows []apiclient.AdminRow, now time.Time) string {
	keys := adminColumns(rows)
	cols := make([]column, len(keys))
	for i, key := range keys {
		cols[i] = column{title: key, numeric: key == "guests"}
	}
	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, len(keys))
		for i, key := range keys {
			cells[i] = formatCell(key, row[key], now)
		}
		table = append(table, cells)
	}
	return renderTable(cols, table)
}

func adminColumns(rows []apiclient.AdminRow) []string {
	seen := map[string]bool{}
	var extra []string
	for _, row := range rows {
		for key := range row {
			if !seen[key] {
				seen[key] = true
				extra = append(extra, key)
			}
		}
	}

	columns := make([]string, 0, len(seen))
	for _, col := range preferredColumns {
		if seen[col] {
			columns = append(columns, col)
			delete(seen, col)
		}
	}
	rest := extra[:0]
	for _, key := range extra {
		if seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	return append(columns, rest...)
}

func formatCell(column string, value any, now time.Time) string {
	text := cellText(value)
	switch column {
	case "receivedAt", "timestamp":
		if t, err := time.Parse(time.RFC3339Nano, text); err == nil {
			return t.Local().Format("2006-01-02 15:04") + " (" + humanize.RelTime(t, now, "ago", "from now") + ")"
		}
	case "note":
		return noteCell(value)
	}
	return text
}

func cellText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case bool:
		return fmt.Sprint(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}

// noteCell condenses a stored note to its extras and comment.
func noteCell(value any) string {
	var raw json.RawMessage
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		data, _ := json.Marshal(v)
		raw = data
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		raw = data
	}

	note := rsvp.ParseStoredNote(raw)
	if note.IsRaw() {
		return note.Comment()
	}
	var parts []string
	if extras := note.Extras(); len(extras) > 0 {
		parts = append(parts, "+ "+strings.Join(extras, ", "))
	}
	if c := strings.TrimSpace(note.Comment()); c != "" {
		parts = append(parts, c)
	}
	return strings.Join(parts, " | ")
}

func totalGuests(rows []apiclient.AdminRow) int {
	total := 0
	for _, row := range rows {
		if n, ok := row["guests"].(json.Number); ok {
			if v, err := n.Int64(); err == nil {
				total += int(v)
			}
		}
	}
	return total
}
