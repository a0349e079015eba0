package main

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"wedding-rsvp/internal/i18n"
	"wedding-rsvp/internal/models"
)

type column struct {
	title   string
	numeric bool
}

func columns(titles ...string) []column {
	out := make([]column, len(titles))
	for i, t := range titles {
		out[i] = column{title: t}
	}
	return out
}

// numbered prepends the 1-based position column used by the respond prompt.
func numbered(cols ...column) []column {
	return append([]column{{title: "#", numeric: true}}, cols...)
}

func renderTable(cols []column, rows [][]string) string {
	if len(cols) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, 0, len(cols))
	configs := make([]table.ColumnConfig, 0, len(cols))
	for i, c := range cols {
		header = append(header, c.title)
		cfg := table.ColumnConfig{Number: i + 1, AlignHeader: text.AlignLeft}
		if c.numeric {
			cfg.Align = text.AlignRight
		}
		configs = append(configs, cfg)
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, cells := range rows {
		row := make(table.Row, len(cols))
		for i := range row {
			if i < len(cells) {
				row[i] = cells[i]
			} else {
				row[i] = ""
			}
		}
		tw.AppendRow(row)
	}
	return tw.Render()
}

// answerTable lists the members being edited. Unset answers show the
// localized pending text.
func answerTable(loc *i18n.Localizer, members []models.MemberAnswer) string {
	rows := make([][]string, 0, len(members))
	for i, m := range members {
		answer := m.Answer.Display()
		if answer == "" {
			answer = loc.Text(i18n.MsgPending)
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), m.Name, answer})
	}
	return renderTable(numbered(columns(loc.Text(i18n.MsgColGuest), loc.Text(i18n.MsgColAnswer))...), rows)
}

// extraSlotTable lists the extra seats, blank names included.
func extraSlotTable(loc *i18n.Localizer, slots []models.ExtraGuestSlot) string {
	if len(slots) == 0 {
		return ""
	}
	rows := make([][]string, 0, len(slots))
	for _, slot := range slots {
		rows = append(rows, []string{strconv.Itoa(slot.Index + 1), slot.Name})
	}
	return renderTable(numbered(columns(loc.Text(i18n.MsgColExtra))...), rows)
}

// summaryTables renders the members and extra guests of a stored RSVP.
func summaryTables(loc *i18n.Localizer, summary *models.StatusSummary) []string {
	var out []string
	if len(summary.Members) > 0 {
		rows := make([][]string, 0, len(summary.Members))
		for _, m := range summary.Members {
			rows = append(rows, []string{m.Name, m.Answer})
		}
		out = append(out, renderTable(columns(loc.Text(i18n.MsgColGuest), loc.Text(i18n.MsgColAnswer)), rows))
	}
	if len(summary.Extras) > 0 {
		rows := make([][]string, 0, len(summary.Extras))
		for _, name := range summary.Extras {
			rows = append(rows, []string{name})
		}
		out = append(out, renderTable(columns(loc.Text(i18n.MsgColExtra)), rows))
	}
	return out
}
