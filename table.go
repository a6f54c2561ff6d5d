package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"vrewexport/internal/service"
)

// renderPlan lays out one row per window plus a total row naming the download.
func renderPlan(windows []service.Window, download string) string {
	if len(windows) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Footer = text.FormatDefault
	tw.AppendHeader(table.Row{"#", "Scenes", "Count", "File"})

	total := 0
	for _, w := range windows {
		tw.AppendRow(table.Row{w.Index, fmt.Sprintf("%d-%d", w.Start, w.End), w.Len(), w.FileName()})
		total += w.Len()
	}
	tw.AppendFooter(table.Row{"", "total", total, download})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Name: "#", Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Name: "Count", Align: text.AlignRight, AlignFooter: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
