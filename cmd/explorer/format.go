package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/specvital/explorer/pkg/diagnostics"
	"github.com/specvital/explorer/pkg/domain"
	"github.com/specvital/explorer/pkg/parser"
)

// renderTree prints one row per suite followed by its tests.
func renderTree(w io.Writer, tree *domain.Tree, title string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Type", "ID", "Location", "Tests", "Passed", "Failed", "State"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "ID", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
	})

	for _, suite := range tree.Suites() {
		passed, failed := countOutcomes(suite)
		t.AppendRow(table.Row{
			"Suite",
			suite.Label,
			location(suite),
			suite.CountTests(),
			passed,
			failed,
			stateString(suite.State),
		})

		for i, test := range suite.Children {
			prefix := "├─"
			if i == len(suite.Children)-1 {
				prefix = "└─"
			}
			t.AppendRow(table.Row{
				"",
				fmt.Sprintf("%s %s", prefix, test.ID),
				location(test),
				"",
				"",
				"",
				stateString(test.State),
			})
		}
	}

	passed, failed := countOutcomes(tree.Root)
	t.AppendFooter(table.Row{"Total", "", "", tree.CountTests(), passed, failed, stateString(tree.Root.State)})
	t.Render()
}

func renderScanErrors(w io.Writer, errs []parser.ScanError) {
	if len(errs) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Skipped files")
	t.AppendHeader(table.Row{"Phase", "Path", "Error"})
	for _, e := range errs {
		t.AppendRow(table.Row{e.Phase, e.Path, e.Err})
	}
	t.Render()
}

func renderDiagnostics(w io.Writer, entries []diagnostics.Entry) {
	if len(entries) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Failures")
	t.AppendHeader(table.Row{"Location", "Message"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Message", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})
	for _, e := range entries {
		// Editors count lines from 1.
		t.AppendRow(table.Row{fmt.Sprintf("%s:%d", e.File, e.Line+1), e.Message})
	}
	t.Render()
}

func countOutcomes(node *domain.Node) (passed, failed int) {
	for _, test := range node.Tests() {
		switch test.State {
		case domain.StatePassed:
			passed++
		case domain.StateFailed:
			failed++
		}
	}
	return passed, failed
}

func location(node *domain.Node) string {
	if node.Location == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d", node.Location.File, node.Location.Line+1)
}

func stateString(state domain.State) string {
	switch state {
	case domain.StatePassed, domain.StateCompleted:
		return "✓ " + string(state)
	case domain.StateFailed, domain.StateErrored:
		return "✗ " + string(state)
	default:
		return string(state)
	}
}
