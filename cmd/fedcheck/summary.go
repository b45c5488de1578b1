// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/paracord-chat/fedcheck/scenario"
)

// styles renders for one writer. Colour is only emitted when w is a
// terminal that supports it.
type styles struct {
	pass     lipgloss.Style
	fail     lipgloss.Style
	warn     lipgloss.Style
	faint    lipgloss.Style
	position lipgloss.Style
}

func newStyles(w io.Writer) styles {
	renderer := lipgloss.NewRenderer(w)
	return styles{
		pass:     renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		fail:     renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		warn:     renderer.NewStyle().Foreground(lipgloss.Color("3")),
		faint:    renderer.NewStyle().Faint(true),
		position: renderer.NewStyle().Foreground(lipgloss.Color("6")),
	}
}

// printResult writes the verdict line, any teardown problem, and the
// trail.
func printResult(w io.Writer, result *scenario.Result) {
	style := newStyles(w)

	verdictStyle := style.pass
	if !result.Passed {
		verdictStyle = style.fail
	}
	fmt.Fprintf(w, "%s %s\n", verdictStyle.Render(result.Verdict()), result.Detail())
	fmt.Fprintln(w, style.faint.Render("run "+result.RunID))

	if result.CleanupErr != nil {
		fmt.Fprintf(w, "%s %v\n", style.warn.Render("teardown:"), result.CleanupErr)
	}

	if len(result.Trail) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, entry := range result.Trail {
		fmt.Fprintf(w, "%s  %s %s\n",
			style.faint.Render(entry.At.Format("15:04:05.000")),
			style.position.Render(fmt.Sprintf("%-28s", entry.Position.String())),
			entry.Message,
		)
	}
}
