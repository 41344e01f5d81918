package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/scenaria/pkg/domain"
)

// ProjectionMarkdown renders the administrative projection of a session.
func ProjectionMarkdown(sc *domain.Scenario, proj domain.Projection) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "## %s\n\n", sc.Name)
	fmt.Fprintf(&sb, "**Phase:** %s (#%d)\n\n", proj.CurrentPhaseName, proj.CurrentPhaseID)

	switch {
	case proj.Ended:
		fmt.Fprintf(&sb, "**Status:** ended (%s)\n\n", proj.EndReason)
	case proj.PendingTerminalConfirmation:
		sb.WriteString("**Status:** closing, one last turn allowed\n\n")
	default:
		sb.WriteString("**Status:** in progress\n\n")
	}

	sb.WriteString("### Satisfied conditions\n\n")
	if len(proj.AccumulatedConditions) == 0 {
		sb.WriteString("_none yet_\n\n")
	}
	for _, c := range proj.AccumulatedConditions {
		fmt.Fprintf(&sb, "- [x] %s\n", c.Description)
	}
	if len(proj.AccumulatedConditions) > 0 {
		sb.WriteString("\n")
	}

	if !proj.Ended {
		writePreview(&sb, "On success", proj.NextSuccess)
		writePreview(&sb, "On failure", proj.NextFailure)
	}
	return sb.String()
}

func writePreview(sb *strings.Builder, title string, p *domain.TransitionPreview) {
	fmt.Fprintf(sb, "### %s\n\n", title)
	if p == nil {
		sb.WriteString("_stays in the current phase_\n\n")
		return
	}
	name := p.PhaseName
	if p.Closure {
		name += " (closure)"
	}
	fmt.Fprintf(sb, "Next phase: **%s**\n\n", name)
	for _, c := range p.RequiredConditions {
		mark := "x"
		for _, m := range p.MissingConditions {
			if m.ID == c.ID {
				mark = " "
				break
			}
		}
		fmt.Fprintf(sb, "- [%s] %s\n", mark, c.Description)
	}
	if len(p.RequiredConditions) > 0 {
		sb.WriteString("\n")
	}
}
