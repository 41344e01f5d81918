package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/scenaria/pkg/domain"
)

// GraphOverlay contains dynamic session data to visualize on the graph.
type GraphOverlay struct {
	VisitedPhases []int
	CurrentPhase  int
}

// OverlayFromState builds the overlay of a session.
func OverlayFromState(state *domain.SessionState) *GraphOverlay {
	if state == nil {
		return nil
	}
	return &GraphOverlay{VisitedPhases: state.VisitedPhases, CurrentPhase: state.CurrentPhaseID}
}

// GenerateMermaid produces a Mermaid flowchart of the phase graph.
// It applies semantic styling:
// - Entry: ((Circle))
// - Closure: ([Stadium])
// - Default: [Rectangle]
// Success edges are solid, failure edges dotted. When a list holds more than one target,
// the edge label carries its priority rank. Overlay styles (Visited/Current) are applied if provided.
func GenerateMermaid(sc *domain.Scenario, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, p := range sc.Phases {
		opener, closer := "[", "]"
		switch {
		case p.ID == sc.EntryPhaseID:
			opener, closer = "((", "))"
		case p.Closure:
			opener, closer = "([", "])"
		}

		label := escape(p.Name)
		if n := len(p.ConditionIDs); n > 0 {
			label = fmt.Sprintf("%s <br/> %d condition(s)", label, n)
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", nodeID(p.ID), opener, label, closer)

		writeEdges(&sb, p.ID, p.SuccessTransitions, "success", "-- \"%s\" -->")
		writeEdges(&sb, p.ID, p.FailureTransitions, "failure", "-. \"%s\" .->")
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[int]bool)
		for _, id := range overlay.VisitedPhases {
			// History may point to phases removed since.
			if seen[id] || sc.Phase(id) == nil {
				continue
			}
			seen[id] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", nodeID(id))
		}
		if overlay.CurrentPhase != 0 && sc.Phase(overlay.CurrentPhase) != nil {
			fmt.Fprintf(&sb, "    class %s current;\n", nodeID(overlay.CurrentPhase))
		}
	}

	return sb.String()
}

func writeEdges(sb *strings.Builder, from int, targets []int, kind, arrowFmt string) {
	for i, to := range targets {
		label := kind
		if len(targets) > 1 {
			label = fmt.Sprintf("%s #%d", kind, i+1)
		}
		fmt.Fprintf(sb, "    %s %s %s\n", nodeID(from), fmt.Sprintf(arrowFmt, label), nodeID(to))
	}
}

func nodeID(id int) string {
	return fmt.Sprintf("p%d", id)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
