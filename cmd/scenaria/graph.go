package main

import (
	"fmt"
	"os"

	"github.com/aretw0/scenaria/internal/presentation/graph"
	"github.com/aretw0/scenaria/pkg/domain"
	"github.com/aretw0/scenaria/pkg/interchange"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <file|id>",
	Short: "Export the phase graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of the scenario's phases and transitions.
With --session the phases visited by that session and its current phase are highlighted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")

		var (
			sc      *domain.Scenario
			overlay *graph.GraphOverlay
		)
		if info, err := os.Stat(args[0]); err == nil && !info.IsDir() && sessionID == "" {
			if sc, err = interchange.ReadFile(args[0]); err != nil {
				return err
			}
		} else {
			app, err := loadApp(cmd)
			if err != nil {
				return err
			}
			if sc, err = app.Engine.Scenario(cmd.Context(), args[0]); err != nil {
				return err
			}
			if sessionID != "" {
				state, err := app.Engine.Sessions().Load(cmd.Context(), sessionID)
				if err != nil {
					return err
				}
				overlay = graph.OverlayFromState(state)
			}
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(sc, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", "", "Highlight the path of this session")
}
