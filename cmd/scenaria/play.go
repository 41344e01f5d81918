package main

import (
	"context"
	"os"

	"github.com/aretw0/scenaria/internal/cli"
	"github.com/aretw0/scenaria/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play [scenario-id]",
	Short: "Play a scenario interactively",
	Long: `Starts, or resumes with --session, a conversation on stdin/stdout. Each line is one
utterance judged by the configured evaluator. With --json every line may instead be an
object {"utterance": "...", "verdict": {...}} carrying its own verdict, and output is
one JSON frame per line.

Type /state for the projection and /quit to leave; the session can be resumed later.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.PlayOptions{}
		if len(args) > 0 {
			opts.ScenarioID = args[0]
		}
		opts.SessionID, _ = cmd.Flags().GetString("session")
		opts.JSON, _ = cmd.Flags().GetBool("json")
		opts.Projection, _ = cmd.Flags().GetBool("projection")
		opts.Fresh, _ = cmd.Flags().GetBool("fresh")

		app, err := loadApp(cmd)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if !opts.JSON {
			tui.PrintBanner(out)
			opts.Renderer = tui.NewRenderer()
		}

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		state, runErr := cli.Play(sigCtx, app, opts, os.Stdin, out)
		if sigCtx.Err() != nil && runErr == nil {
			runErr = sigCtx.Err()
		}
		if !opts.JSON && state != nil && !state.Ended {
			if sc, _, err := app.Engine.SessionScenario(sigCtx, state.SessionID); err == nil {
				cli.LogCompletion(out, cli.PhaseName(sc, state), runErr, sigCtx.Signal())
			}
		}
		return cli.HandleExecutionError(runErr)
	},
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().StringP("session", "s", "", "Session ID to resume (generated when empty)")
	playCmd.Flags().Bool("json", false, "Read JSON lines and write JSON frames")
	playCmd.Flags().Bool("projection", false, "Show the projection after every turn")
	playCmd.Flags().Bool("fresh", false, "Discard stored state for --session before starting")
}
