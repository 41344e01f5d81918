package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/scenaria/internal/cli"
	"github.com/aretw0/scenaria/internal/validator"
	"github.com/aretw0/scenaria/pkg/interchange"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file|id]...",
	Short: "Check scenario graphs for consistency",
	Long: `Validates interchange documents or published scenarios and reports every violation.
Arguments naming an existing file are read directly; other arguments are scenario ids
in the library. Without arguments every published scenario is checked.
Exits non-zero when any scenario has a fatal violation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		return runValidate(cmd, args, asJSON)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("json", false, "Print violations as JSON")
}

type validation struct {
	Target     string                `json:"target"`
	Violations []validator.Violation `json:"violations"`
	Err        string                `json:"error,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string, asJSON bool) error {
	var app *cli.App
	ensureApp := func() (*cli.App, error) {
		if app != nil {
			return app, nil
		}
		var err error
		app, err = loadApp(cmd)
		return app, err
	}

	if len(args) == 0 {
		a, err := ensureApp()
		if err != nil {
			return err
		}
		if args, err = a.Engine.Scenarios(cmd.Context()); err != nil {
			return err
		}
	}

	var results []validation
	for _, target := range args {
		res := validation{Target: target, Violations: []validator.Violation{}}
		if info, err := os.Stat(target); err == nil && !info.IsDir() {
			sc, err := interchange.ReadFile(target)
			if err != nil {
				res.Err = err.Error()
			} else {
				res.Violations = validator.Validate(sc)
			}
		} else {
			a, err := ensureApp()
			if err != nil {
				return err
			}
			vs, err := a.Engine.Validate(cmd.Context(), target)
			if err != nil {
				res.Err = err.Error()
			} else {
				res.Violations = vs
			}
		}
		results = append(results, res)
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		printValidation(out, results)
	}

	failed := 0
	for _, res := range results {
		if res.Err != "" || validator.HasFatal(res.Violations) {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("validation failed for %d of %d scenario(s)", failed, len(results))
	}
	return nil
}

func printValidation(w io.Writer, results []validation) {
	for _, res := range results {
		switch {
		case res.Err != "":
			fmt.Fprintf(w, "%s: %s\n", res.Target, res.Err)
		case validator.HasFatal(res.Violations):
			fmt.Fprintf(w, "%s: invalid\n", res.Target)
		case len(res.Violations) > 0:
			fmt.Fprintf(w, "%s: valid with advisories\n", res.Target)
		default:
			fmt.Fprintf(w, "%s: valid\n", res.Target)
		}
		for _, v := range res.Violations {
			fmt.Fprintf(w, "  - %s\n", cli.FormatViolation(v))
		}
	}
}
