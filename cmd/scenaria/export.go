package main

import (
	"fmt"
	"os"

	"github.com/aretw0/scenaria/internal/cli"
	"github.com/aretw0/scenaria/pkg/domain"
	"github.com/aretw0/scenaria/pkg/interchange"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Write a published scenario as an interchange document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")

		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		sc, err := app.Engine.Scenario(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if out != "" {
			if !cmd.Flags().Changed("format") {
				return interchange.WriteFile(out, sc)
			}
			data, err := encode(sc, format)
			if err != nil {
				return err
			}
			return os.WriteFile(out, data, 0644)
		}
		data, err := encode(sc, format)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish <file>",
	Short: "Validate an interchange document and store it as a new scenario version",
	Long: `Reads an interchange document, validates it and stores it in the library under --id
(default: the file name without extension). Fatal violations block publication.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		if id == "" {
			id = documentID(args[0])
		}

		sc, err := interchange.ReadFile(args[0])
		if err != nil {
			return err
		}
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}

		published, violations, err := app.Engine.Publish(cmd.Context(), id, sc)
		w := cmd.OutOrStdout()
		for _, v := range violations {
			fmt.Fprintf(w, "  - %s\n", cli.FormatViolation(v))
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Published '%s' version %d.\n", id, published.Version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringP("format", "f", string(interchange.FormatYAML), "Output format: json or yaml")
	exportCmd.Flags().StringP("out", "o", "", "Write to this file instead of stdout (format follows the extension unless --format is set)")

	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().String("id", "", "Scenario id in the library")
}

func encode(sc *domain.Scenario, format string) ([]byte, error) {
	switch interchange.Format(format) {
	case interchange.FormatJSON, interchange.FormatYAML:
		return interchange.Marshal(sc, interchange.Format(format))
	}
	return nil, &domain.ValidationError{Field: "format", Reason: fmt.Sprintf("unknown format %q", format)}
}
