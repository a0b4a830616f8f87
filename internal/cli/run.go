package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"newstack/internal/domain"
	"newstack/internal/usecase"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	var (
		trigger    string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one ingestion cycle",
		Long: `Run one ingestion cycle unless a cooldown is active.

Examples:
  newstack run                 # Manual run
  newstack run --trigger auto  # Record the run as auto-triggered
  newstack run --json          # Print the run report as JSON`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t := domain.Trigger(trigger)
			if !t.Valid() {
				return fmt.Errorf("unknown trigger %q (want manual or auto)", trigger)
			}

			application, err := opts.application(cmd.Context())
			if err != nil {
				return err
			}
			defer application.Close()

			report, err := application.RunOnce(cmd.Context(), t)
			if err != nil {
				var cooldown *usecase.CooldownError
				if errors.As(err, &cooldown) {
					return errors.New(cooldown.Decision.Message())
				}
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return fmt.Errorf("encode report: %w", err)
				}
			} else {
				printReport(out, report)
			}

			if report.Outcome == domain.OutcomeFailed {
				return fmt.Errorf("run failed: %s", report.ErrorMessage)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&trigger, "trigger", string(domain.TriggerManual), "run trigger (manual or auto)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func printReport(w io.Writer, report domain.RunReport) {
	fmt.Fprintf(w, "attempt:  %s (%s)\n", report.AttemptID, report.Trigger)
	fmt.Fprintf(w, "outcome:  %s\n", report.Outcome)

	for _, step := range report.Steps {
		line := fmt.Sprintf("  %-16s %-10s", step.DisplayName, step.Status)
		if step.Count != nil {
			line += fmt.Sprintf(" %d", *step.Count)
		}
		fmt.Fprintln(w, line)
	}

	switch {
	case report.Outcome == domain.OutcomeFailed:
		fmt.Fprintf(w, "error:    %s\n", report.ErrorMessage)
	case report.Note != "":
		fmt.Fprintf(w, "note:     %s\n", report.Note)
		fmt.Fprintf(w, "          %s\n", report.Description)
	default:
		fmt.Fprintf(w, "result:   %s\n", report.Description)
	}

	for _, story := range report.Stories {
		fmt.Fprintf(w, "  - %s\n", story.Headline)
	}
}
