package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"newstack/internal/app"
)

type statusJSON struct {
	LastSuccess      *time.Time `json:"lastSuccess,omitempty"`
	LastFailure      *time.Time `json:"lastFailure,omitempty"`
	Blocked          bool       `json:"blocked"`
	Window           string     `json:"window,omitempty"`
	RemainingMinutes int        `json:"remainingMinutes"`
	Message          string     `json:"message,omitempty"`
	Sources          *int       `json:"sources,omitempty"`
	EligibleSources  *int       `json:"eligibleSources,omitempty"`
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show cooldown state and source eligibility",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := opts.application(cmd.Context())
			if err != nil {
				return err
			}
			defer application.Close()

			st, err := application.Status(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(toStatusJSON(st))
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func toStatusJSON(st app.Status) statusJSON {
	out := statusJSON{
		Blocked:          st.Cooldown.Blocked,
		Window:           string(st.Cooldown.Window),
		RemainingMinutes: st.Cooldown.RemainingMinutes(),
		Message:          st.Cooldown.Message(),
	}
	if !st.LastSuccess.IsZero() {
		out.LastSuccess = &st.LastSuccess
	}
	if !st.LastFailure.IsZero() {
		out.LastFailure = &st.LastFailure
	}
	if !st.Preflight.Skipped {
		out.Sources = &st.Preflight.Total
		out.EligibleSources = &st.Preflight.Eligible
	}
	return out
}

func printStatus(w io.Writer, st app.Status) {
	fmt.Fprintf(w, "last success: %s\n", formatTime(st.LastSuccess))
	fmt.Fprintf(w, "last failure: %s\n", formatTime(st.LastFailure))

	if st.Cooldown.Blocked {
		fmt.Fprintf(w, "cooldown:     %s\n", st.Cooldown.Message())
	} else {
		fmt.Fprintln(w, "cooldown:     ready")
	}

	if st.Preflight.Skipped {
		fmt.Fprintln(w, "sources:      unknown (no database configured)")
		return
	}
	fmt.Fprintf(w, "sources:      %d active, %d due\n", st.Preflight.Total, st.Preflight.Eligible)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.RFC3339)
}
