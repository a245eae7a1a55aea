package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/artpar/gqlswitch/internal/selector"
)

// ErrNotInHistory is returned when a command names an endpoint that was
// never used.
var ErrNotInHistory = errors.New("endpoint not in history")

// NewCurrentCommand creates the current command.
func NewCurrentCommand(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Print the current endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, cleanup, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			fmt.Fprintln(cmd.OutOrStdout(), application.Controller().Current())
			return nil
		},
	}
}

// NewUseCommand creates the use command.
func NewUseCommand(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "use URL",
		Short: "Validate URL and make it the current endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, cleanup, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			ctrl := application.Controller()
			ctrl.Edit(args[0])
			outcome, err := ctrl.Commit(cmd.Context())

			out := cmd.OutOrStdout()
			switch outcome {
			case selector.OutcomeRejected:
				return err
			case selector.OutcomeUnchanged:
				fmt.Fprintf(out, "Already using %s\n", ctrl.Current())
			case selector.OutcomeCommitted:
				fmt.Fprintf(out, "Switched to %s\n", ctrl.Current())
			}
			return err
		},
	}
}

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	JSON bool
}

// NewHistoryCommand creates the history command and its subcommands.
func NewHistoryCommand(opts *GlobalOptions) *cobra.Command {
	histOpts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List previously used endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, cleanup, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			ctrl := application.Controller()
			out := cmd.OutOrStdout()

			if histOpts.JSON {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(ctrl.History())
			}

			for _, entry := range ctrl.History() {
				marker := " "
				if entry == ctrl.Current() {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\n", marker, entry)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&histOpts.JSON, "json", false, "Output history as JSON")

	cmd.AddCommand(newHistorySwitchCommand(opts))
	cmd.AddCommand(newHistoryRemoveCommand(opts))

	return cmd
}

func newHistorySwitchCommand(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "switch URL",
		Short: "Make a history entry the current endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, cleanup, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			ctrl := application.Controller()
			if !slices.Contains(ctrl.History(), args[0]) {
				return fmt.Errorf("%w: %s", ErrNotInHistory, args[0])
			}
			if err := ctrl.SwitchTo(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Switched to %s\n", ctrl.Current())
			return nil
		},
	}
}

func newHistoryRemoveCommand(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm URL",
		Aliases: []string{"remove", "delete"},
		Short:   "Remove an entry from the history",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, cleanup, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			removed, err := application.Controller().Remove(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Not in history: %s\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}
