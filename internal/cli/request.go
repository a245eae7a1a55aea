package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artpar/gqlswitch/internal/dispatch"
	"github.com/artpar/gqlswitch/internal/schema"
)

// ErrSchemaUnavailable is returned by status when the probe failed.
var ErrSchemaUnavailable = errors.New("schema unavailable")

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Probe the current endpoint's schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			application, cleanup, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Endpoint: %s\n", application.Controller().Current())

			status := application.FetchSchema(cmd.Context())
			if status.Phase() != schema.PhaseFailed {
				fmt.Fprintln(out, status.Line())
				return nil
			}

			fmt.Fprintln(out, schema.ErrorLine)
			for _, msg := range status.Messages() {
				fmt.Fprintf(out, "  %s\n", msg)
			}
			return ErrSchemaUnavailable
		},
	}
}

// QueryOptions holds options for the query and subscribe commands.
type QueryOptions struct {
	Variables []string
	Operation string
	JSON      bool
	Count     int
}

func (o *QueryOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&o.Variables, "var", nil, "Variable (format: name=value, value parsed as JSON when possible)")
	cmd.Flags().StringVar(&o.Operation, "operation", "", "Operation name")
}

// NewQueryCommand creates the query command.
func NewQueryCommand(opts *GlobalOptions) *cobra.Command {
	queryOpts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query QUERY",
		Short: "Send a GraphQL operation to the current endpoint",
		Long:  "Send a GraphQL query or mutation to the current endpoint. Pass - to read the document from stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, opts, queryOpts, args[0])
		},
	}
	queryOpts.addFlags(cmd)
	cmd.Flags().BoolVar(&queryOpts.JSON, "json", false, "Output the full response as JSON")

	return cmd
}

func runQuery(cmd *cobra.Command, opts *GlobalOptions, queryOpts *QueryOptions, document string) error {
	req, err := buildRequest(cmd.InOrStdin(), document, queryOpts)
	if err != nil {
		return err
	}

	application, cleanup, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	resp, err := application.Dispatcher().Do(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	if queryOpts.JSON {
		return outputJSON(cmd.OutOrStdout(), resp)
	}
	return outputHuman(cmd, resp)
}

// NewSubscribeCommand creates the subscribe command.
func NewSubscribeCommand(opts *GlobalOptions) *cobra.Command {
	queryOpts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "subscribe QUERY",
		Short: "Run a GraphQL subscription against the current endpoint",
		Long:  "Run a GraphQL subscription over graphql-transport-ws and print one JSON line per event until interrupted.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubscribe(cmd, opts, queryOpts, args[0])
		},
	}
	queryOpts.addFlags(cmd)
	cmd.Flags().IntVarP(&queryOpts.Count, "count", "n", 0, "Stop after this many events (0 means no limit)")

	return cmd
}

func runSubscribe(cmd *cobra.Command, opts *GlobalOptions, queryOpts *QueryOptions, document string) error {
	req, err := buildRequest(cmd.InOrStdin(), document, queryOpts)
	if err != nil {
		return err
	}

	application, cleanup, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := cmd.OutOrStdout()
	received := 0
	var writeErr error

	err = application.Dispatcher().Subscribe(ctx, req, func(resp *dispatch.Response) {
		if queryOpts.Count > 0 && received >= queryOpts.Count {
			return
		}
		line, err := json.Marshal(resp)
		if err != nil {
			writeErr = err
			cancel()
			return
		}
		fmt.Fprintln(out, string(line))

		received++
		if queryOpts.Count > 0 && received >= queryOpts.Count {
			cancel()
		}
	})

	if writeErr != nil {
		return writeErr
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// buildRequest assembles the operation from the command line.
func buildRequest(stdin io.Reader, document string, opts *QueryOptions) (dispatch.Request, error) {
	if document == "-" {
		content, err := io.ReadAll(stdin)
		if err != nil {
			return dispatch.Request{}, fmt.Errorf("failed to read query: %w", err)
		}
		document = string(content)
	}
	if strings.TrimSpace(document) == "" {
		return dispatch.Request{}, errors.New("query is empty")
	}

	variables, err := parseVariables(opts.Variables)
	if err != nil {
		return dispatch.Request{}, err
	}

	return dispatch.Request{
		Query:         document,
		Variables:     variables,
		OperationName: opts.Operation,
	}, nil
}

// parseVariables converts name=value pairs to a variables map. Values that
// are valid JSON keep their type; anything else is a string.
func parseVariables(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	variables := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid variable %q (want name=value)", pair)
		}

		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		variables[name] = value
	}
	return variables, nil
}

func outputJSON(out io.Writer, resp *dispatch.Response) error {
	result := map[string]any{
		"status":    resp.StatusCode,
		"timing_ms": resp.Duration.Milliseconds(),
	}
	if len(resp.Data) > 0 {
		result["data"] = resp.Data
	}
	if resp.HasErrors() {
		result["errors"] = resp.Errors
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputHuman(cmd *cobra.Command, resp *dispatch.Response) error {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "HTTP %d in %dms\n", resp.StatusCode, resp.Duration.Milliseconds())

	if len(resp.Data) > 0 && string(resp.Data) != "null" {
		var pretty any
		if err := json.Unmarshal(resp.Data, &pretty); err != nil {
			fmt.Fprintln(out, string(resp.Data))
		} else {
			encoded, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Fprintln(out, string(encoded))
		}
	}

	if resp.HasErrors() {
		fmt.Fprintln(out, "Errors:")
		for _, e := range resp.Errors {
			fmt.Fprintf(out, "  %s\n", e.Message)
		}
		return fmt.Errorf("server returned %d error(s)", len(resp.Errors))
	}
	return nil
}
