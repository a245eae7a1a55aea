package cli

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/artpar/gqlswitch/internal/app"
	"github.com/artpar/gqlswitch/internal/config"
	"github.com/artpar/gqlswitch/internal/dispatch"
	"github.com/artpar/gqlswitch/internal/logging"
	"github.com/artpar/gqlswitch/internal/tui/views"
)

// GlobalOptions holds the persistent flags shared by every command.
type GlobalOptions struct {
	ConfigPath string
	Store      string
	StorePath  string
	DefaultURL string
	Headers    string
	Debug      bool
}

// NewRootCommand creates the root command.
func NewRootCommand(version string) *cobra.Command {
	opts := &GlobalOptions{}

	cmd := &cobra.Command{
		Use:           "gqlswitch",
		Short:         "gqlswitch - pick the GraphQL endpoint you work against",
		Long:          "gqlswitch keeps track of the GraphQL endpoints you use, remembers the last one, and sends queries to it.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", config.DefaultPath(), "Config file")
	flags.StringVar(&opts.Store, "store", "", "Store driver: sqlite, file or memory")
	flags.StringVar(&opts.StorePath, "store-path", "", "Store location for the sqlite and file drivers")
	flags.StringVar(&opts.DefaultURL, "default-url", "", "Endpoint used when none has been saved")
	flags.StringVar(&opts.Headers, "headers", "", `Static request headers as JSON, e.g. {"X-API-KEY":"..."}`)
	flags.BoolVar(&opts.Debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(NewCurrentCommand(opts))
	cmd.AddCommand(NewUseCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewSubscribeCommand(opts))

	return cmd
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(opts *GlobalOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return cfg, err
	}

	if opts.Store != "" {
		cfg.Store.Driver = opts.Store
	}
	if opts.StorePath != "" {
		cfg.Store.Path = config.ExpandHome(opts.StorePath)
	}
	if opts.DefaultURL != "" {
		cfg.DefaultURL = opts.DefaultURL
	}
	if opts.Headers != "" {
		headers, err := dispatch.ParseHeaders(opts.Headers)
		if err != nil {
			return cfg, err
		}
		for k, v := range headers {
			cfg.Headers[k] = v
		}
	}
	if opts.Debug {
		cfg.Log.Level = "debug"
	}

	return cfg, cfg.Validate()
}

// openApp builds the application for one command run. The returned cleanup
// closes the store and the log file.
func openApp(cmd *cobra.Command, opts *GlobalOptions) (*app.App, func(), error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, err
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	application, err := app.New(cmd.Context(), cfg, app.WithLogger(logger))
	if err != nil {
		closeLog()
		return nil, nil, err
	}

	cleanup := func() {
		if err := application.Close(); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
		closeLog()
	}
	return application, cleanup, nil
}

// tuiModel wraps the SelectorView for bubbletea
type tuiModel struct {
	view *views.SelectorView
}

func (m tuiModel) Init() tea.Cmd {
	return m.view.Init()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	updated, cmd := m.view.Update(msg)
	m.view = updated.(*views.SelectorView)
	return m, cmd
}

func (m tuiModel) View() string {
	return m.view.View()
}

// runTUI starts the TUI application
func runTUI(cmd *cobra.Command, opts *GlobalOptions) error {
	application, cleanup, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	model := tuiModel{
		view: views.NewSelectorView(application,
			views.WithAutoFetch(application.Config().Schema.AutoFetch)),
	}

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		return err
	}
	return nil
}
