package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"verifyctl/internal/config"
	"verifyctl/internal/logger"
	"verifyctl/internal/observability"
	"verifyctl/internal/render"
	"verifyctl/internal/transport"
	"verifyctl/internal/verify"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is stamped at build time with -ldflags "-X verifyctl/cmd/verifyctl/cmd.Version=...".
var Version = "dev"

const serviceName = "verifyctl"

// app is the state shared by every command of one invocation.
type app struct {
	cfgFile  string
	cfg      config.Config
	log      *slog.Logger
	sink     render.Sink
	shutdown func(context.Context) error
}

// exitError carries an exit code for an error that has already been reported.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// persistent flag name -> viper key
var flagKeys = map[string]string{
	"url":            "url",
	"token":          "token",
	"json":           "json",
	"verbose":        "verbose",
	"log-format":     "log_format",
	"http-timeout":   "http_timeout",
	"max-retries":    "max_retries",
	"trace-endpoint": "trace_endpoint",
}

// NewRootCmd builds a fresh command tree.
func NewRootCmd() *cobra.Command {
	root, _ := newRootCmd()
	return root
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:   "verifyctl",
		Short: "verifyctl submits verification runs and reports their results",
		Long: `verifyctl is the command-line client for the verification service.

A verification run uploads local project files (or names a published package),
waits for the service to execute its checks, streams the run's logs while it
is in progress, and exits with a code reflecting the result.

Common workflows:

  Verify the current project (reads verify.yaml):
    verifyctl run

  Verify selected files:
    verifyctl run --type npm --include src --include package.json

  Verify a published package:
    verifyctl run --type npm left-pad@1.3.0

  Inspect a run:
    verifyctl status <run-id>
    verifyctl logs <run-id> --follow
    verifyctl result <run-id>

Configuration:
  Settings come from flags, environment variables or $HOME/.verifyctl.yaml:
    VERIFY_URL      API endpoint (default: ` + config.DefaultURL + `)
    VERIFY_TOKEN    API token for authentication

Exit codes: 0 success, 1 failure, 2 usage error.`,
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          usageArgs(cobra.NoArgs),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		// Runnable so that unknown subcommands reach Args validation.
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &verify.UsageError{Message: err.Error()}
	})

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.verifyctl.yaml)")
	flags.String("url", config.DefaultURL, "Verification API URL")
	flags.StringP("token", "t", "", "API token for authentication")
	flags.Bool("json", false, "Print a single JSON object instead of human-readable output")
	flags.BoolP("verbose", "v", false, "Enable debug logging")
	flags.String("log-format", "text", "Log format: text or json")
	flags.Duration("http-timeout", 30*time.Second, "Timeout for a single HTTP request")
	flags.Int("max-retries", 3, "Retries for failed requests (0 disables retries)")
	flags.String("trace-endpoint", "", `OTLP gRPC endpoint for traces, or "stdout"`)

	root.AddCommand(
		newRunCommand(a),
		newStatusCommand(a),
		newLogsCommand(a),
		newResultCommand(a),
		newBalanceCommand(a),
		newDoctorCommand(a),
	)

	return root, a
}

// init resolves configuration and sets up logging, output and tracing.
func (a *app) init(cmd *cobra.Command) error {
	v := viper.GetViper()
	config.SetDefaults(v)
	config.BindEnv(v)
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Root().PersistentFlags().Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	if err := config.ReadFile(v, a.cfgFile); err != nil {
		return err
	}

	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.log = logger.New(cmd.ErrOrStderr(), logger.Options{Format: cfg.LogFormat, Verbose: cfg.Verbose})
	if v.ConfigFileUsed() != "" {
		a.log.Debug("using config file", "path", v.ConfigFileUsed())
	}

	if cfg.JSON {
		a.sink = render.NewJSON(cmd.OutOrStdout(), cmd.ErrOrStderr())
	} else {
		a.sink = render.NewHuman(cmd.OutOrStdout(), cmd.ErrOrStderr())
	}

	shutdown, err := observability.InitTracer(cmd.Context(), serviceName, cfg.TraceEndpoint, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.shutdown = shutdown
	return nil
}

// client builds the transport client. A missing token is a pre-flight failure.
func (a *app) client() (*transport.Client, error) {
	if err := a.cfg.RequireToken(); err != nil {
		return nil, err
	}

	retries := a.cfg.MaxRetries
	if retries <= 0 {
		retries = transport.NoRetries
	}
	return transport.New(a.cfg.URL, a.cfg.Token, transport.Options{
		ClientVersion: Version,
		Timeout:       a.cfg.HTTPTimeout,
		MaxRetries:    retries,
		Logger:        a.log,
	}), nil
}

// fail reports err through the output sink and returns the matching exit code.
func (a *app) fail(err error, runID string) error {
	a.sink.Error(err, runID)
	return &exitError{code: verify.ExitCode(err)}
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context) int {
	root, a := newRootCmd()
	return execute(ctx, root, a)
}

func execute(ctx context.Context, root *cobra.Command, a *app) int {
	err := root.ExecuteContext(ctx)

	if a.shutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := a.shutdown(shutdownCtx); serr != nil && a.log != nil {
			a.log.Warn("failed to flush traces", "error", serr)
		}
	}

	if err == nil {
		return verify.ExitOK
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}

	// Errors raised before a command could report them (flags, args, config).
	code := verify.ExitCode(err)
	if a.sink == nil && jsonRequested(root) {
		render.NewJSON(root.OutOrStdout(), root.ErrOrStderr()).Error(err, "")
		return code
	}
	fmt.Fprintf(root.ErrOrStderr(), "Error: %s\n", verify.Describe(err))
	if code == verify.ExitUsage {
		fmt.Fprintf(root.ErrOrStderr(), "Run '%s --help' for usage.\n", root.CommandPath())
	}
	return code
}

// jsonRequested reports whether --json or VERIFY_JSON asked for machine output.
// It is used when the error happened before configuration was resolved.
func jsonRequested(root *cobra.Command) bool {
	if flag := root.PersistentFlags().Lookup("json"); flag != nil && flag.Changed {
		on, _ := strconv.ParseBool(flag.Value.String())
		return on
	}
	on, _ := strconv.ParseBool(os.Getenv(config.EnvPrefix + "_JSON"))
	return on
}

// usageArgs turns argument validation failures into usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return &verify.UsageError{Message: err.Error()}
		}
		return nil
	}
}
