package cmd

import (
	"errors"
	"time"

	"verifyctl/internal/config"
	"verifyctl/internal/selector"
	"verifyctl/internal/verify"

	"github.com/spf13/cobra"
)

type runOptions struct {
	projectType string
	packageName string
	source      string
	include     []string
	timeout     time.Duration
	noStream    bool
	dir         string
}

func newRunCommand(a *app) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [package-ref]",
		Short: "Submit a verification run and wait for its result",
		Long: `Submit a verification run and follow it until it finishes.

Without arguments the files selected by --include (or the include list of
verify.yaml, or the whole --dir) are uploaded. With a package reference such
as "left-pad@1.3.0" or "@scope/pkg" the published artifact is verified
instead and --type is required.

Logs are streamed while the run is in progress unless --no-stream or --json
is set. The exit code is 0 only when every check passed.`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.projectType, "type", "", "Project type, e.g. npm or pypi (overrides verify.yaml)")
	cmd.Flags().StringVar(&opts.packageName, "package", "", "Package name (overrides verify.yaml)")
	cmd.Flags().StringVar(&opts.source, "source", "", "Source identifier (overrides verify.yaml)")
	cmd.Flags().StringSliceVar(&opts.include, "include", nil, "Files or directories to upload (repeatable)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Maximum time to wait for the run (default from poll_timeout)")
	cmd.Flags().BoolVar(&opts.noStream, "no-stream", false, "Do not stream run logs")
	cmd.Flags().StringVar(&opts.dir, "dir", ".", "Project directory")

	return cmd
}

func (a *app) run(cmd *cobra.Command, opts *runOptions, args []string) error {
	project, err := config.LoadProject(opts.dir)
	if err != nil {
		return a.fail(err, "")
	}
	projectType := firstNonEmpty(opts.projectType, project.Type)

	var sub verify.Submission
	if len(args) == 1 {
		for _, name := range []string{"include", "package", "source"} {
			if cmd.Flags().Changed(name) {
				return a.fail(verify.Usagef("--%s cannot be combined with a package reference", name), "")
			}
		}
		ref, err := selector.ParseArg(args[0])
		if err != nil {
			return a.fail(verify.Usagef("%v", err), "")
		}
		if sub, err = verify.NewPackageRef(projectType, ref); err != nil {
			return a.fail(err, "")
		}
	} else {
		include := opts.include
		if len(include) == 0 {
			include = project.Include
		}
		files, err := selector.Select(opts.dir, include, a.sink.Warn)
		if err != nil {
			return a.fail(verify.Usagef("%v", err), "")
		}
		sub, err = verify.NewLocalFiles(projectType,
			firstNonEmpty(opts.packageName, project.Package),
			firstNonEmpty(opts.source, project.Source),
			files)
		if err != nil {
			return a.fail(err, "")
		}
		a.log.Debug("files selected", "count", len(files))
	}

	client, err := a.client()
	if err != nil {
		return a.fail(err, "")
	}

	timeout := a.cfg.PollTimeout
	if opts.timeout > 0 {
		timeout = opts.timeout
	}

	orchestrator := verify.New(client, verify.Options{
		Logger:           a.log,
		Reporter:         a.sink,
		StreamLogs:       !opts.noStream && !a.cfg.JSON,
		PollTimeout:      timeout,
		PollInitialDelay: a.cfg.PollInitialDelay,
		PollMaxDelay:     a.cfg.PollMaxDelay,
	})

	outcome, err := orchestrator.Run(cmd.Context(), sub)
	if err != nil {
		var timeoutErr *verify.RunTimeoutError
		runID := ""
		if errors.As(err, &timeoutErr) {
			runID = timeoutErr.RunID
		}
		return a.fail(err, runID)
	}

	a.sink.Outcome(outcome)
	if outcome.ExitCode != verify.ExitOK {
		return &exitError{code: outcome.ExitCode}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
