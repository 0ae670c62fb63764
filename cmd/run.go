package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bnema/waycheck/internal/client"
	"github.com/bnema/waycheck/internal/config"
	"github.com/bnema/waycheck/internal/conformance"
	"github.com/bnema/waycheck/internal/logger"
	"github.com/bnema/waycheck/internal/testcompositor"
	"github.com/bnema/waycheck/internal/ui"
	"github.com/bnema/waycheck/shim"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// ErrCasesFailed is returned when at least one case failed.
var ErrCasesFailed = errors.New("conformance cases failed")

var (
	runShim    string
	runBuiltin bool
	runCases   []string
	runTimeout time.Duration
	runReport  string
	runPlain   bool
	runPick    bool
)

var runCmd = &cobra.Command{
	Use:   "run [flags] [-- shim args...]",
	Short: "Run conformance cases against a compositor",
	Long: `Run conformance cases against a compositor loaded through a display server
shim. The shim is a Go plugin exporting CreateServer, DestroyServer,
StartServer, StopServer and optionally CreateClientSocket. Arguments after
"--" are passed to CreateServer unmodified.`,
	RunE: runConformance,
}

func init() {
	runCmd.Flags().StringVar(&runShim, "shim", "", "path to the display server shim plugin (overrides shim.path)")
	runCmd.Flags().BoolVar(&runBuiltin, "builtin", false, "run against the built-in reference compositor")
	runCmd.Flags().StringSliceVar(&runCases, "case", nil, "case to run, repeatable (default all)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "per-case timeout (overrides run.timeout)")
	runCmd.Flags().StringVar(&runReport, "report", "", "write a YAML report to this file (overrides report.path)")
	runCmd.Flags().BoolVar(&runPlain, "plain", false, "print results line by line instead of the live view")
	runCmd.Flags().BoolVar(&runPick, "pick", false, "choose the cases to run interactively")
}

func runConformance(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	funcs, label, err := resolveShim(cfg)
	if err != nil {
		return err
	}

	names := cfg.Run.Cases
	if len(runCases) > 0 {
		names = runCases
	}
	if runPick {
		if names, err = pickCases(names); err != nil {
			return err
		}
	}
	cases, err := conformance.Select(names)
	if err != nil {
		return err
	}

	timeout := cfg.Run.Timeout
	if cmd.Flags().Changed("timeout") {
		timeout = runTimeout
	}
	reportPath := cfg.Report.Path
	if runReport != "" {
		reportPath = runReport
	}

	runner := &conformance.Runner{
		Funcs:   funcs,
		Args:    serverArgs(os.Args[0], shimArgs(cmd, args, cfg.Shim.Args)),
		Timeout: timeout,
	}
	if cfg.Display.Name != "" {
		runner.ClientOptions = append(runner.ClientOptions, client.WithDisplayName(cfg.Display.Name))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ui.FormatHeader(ui.IconRun, "Running "+label))

	var report *conformance.Report
	if runPlain || !isTerminal(out) {
		report = runPlainOutput(ctx, runner, cases, out)
	} else {
		report, err = runLiveOutput(ctx, runner, cases)
		if err != nil {
			return err
		}
	}
	report.Shim = label

	if reportPath != "" {
		if err := report.WriteFile(reportPath); err != nil {
			return err
		}
		logger.Infof("Report written to %s", reportPath)
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if !report.OK() {
		return fmt.Errorf("%w: %d of %d", ErrCasesFailed, report.Failed, len(report.Results))
	}
	return nil
}

// pickCases asks which cases to run, preselecting the given names.
func pickCases(preselected []string) ([]string, error) {
	chosen := map[string]bool{}
	for _, name := range preselected {
		chosen[name] = true
	}

	var options []huh.Option[string]
	for _, c := range conformance.Cases() {
		options = append(options, huh.NewOption(c.Name, c.Name).Selected(chosen[c.Name]))
	}

	var selected []string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Cases to run").
				Options(options...).
				Value(&selected).
				Validate(func(v []string) error {
					if len(v) == 0 {
						return errors.New("select at least one case")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("case selection cancelled: %w", err)
	}
	return selected, nil
}

func resolveShim(cfg *config.Config) (*shim.Funcs, string, error) {
	path := cfg.Shim.Path
	if runShim != "" {
		path = runShim
	}

	switch {
	case runBuiltin:
		return testcompositor.Funcs(), "built-in compositor", nil
	case path == "":
		return nil, "", errors.New("no shim given: use --shim, --builtin or set shim.path")
	}

	funcs, err := shim.Load(path)
	if err != nil {
		return nil, "", err
	}
	return funcs, path, nil
}

// shimArgs returns the arguments after "--", or the configured ones when
// there are none.
func shimArgs(cmd *cobra.Command, args, configured []string) []string {
	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		return args[dash:]
	}
	return configured
}

// serverArgs builds the argument list handed to CreateServer, led by the
// program name like a process argv.
func serverArgs(program string, args []string) []string {
	return append([]string{program}, args...)
}

func runPlainOutput(ctx context.Context, runner *conformance.Runner, cases []conformance.Case, out io.Writer) *conformance.Report {
	runner.OnResult = func(res conformance.Result) {
		fmt.Fprintln(out, ui.FormatCaseResult(res.Passed, res.Name, res.Duration, res.Message))
	}
	report := runner.Run(ctx, cases)
	fmt.Fprintln(out)
	fmt.Fprintln(out, ui.FormatSummary(report.Passed, report.Failed))
	return report
}

func runLiveOutput(ctx context.Context, runner *conformance.Runner, cases []conformance.Case) (*conformance.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := ui.NewProgressModel()
	p := tea.NewProgram(model)

	runner.OnStart = func(c conformance.Case) {
		p.Send(ui.CaseStartedMsg{Name: c.Name})
	}
	runner.OnResult = func(res conformance.Result) {
		p.Send(ui.CaseResultMsg{
			Name:     res.Name,
			Passed:   res.Passed,
			Duration: res.Duration,
			Message:  res.Message,
		})
	}

	reports := make(chan *conformance.Report, 1)
	go func() {
		report := runner.Run(ctx, cases)
		p.Send(ui.RunDoneMsg{Passed: report.Passed, Failed: report.Failed})
		reports <- report
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-reports
		return nil, fmt.Errorf("failed to run progress view: %w", err)
	}
	if model.Aborted() {
		cancel()
	}
	return <-reports, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}
