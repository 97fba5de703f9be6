// Package cli implements the molscore command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/turtacn/molscore/internal/config"
	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscore/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Output formats.
const (
	OutputText  = "text"
	OutputJSON  = "json"
	OutputTable = "table"
)

type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	Verbose      bool
	NoColor      bool
	Timeout      time.Duration
}

// CLIContext carries initialised dependencies through the command tree.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	OutputFormat string
	NoColor      bool
	Timeout      time.Duration
}

// NewRootCommand creates the root command with its global flags and
// subcommands.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "molscore",
		Short:   "Score molecules for generative optimisation",
		Long:    "molscore evaluates SMILES strings with pluggable scoring functions\n(no_sulphur, tanimoto, activity_model) locally, over HTTP or from Kafka.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./molscore.yaml if present)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level override (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", OutputText, "output format (text, json, table)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	pf.DurationVar(&opts.Timeout, "timeout", 0, "overall timeout for one-shot commands (0 = none)")

	cmd.AddCommand(
		NewScoreCmd(),
		NewListCmd(),
		NewServeCmd(),
		NewWorkerCmd(),
		NewModelCmd(),
		NewRunsCmd(),
		NewDBCmd(),
		NewVersionCmd(),
	)
	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	switch opts.OutputFormat {
	case OutputText, OutputJSON, OutputTable:
	default:
		return errors.InvalidParam("output format must be text, json or table").WithDetail(opts.OutputFormat)
	}

	cfg, err := initConfig(opts)
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}
	logger, err := initLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}
	logging.SetDefault(logger)
	if opts.NoColor {
		color.NoColor = true
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, &CLIContext{
		Config:       cfg,
		Logger:       logger,
		OutputFormat: opts.OutputFormat,
		NoColor:      opts.NoColor,
		Timeout:      opts.Timeout,
	}))
	return nil
}

// initConfig loads the explicit config file, else ./molscore.yaml when it
// exists, else the environment alone.
func initConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.Load(opts.ConfigPath)
	}
	if _, err := os.Stat("molscore.yaml"); err == nil {
		return config.Load("molscore.yaml")
	}
	return config.LoadFromEnv()
}

// initLogger builds a logger from cfg.Log. Command output goes to stdout,
// so logs go to stderr unless the config names other sinks.
func initLogger(cfg *config.Config, opts *RootOptions) (logging.Logger, error) {
	logCfg := cfg.Log
	if opts.LogLevel != "" {
		logCfg.Level = strings.ToLower(opts.LogLevel)
	}
	if opts.Verbose {
		logCfg.Level = logging.LevelDebug
	}
	if len(logCfg.OutputPaths) == 0 || (len(logCfg.OutputPaths) == 1 && logCfg.OutputPaths[0] == "stdout") {
		logCfg.OutputPaths = []string{"stderr"}
	}
	return logging.NewLogger(logCfg)
}

// GetCLIContext extracts the CLIContext stored by the root command.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.Internal("command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.Internal("CLIContext not found in command context")
	}
	return cliCtx, nil
}

// commandContext applies the global timeout to cmd's context.
func commandContext(cmd *cobra.Command, cliCtx *CLIContext) (context.Context, context.CancelFunc) {
	if cliCtx.Timeout > 0 {
		return context.WithTimeout(cmd.Context(), cliCtx.Timeout)
	}
	return context.WithCancel(cmd.Context())
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		PrintError(rootCmd, err)
		return err
	}
	return nil
}

// tableData is implemented by results that render as a table.
type tableData interface {
	TableHeaders() []string
	TableRows() [][]string
}

// PrintResult writes data in the format chosen on the command line.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	format := OutputText
	if cliCtx, err := GetCLIContext(cmd); err == nil {
		format = cliCtx.OutputFormat
	}

	switch format {
	case OutputJSON:
		return printJSON(cmd.OutOrStdout(), data)
	case OutputTable:
		if td, ok := data.(tableData); ok {
			printTable(cmd.OutOrStdout(), td)
			return nil
		}
	}
	return printText(cmd.OutOrStdout(), data)
}

func printJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printText(w io.Writer, data interface{}) error {
	switch v := data.(type) {
	case string:
		fmt.Fprintln(w, v)
	case fmt.Stringer:
		fmt.Fprint(w, v.String())
	default:
		fmt.Fprintf(w, "%+v\n", v)
	}
	return nil
}

func printTable(w io.Writer, td tableData) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(td.TableHeaders())
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk(td.TableRows())
	table.Render()
}

// PrintError writes err to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", color.RedString("Error:"), err.Error())
}
