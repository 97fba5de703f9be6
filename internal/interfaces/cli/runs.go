package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	app "github.com/turtacn/molscore/internal/application/scoring"
	"github.com/turtacn/molscore/internal/config"
	"github.com/turtacn/molscore/internal/infrastructure/database/postgres"
	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscore/pkg/errors"
	types "github.com/turtacn/molscore/pkg/types/scoring"
)

// NewRunsCmd creates the runs command.
func NewRunsCmd() *cobra.Command {
	var (
		server string
		scorer string
		limit  int
		since  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "runs [request-id]",
		Short: "Show the scoring run history",
		Long:  "Without arguments runs lists recent scoring runs, newest first.\nWith a request id it shows that run.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			filter := types.RunFilter{Scorer: scorer, Limit: limit}
			if since > 0 {
				filter.Since = time.Now().Add(-since).UTC()
			}

			if server != "" {
				c, err := newAPIClient(server, cliCtx)
				if err != nil {
					return err
				}
				if len(args) == 1 {
					run, err := c.Runs().Get(ctx, args[0])
					if err != nil {
						return err
					}
					return PrintResult(cmd, runDetail(*run))
				}
				runs, err := c.Runs().List(ctx, filter)
				if err != nil {
					return err
				}
				return PrintResult(cmd, runList(runs))
			}

			repo, closeRepo, err := openRunRepository(ctx, cliCtx.Config, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer closeRepo()
			if len(args) == 1 {
				run, err := repo.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return PrintResult(cmd, runDetail(*run))
			}
			return listLocalRuns(ctx, cmd, repo, filter)
		},
	}
	f := cmd.Flags()
	f.StringVar(&server, "server", "", "read the history of a remote molscore server")
	f.StringVar(&scorer, "scorer", "", "only show runs of this scorer")
	f.IntVar(&limit, "limit", types.DefaultRunLimit, "maximum number of runs to show")
	f.DurationVar(&since, "since", 0, "only show runs newer than this (e.g. 24h)")

	cmd.AddCommand(newRunsPurgeCmd())
	return cmd
}

func newRunsPurgeCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete old scoring runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return errors.InvalidParam("--older-than must be positive")
			}
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			repo, closeRepo, err := openRunRepository(ctx, cliCtx.Config, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer closeRepo()
			n, err := repo.Purge(ctx, time.Now().Add(-olderThan).UTC())
			if err != nil {
				return err
			}
			return PrintResult(cmd, fmt.Sprintf("deleted %d runs", n))
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "delete runs older than this (e.g. 720h)")
	_ = cmd.MarkFlagRequired("older-than")
	return cmd
}

func listLocalRuns(ctx context.Context, cmd *cobra.Command, reader app.RunReader, filter types.RunFilter) error {
	runs, err := reader.List(ctx, filter)
	if err != nil {
		return err
	}
	out := make(runList, len(runs))
	for i, r := range runs {
		out[i] = *r
	}
	return PrintResult(cmd, out)
}

// openRunRepository connects to the run history database without building
// the scoring service.
func openRunRepository(ctx context.Context, cfg *config.Config, logger logging.Logger) (*postgres.RunRepository, func(), error) {
	if !cfg.Postgres.Enabled {
		return nil, nil, errRunHistoryDisabled()
	}
	conn, err := postgres.NewConnection(ctx, postgresConfig(cfg), logger)
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewRunRepository(conn, logger), func() { _ = conn.Close() }, nil
}

func errRunHistoryDisabled() error {
	return errors.New(errors.ErrCodeFeatureDisabled, "run history is disabled").
		WithDetail("set postgres.enabled or MOLSCORE_POSTGRES_ENABLED")
}

type runList []types.ScoreRun

func (l runList) String() string {
	var sb strings.Builder
	for _, r := range l {
		fmt.Fprintf(&sb, "%s\t%s\t%s\t%d\t%.4f\t%s\n",
			r.CreatedAt.Format(time.RFC3339), r.RequestID, r.Scorer, r.Molecules, r.MeanScore, runStatus(r))
	}
	return sb.String()
}

func (l runList) TableHeaders() []string {
	return []string{"Created", "Request ID", "Scorer", "Source", "Molecules", "Valid", "Mean", "Max", "Duration", "Status"}
}

func (l runList) TableRows() [][]string {
	rows := make([][]string, len(l))
	for i, r := range l {
		rows[i] = []string{
			r.CreatedAt.Format(time.RFC3339),
			r.RequestID,
			r.Scorer,
			r.Source,
			fmt.Sprintf("%d", r.Molecules),
			fmt.Sprintf("%d", r.Valid),
			fmt.Sprintf("%.4f", r.MeanScore),
			fmt.Sprintf("%.4f", r.MaxScore),
			fmt.Sprintf("%dms", r.DurationMs),
			runStatus(r),
		}
	}
	return rows
}

type runDetail types.ScoreRun

func (d runDetail) String() string {
	r := types.ScoreRun(d)
	var sb strings.Builder
	fmt.Fprintf(&sb, "request_id:\t%s\n", r.RequestID)
	fmt.Fprintf(&sb, "scorer:\t%s\n", r.Scorer)
	if r.Source != "" {
		fmt.Fprintf(&sb, "source:\t%s\n", r.Source)
	}
	for _, k := range sortedKeys(r.Options) {
		fmt.Fprintf(&sb, "option:\t%s=%v\n", k, r.Options[k])
	}
	fmt.Fprintf(&sb, "molecules:\t%d\n", r.Molecules)
	fmt.Fprintf(&sb, "valid:\t%d\n", r.Valid)
	fmt.Fprintf(&sb, "mean_score:\t%.4f\n", r.MeanScore)
	fmt.Fprintf(&sb, "max_score:\t%.4f\n", r.MaxScore)
	fmt.Fprintf(&sb, "duration:\t%dms\n", r.DurationMs)
	fmt.Fprintf(&sb, "created_at:\t%s\n", r.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "status:\t%s\n", runStatus(r))
	return sb.String()
}

func runStatus(r types.ScoreRun) string {
	if r.Failed() {
		return color.RedString(r.ErrorCode)
	}
	return color.GreenString("ok")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
