package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	domain "github.com/turtacn/molscore/internal/domain/scoring"
	"github.com/turtacn/molscore/pkg/client"
	"github.com/turtacn/molscore/pkg/errors"
	types "github.com/turtacn/molscore/pkg/types/scoring"
)

type scoreOptions struct {
	file    string
	options []string
	server  string
}

// NewScoreCmd creates the score command.
func NewScoreCmd() *cobra.Command {
	opts := &scoreOptions{}
	cmd := &cobra.Command{
		Use:   "score <scorer> [SMILES...]",
		Short: "Score SMILES strings with a scoring function",
		Long: `Score SMILES strings given as arguments, in a file (--file) or on stdin.
Files hold one SMILES per line; anything after the first whitespace is ignored
and blank lines are skipped. Invalid SMILES receive the scorer's sentinel.`,
		Example: `  molscore score no_sulphur CCO CCS
  molscore score tanimoto --option k=0.8 --file library.smi -o table
  molscore score activity_model --server http://scoring:8080 < batch.smi`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd, args[0], args[1:], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "read SMILES from file (- for stdin)")
	cmd.Flags().StringArrayVar(&opts.options, "option", nil, "scorer option key=value (repeatable)")
	cmd.Flags().StringVar(&opts.server, "server", "", "score on a remote molscore server instead of locally")
	return cmd
}

func runScore(cmd *cobra.Command, scorer string, args []string, opts *scoreOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	scorerOpts, err := domain.ParseOptions(opts.options)
	if err != nil {
		return err
	}
	smiles, err := collectSMILES(cmd.InOrStdin(), args, opts.file)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd, cliCtx)
	defer cancel()

	var resp *types.ScoreResponse
	if opts.server != "" {
		resp, err = scoreRemote(ctx, opts.server, cliCtx, scorer, smiles, scorerOpts)
	} else {
		resp, err = scoreLocal(ctx, cliCtx, scorer, smiles, scorerOpts)
	}
	if err != nil {
		return err
	}
	if len(resp.Scores) != len(smiles) {
		return errors.Newf(errors.ErrCodeInternal, "got %d scores for %d SMILES", len(resp.Scores), len(smiles))
	}
	return PrintResult(cmd, newScoreResult(resp, smiles))
}

func scoreLocal(ctx context.Context, cliCtx *CLIContext, scorer string, smiles []string, opts domain.Options) (*types.ScoreResponse, error) {
	comps, err := buildComponents(ctx, cliCtx.Config, cliCtx.Logger, false)
	if err != nil {
		return nil, err
	}
	defer comps.Close()
	return comps.Service.Score(ctx, &types.ScoreRequest{
		Scorer:  scorer,
		SMILES:  smiles,
		Options: opts,
		Source:  types.SourceCLI,
	})
}

func scoreRemote(ctx context.Context, server string, cliCtx *CLIContext, scorer string, smiles []string, opts domain.Options) (*types.ScoreResponse, error) {
	c, err := newAPIClient(server, cliCtx)
	if err != nil {
		return nil, err
	}
	return c.Scorers().Score(ctx, scorer, smiles, opts)
}

// tokenEnv names the variable holding the bearer token sent to remote
// servers that require authentication.
const tokenEnv = "MOLSCORE_TOKEN"

func newAPIClient(server string, cliCtx *CLIContext) (*client.Client, error) {
	opts := []client.Option{
		client.WithTimeout(cliCtx.Timeout),
		client.WithUserAgent("molscore-cli/" + Version),
	}
	if token := os.Getenv(tokenEnv); token != "" {
		opts = append(opts, client.WithAPIKey(token))
	}
	return client.NewClient(server, opts...)
}

// collectSMILES returns args when given, otherwise the SMILES read from
// file or stdin.
func collectSMILES(stdin io.Reader, args []string, file string) ([]string, error) {
	if len(args) > 0 {
		if file != "" {
			return nil, errors.InvalidParam("give SMILES as arguments or with --file, not both")
		}
		return args, nil
	}

	r := stdin
	if file != "" && file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInvalidParam, "cannot open SMILES file").WithDetail(file)
		}
		defer f.Close()
		r = f
	}
	return readSMILES(r)
}

func readSMILES(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		out = append(out, fields[0])
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidParam, "failed to read SMILES")
	}
	return out, nil
}

type scoredItem struct {
	SMILES string  `json:"smiles"`
	Score  float32 `json:"score"`
}

type scoreResult struct {
	RequestID  string       `json:"request_id"`
	Scorer     string       `json:"scorer"`
	DurationMs int64        `json:"duration_ms"`
	Results    []scoredItem `json:"results"`
}

func newScoreResult(resp *types.ScoreResponse, smiles []string) *scoreResult {
	res := &scoreResult{
		RequestID:  resp.RequestID,
		Scorer:     resp.Scorer,
		DurationMs: resp.DurationMs,
		Results:    make([]scoredItem, len(resp.Scores)),
	}
	for i, s := range resp.Scores {
		res.Results[i] = scoredItem{SMILES: smiles[i], Score: s}
	}
	return res
}

func formatScore(s float32) string {
	return strconv.FormatFloat(float64(s), 'f', 4, 32)
}

// String renders one "score<TAB>smiles" line per molecule.
func (r *scoreResult) String() string {
	var sb strings.Builder
	for _, it := range r.Results {
		fmt.Fprintf(&sb, "%s\t%s\n", formatScore(it.Score), it.SMILES)
	}
	return sb.String()
}

func (r *scoreResult) TableHeaders() []string {
	return []string{"#", "SMILES", "Score"}
}

func (r *scoreResult) TableRows() [][]string {
	rows := make([][]string, len(r.Results))
	for i, it := range r.Results {
		score := formatScore(it.Score)
		switch {
		case it.Score > 0:
			score = color.GreenString(score)
		case it.Score < 0:
			score = color.RedString(score)
		}
		rows[i] = []string{strconv.Itoa(i + 1), it.SMILES, score}
	}
	return rows
}
