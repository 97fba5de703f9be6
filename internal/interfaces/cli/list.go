package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	types "github.com/turtacn/molscore/pkg/types/scoring"
)

// NewListCmd creates the list command.
func NewListCmd() *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the available scoring functions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()

			var infos []types.ScorerInfo
			if server != "" {
				c, err := newAPIClient(server, cliCtx)
				if err != nil {
					return err
				}
				if infos, err = c.Scorers().List(ctx); err != nil {
					return err
				}
			} else {
				comps, err := buildComponents(ctx, cliCtx.Config, cliCtx.Logger, false)
				if err != nil {
					return err
				}
				defer comps.Close()
				infos = comps.Service.ListScorers(ctx)
			}
			return PrintResult(cmd, scorerList(infos))
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "list the scorers of a remote molscore server")
	return cmd
}

type scorerList []types.ScorerInfo

func (l scorerList) String() string {
	var sb strings.Builder
	for _, s := range l {
		sb.WriteString(s.Name)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (l scorerList) TableHeaders() []string { return []string{"Name", "Invalid SMILES score"} }

func (l scorerList) TableRows() [][]string {
	rows := make([][]string, len(l))
	for i, s := range l {
		rows[i] = []string{s.Name, fmt.Sprintf("%g", s.Sentinel)}
	}
	return rows
}
