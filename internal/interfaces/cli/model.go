package cli

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/molscore/internal/config"
	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	activity "github.com/turtacn/molscore/internal/intelligence/activity_model"
	"github.com/turtacn/molscore/pkg/errors"
)

// NewModelCmd creates the model command group.
func NewModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Manage activity classifier artifacts",
	}
	cmd.AddCommand(newModelPushCmd(), newModelInspectCmd())
	return cmd
}

func newModelPushCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:     "push <file>",
		Short:   "Validate a classifier artifact and upload it to object storage",
		Example: `  molscore model push clf.json.gz --to s3://models/drd2/clf.json.gz`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			bucket, key, err := activity.ParseObjectLocation(to)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeNotFound, "failed to read classifier").WithDetail(args[0])
			}
			clf, err := activity.Decode(data)
			if err != nil {
				return err
			}

			store, err := newModelStore(cliCtx.Config, cliCtx.Logger)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()
			if err := store.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data))); err != nil {
				return err
			}
			cliCtx.Logger.Info("classifier uploaded",
				logging.String("location", to),
				logging.Int("n_features", clf.NumFeatures()),
			)
			return PrintResult(cmd, &modelInfo{Location: to, NumFeatures: clf.NumFeatures(), Bytes: len(data)})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "destination as s3://bucket/key")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newModelInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [location]",
		Short: "Load a classifier artifact and print its shape",
		Long: `Load a classifier from a file path, file:// URL or s3://bucket/key.
Without an argument the configured scoring.model_location is inspected.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			location := cliCtx.Config.Scoring.ModelLocation
			if len(args) == 1 {
				location = args[0]
			}
			if location == "" {
				return errors.InvalidParam("no classifier location given")
			}

			loader, err := newLoader(cliCtx.Config, location, cliCtx.Logger)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd, cliCtx)
			defer cancel()
			clf, err := loader.Load(ctx, location)
			if err != nil {
				return err
			}
			return PrintResult(cmd, &modelInfo{Location: location, NumFeatures: clf.NumFeatures()})
		},
	}
}

// newLoader builds a classifier loader, attaching object storage only for
// s3:// locations.
func newLoader(cfg *config.Config, location string, logger logging.Logger) (*activity.Loader, error) {
	opts := []activity.LoaderOption{
		activity.WithLogger(logger),
		activity.WithMaxBytes(cfg.Scoring.MaxModelBytes),
	}
	if strings.HasPrefix(location, "s3://") {
		store, err := newModelStore(cfg, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, activity.WithObjectStore(store))
	}
	return activity.NewLoader(opts...), nil
}

type modelInfo struct {
	Location    string `json:"location"`
	NumFeatures int    `json:"n_features"`
	Bytes       int    `json:"bytes,omitempty"`
}

func (m *modelInfo) String() string {
	return fmt.Sprintf("%s\tn_features=%d\n", m.Location, m.NumFeatures)
}

func (m *modelInfo) TableHeaders() []string { return []string{"LOCATION", "N_FEATURES"} }

func (m *modelInfo) TableRows() [][]string {
	return [][]string{{m.Location, fmt.Sprint(m.NumFeatures)}}
}
