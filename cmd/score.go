package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/primary-workspace/pulseai-hackshodh/internal/carescore"
	"github.com/primary-workspace/pulseai-hackshodh/internal/model"
)

var (
	scoreUser     int64
	scoreInput    string
	scoreLatest   bool
	scoreSymptoms []string
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Compute and persist a CareScore for a user",
	Long: `Computes the multi-component CareScore for a user from either a JSON
vitals file (--input) or the freshest imported signal values (--latest),
persists it, and dispatches care-team alerts when the aggregate crosses the
alert threshold. The score document is printed to stdout.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if scoreLatest == (scoreInput != "") {
			return eris.New("exactly one of --input or --latest is required")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		engine := initEngine(st)

		var score *model.Score
		if scoreLatest {
			score, err = engine.ComputeFromLatest(ctx, scoreUser, scoreSymptoms...)
		} else {
			var req *carescore.ScoreRequest
			req, err = readScoreRequest(scoreInput)
			if err != nil {
				return err
			}
			req.Symptoms = append(req.Symptoms, scoreSymptoms...)
			score, err = engine.Compute(ctx, scoreUser, req.Current, req.Symptoms)
		}
		if err != nil {
			return eris.Wrapf(err, "score user %d", scoreUser)
		}

		zap.L().Info("score computed",
			zap.Int64("user_id", scoreUser),
			zap.Float64("aggregate", score.Aggregate),
			zap.String("status", string(score.Status)),
			zap.Int("deviations", len(score.Deviations)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(score)
	},
}

// readScoreRequest loads and validates a vitals file through the same schema
// the HTTP API applies.
func readScoreRequest(path string) (*carescore.ScoreRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read vitals file %s", path)
	}
	req, err := carescore.ParseRequest(data)
	if err != nil {
		return nil, eris.Wrapf(err, "parse vitals file %s", path)
	}
	return req, nil
}

func init() {
	scoreCmd.Flags().Int64Var(&scoreUser, "user", 0, "user ID to score (required)")
	scoreCmd.Flags().StringVar(&scoreInput, "input", "", "path to a JSON vitals file")
	scoreCmd.Flags().BoolVar(&scoreLatest, "latest", false, "score the freshest imported values instead of a file")
	scoreCmd.Flags().StringSliceVar(&scoreSymptoms, "symptoms", nil, "comma-separated symptom tags (e.g. dizziness,nausea)")
	_ = scoreCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(scoreCmd)
}
