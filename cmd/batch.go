package main

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/primary-workspace/pulseai-hackshodh/internal/model"
)

var (
	batchUsers    []int64
	batchParallel int
)

var scoreBatchCmd = &cobra.Command{
	Use:   "score-batch",
	Short: "Score many users from their freshest imported values",
	Long: `Computes a CareScore for each listed user from the freshest canonical
record per signal. Without --users, every user that has baselines is scored.
Individual failures are logged and counted; the batch always runs to the end.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		engine := initEngine(st)

		users := batchUsers
		if len(users) == 0 {
			users, err = st.BaselineUserIDs(ctx)
			if err != nil {
				return eris.Wrap(err, "list scoreable users")
			}
		}

		parallel := batchParallel
		if parallel <= 0 {
			parallel = cfg.Batch.MaxConcurrentUsers
		}

		return scoreBatch(ctx, users, parallel, func(ctx context.Context, userID int64) (*model.Score, error) {
			return engine.ComputeFromLatest(ctx, userID)
		})
	},
}

// scoreUserFunc is the callback signature for scoring one user.
type scoreUserFunc func(ctx context.Context, userID int64) (*model.Score, error)

// scoreBatch scores users concurrently with bounded parallelism. Individual
// failures are logged and counted; they never abort the batch.
func scoreBatch(ctx context.Context, users []int64, concurrency int, score scoreUserFunc) error {
	if len(users) == 0 {
		zap.L().Info("no users to score")
		return nil
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("scoring batch",
		zap.Int("users", len(users)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for _, userID := range users {
		userID := userID // per-iteration copy; go directive predates Go 1.22 loop semantics
		g.Go(func() error {
			log := zap.L().With(zap.Int64("user_id", userID))

			s, err := score(gctx, userID)
			if err != nil {
				failed.Add(1)
				log.Error("score failed", zap.Error(err))
				return nil // don't abort the batch on individual failure
			}

			succeeded.Add(1)
			log.Info("score computed",
				zap.Float64("aggregate", s.Aggregate),
				zap.String("status", string(s.Status)),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch scoring")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}

func init() {
	scoreBatchCmd.Flags().Int64SliceVar(&batchUsers, "users", nil, "comma-separated user IDs (default: every user with baselines)")
	scoreBatchCmd.Flags().IntVar(&batchParallel, "parallel", 0, "max concurrent users (default from config)")
	rootCmd.AddCommand(scoreBatchCmd)
}
