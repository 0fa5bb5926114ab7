package main

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/primary-workspace/pulseai-hackshodh/internal/alert"
	"github.com/primary-workspace/pulseai-hackshodh/internal/baseline"
	"github.com/primary-workspace/pulseai-hackshodh/internal/carescore"
	"github.com/primary-workspace/pulseai-hackshodh/internal/ingest"
	"github.com/primary-workspace/pulseai-hackshodh/internal/normalize"
	"github.com/primary-workspace/pulseai-hackshodh/internal/source"
	"github.com/primary-workspace/pulseai-hackshodh/internal/store"
	"github.com/primary-workspace/pulseai-hackshodh/internal/token"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "pulse.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initSource builds the configured export-file adapter. Drive credentials go
// through the Redis cache when an address is configured; FTP and S3 carry
// credentials in their adapter options.
func initSource(ctx context.Context) (source.Adapter, error) {
	switch cfg.Source.Kind {
	case "drive":
		if cfg.Source.Token == "" {
			return nil, eris.New("source token is required (PULSE_SOURCE_TOKEN)")
		}
		var tokens source.TokenProvider = token.NewStatic(cfg.Source.Token)
		if cfg.Redis.Addr != "" {
			client := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			tokens = token.NewCache(client, token.NewStatic(cfg.Source.Token), cfg.Redis.CredentialTTL())
			zap.L().Info("credential cache enabled", zap.String("addr", cfg.Redis.Addr))
		}
		return source.NewDriveAdapter(tokens, source.DriveOptions{
			BaseURL:         cfg.Source.Drive.BaseURL,
			PageSize:        cfg.Source.Drive.PageSize,
			RPS:             cfg.Source.Drive.RPS,
			DownloadTimeout: cfg.Sync.DownloadTimeout(),
		}), nil
	case "ftp":
		if cfg.Source.FTP.Host == "" {
			return nil, eris.New("ftp host is required (PULSE_SOURCE_FTP_HOST)")
		}
		return source.NewFTPAdapter(source.FTPOptions{
			Host:     cfg.Source.FTP.Host,
			User:     cfg.Source.FTP.User,
			Password: cfg.Source.FTP.Password,
			Root:     cfg.Source.FTP.Root,
			Timeout:  cfg.Sync.DownloadTimeout(),
		}), nil
	case "s3":
		if cfg.Source.S3.Bucket == "" {
			return nil, eris.New("s3 bucket is required (PULSE_SOURCE_S3_BUCKET)")
		}
		return source.NewS3Adapter(ctx, source.S3Options{
			Bucket:   cfg.Source.S3.Bucket,
			Prefix:   cfg.Source.S3.Prefix,
			Region:   cfg.Source.S3.Region,
			Endpoint: cfg.Source.S3.Endpoint,
		})
	default:
		return nil, eris.Errorf("unsupported source kind: %s", cfg.Source.Kind)
	}
}

// initSink builds the normalizing record writer, loading plausibility bounds
// from the configured file when one is set.
func initSink(st store.Store) (*normalize.Writer, error) {
	bounds := normalize.DefaultBounds()
	if cfg.Sync.BoundsFile != "" {
		var err error
		bounds, err = normalize.LoadBounds(cfg.Sync.BoundsFile)
		if err != nil {
			return nil, eris.Wrapf(err, "load bounds file %s", cfg.Sync.BoundsFile)
		}
	}
	return normalize.NewWriter(st, bounds), nil
}

// initCoordinator wires a sync coordinator over the given adapter.
func initCoordinator(st store.Store, src source.Adapter) (*ingest.Coordinator, error) {
	sink, err := initSink(st)
	if err != nil {
		return nil, err
	}
	return ingest.New(st, src, sink, cfg.Sync.DownloadTimeout()), nil
}

// initEngine wires the scoring engine with alert fan-out enabled.
func initEngine(st store.Store) *carescore.Engine {
	return carescore.NewEngine(st, baseline.NewCalculator(st), alert.NewDispatcher(st))
}
