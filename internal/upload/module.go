package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/caiocltm/JSExpert-Drive/internal/pkg/pkgconfig"
	"github.com/caiocltm/JSExpert-Drive/internal/pkg/pkgrouter"
	"github.com/caiocltm/JSExpert-Drive/internal/pkg/pkgroutine"
	"github.com/caiocltm/JSExpert-Drive/internal/pkg/pkguid"
	"github.com/caiocltm/JSExpert-Drive/internal/upload/entity"
	"github.com/caiocltm/JSExpert-Drive/internal/upload/event"
	"github.com/caiocltm/JSExpert-Drive/internal/upload/inbound"
	"github.com/caiocltm/JSExpert-Drive/internal/upload/notify"
	"github.com/caiocltm/JSExpert-Drive/internal/upload/storage"
	"github.com/caiocltm/JSExpert-Drive/internal/upload/store"
	"github.com/caiocltm/JSExpert-Drive/internal/upload/usecase"
)

type Dependency struct {
	Config    pkgconfig.Config
	Goroutine *pkgroutine.Manager
	Router    *pkgrouter.Router
	Context   context.Context
	ID        pkguid.StringID
}

func New(dep Dependency) (func(context.Context) error, error) {
	cfg := dep.Config
	if dep.ID == nil {
		dep.ID = pkguid.NewUUID()
	}

	sink, err := storage.New(dep.Context, storage.Config{
		Driver: cfg.GetString("upload.storage.driver"),
		URL:    cfg.GetString("upload.storage.url"),
		S3: storage.S3Config{
			Endpoint: cfg.GetString("upload.storage.s3.endpoint"),
			Region:   cfg.GetString("upload.storage.s3.region"),
		},
		Minio: storage.MinioConfig{
			Endpoint:  cfg.GetString("upload.storage.minio.endpoint"),
			AccessKey: cfg.GetString("upload.storage.minio.access_key"),
			SecretKey: cfg.GetString("upload.storage.minio.secret_key"),
			Bucket:    cfg.GetString("upload.storage.minio.bucket"),
			Region:    cfg.GetString("upload.storage.minio.region"),
			Secure:    cfg.GetBool("upload.storage.minio.secure"),
			PartSize:  uint64(max(cfg.GetInt("upload.storage.minio.part_size"), 0)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	numberID, err := pkguid.NewSnowflake()
	if err != nil {
		_ = sink.Close()
		return nil, fmt.Errorf("init snowflake: %w", err)
	}

	hub := notify.NewHub(notify.HubConfig{
		AllowedOrigins: cfg.GetArray("server.cors.origins"),
		ID:             dep.ID,
	})

	// Progress leaves the pipeline through the bus. With redis enabled the
	// dispatcher publishes to redis and every instance relays its channels
	// to the local hub, so a client may be connected to any instance.
	var (
		target event.Target = hub
		rdb    *redis.Client
	)
	if cfg.GetBool("notify.redis.enabled") {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.GetString("notify.redis.address"),
			Password: cfg.GetString("notify.redis.password"),
			DB:       int(cfg.GetInt("notify.redis.db")),
		})
		prefix := cfg.GetString("notify.redis.channel_prefix")
		target = notify.NewRedisPublisher(rdb, prefix)

		relay := notify.NewRedisRelay(rdb, prefix, hub)
		dep.Goroutine.Go(dep.Context, "redis progress relay", relay.Run)
	}

	bus := event.NewBus(int(cfg.GetInt("notify.bus.buffer")), int(cfg.GetInt("notify.bus.workers")))
	dispatcher := event.NewDispatcher(bus, target, event.ConsumerConfig{
		MaxRetries:  int(cfg.GetInt("notify.bus.max_retries")),
		BaseBackoff: time.Duration(cfg.GetInt("notify.bus.base_backoff_ms")) * time.Millisecond,
	})
	dispatcher.Start()

	uc := usecase.New(usecase.Dependency{
		Store:    store.NewInMemoryStore(),
		Sink:     sink,
		Progress: bus,
		ID:       numberID,
		Settings: settings(cfg),
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc, hub)

	return func(ctx context.Context) error {
		var errs []error
		if err := dispatcher.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop dispatcher: %w", err))
		}
		if err := hub.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close hub: %w", err))
		}
		if rdb != nil {
			if err := rdb.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close redis: %w", err))
			}
		}
		if err := sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
		return errors.Join(errs...)
	}, nil
}

func settings(cfg pkgconfig.Config) usecase.Settings {
	interval := entity.DefaultReportInterval
	if cfg.IsSet("upload.report_interval_ms") {
		interval = time.Duration(cfg.GetInt("upload.report_interval_ms")) * time.Millisecond
	}

	reportFirst := true
	if cfg.IsSet("upload.report_first_chunk") {
		reportFirst = cfg.GetBool("upload.report_first_chunk")
	}

	return usecase.Settings{
		StorageRoot:      cfg.GetString("upload.storage.root"),
		ReportInterval:   interval,
		ReportFirstChunk: reportFirst,
		ReportOnComplete: cfg.GetBool("upload.report_on_complete"),
		DiscardPartial:   cfg.GetBool("upload.discard_partial"),
		ChunkSize:        int(cfg.GetInt("upload.chunk_size")),
		Concurrency:      int(cfg.GetInt("upload.concurrency")),
	}
}
