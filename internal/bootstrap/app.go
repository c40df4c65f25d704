package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"

	"exam-backend/internal/assemble"
	"exam-backend/internal/cleanup"
	"exam-backend/internal/extract"
	"exam-backend/internal/jobs"
	"exam-backend/internal/progress"
	"exam-backend/internal/queue"
	"exam-backend/internal/services/health"
	"exam-backend/internal/shared/config"
	"exam-backend/internal/shared/server"
	"exam-backend/internal/shared/storage/db"
	"exam-backend/internal/shared/storage/object"
	localstore "exam-backend/internal/shared/storage/object/local"
)

// App holds shared dependencies.
type App struct {
	Config      config.Config
	Router      *gin.Engine
	DB          *sql.DB
	Store       object.Store
	Broadcaster *progress.Broadcaster
	JobsRepo    jobs.Repo
	Machine     *jobs.Machine
	Runner      *jobs.Runner
	JobService  *jobs.Service
	Queue       *queue.RedisQueue
	LocalRuns   *queue.LocalDispatcher
	Sweeper     *cleanup.Sweeper
	Health      *health.Service
}

// Build prepares shared dependencies and the HTTP router.
func Build(cfg config.Config) (*App, error) {
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store := localstore.New(cfg.StoreDir)
	broadcaster := progress.NewBroadcaster()

	var repo jobs.Repo
	if sqlDB != nil {
		repo = &jobs.PGRepo{DB: sqlDB}
	} else {
		repo = jobs.NewMemoryRepo()
	}

	machine := jobs.NewMachine(repo, broadcaster)
	runner := &jobs.Runner{
		Machine:   machine,
		Extractor: storeExtractor{store: store},
		Assembler: assemble.New(store),
	}

	app := &App{
		Config:      cfg,
		DB:          sqlDB,
		Store:       store,
		Broadcaster: broadcaster,
		JobsRepo:    repo,
		Machine:     machine,
		Runner:      runner,
		Health:      health.NewService(),
	}

	dispatcher := buildDispatcher(ctx, cfg, app)

	app.JobService = &jobs.Service{
		Repo:           repo,
		Store:          store,
		Dispatcher:     dispatcher,
		Retention:      cfg.Retention,
		MaxUploadBytes: int64(cfg.MaxUploadMB) << 20,
	}
	app.Sweeper = &cleanup.Sweeper{
		Repo:     repo,
		Store:    store,
		Interval: cfg.CleanupInterval,
	}

	if sqlDB != nil {
		app.Health.Register("database", func(ctx context.Context) error {
			return sqlDB.PingContext(ctx)
		})
	}
	if app.Queue != nil {
		app.Health.Register("redis", app.Queue.Ping)
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:     cfg,
		JobHandler: jobs.NewHandler(app.JobService, broadcaster),
		Health:     app.Health,
	})
	return app, nil
}

// Close releases app resources. Safe to call once during shutdown.
func (a *App) Close() {
	if a.LocalRuns != nil {
		a.LocalRuns.Wait()
	}
	if a.Broadcaster != nil {
		a.Broadcaster.Close()
	}
	if a.Queue != nil {
		_ = a.Queue.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

// Addr returns the listen address for the configured port.
func (a *App) Addr() string {
	return ":" + a.Config.Port
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if cfg.DatabaseURL == "" {
		if cfg.Env == "production" {
			return nil, fmt.Errorf("DATABASE_URL is required in production")
		}
		log.Printf("bootstrap: DATABASE_URL empty; using in-memory repository")
		return nil, nil
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if cfg.Env == "production" {
			return nil, err
		}
		log.Printf("bootstrap: database connect failed; using in-memory repository: %v", err)
		return nil, nil
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		if cfg.Env == "production" {
			return nil, err
		}
		log.Printf("bootstrap: migrations failed; using in-memory repository: %v", err)
		return nil, nil
	}
	return sqlDB, nil
}

func buildDispatcher(ctx context.Context, cfg config.Config, app *App) jobs.Dispatcher {
	if cfg.RedisAddr != "" {
		q := queue.NewRedisQueue(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.QueueName)
		if err := q.Ping(ctx); err != nil {
			log.Printf("bootstrap: redis unreachable; running jobs in-process: %v", err)
			_ = q.Close()
		} else {
			app.Queue = q
			return q
		}
	}
	app.LocalRuns = queue.NewLocalDispatcher(app.Runner, cfg.WorkerConcurrency, cfg.JobTimeout)
	return app.LocalRuns
}

// storeExtractor adapts the object store to the runner's extractor contract.
type storeExtractor struct {
	store object.Store
}

func (e storeExtractor) ExtractPages(ctx context.Context, path string, startPage, endPage int) (string, error) {
	return extract.ExtractPages(ctx, e.store, path, startPage, endPage)
}
