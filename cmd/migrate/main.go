// Package main is the academic-core maintenance CLI. It applies or rolls back
// the database schema and seeds the subject catalogue from a curriculum file.
//
// Usage:
//
//	migrate [flags] up|down|status
//	migrate -seed plan.yaml up
//	migrate -seed plan.yaml -dry-run
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/unadm-hub/academic-core/config"
	"github.com/unadm-hub/academic-core/internal/application/command"
	"github.com/unadm-hub/academic-core/internal/domain/subject"
	"github.com/unadm-hub/academic-core/internal/infrastructure/curriculum"
	"github.com/unadm-hub/academic-core/internal/infrastructure/persistence/memory"
	"github.com/unadm-hub/academic-core/internal/infrastructure/persistence/postgres"
	"github.com/unadm-hub/academic-core/internal/infrastructure/persistence/redis"
	"github.com/unadm-hub/academic-core/pkg/logger"
)

type options struct {
	envFile string
	seed    string
	dryRun  bool
	action  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var opts options

	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.StringVar(&opts.envFile, "env", ".env", "path to the .env file")
	fs.StringVar(&opts.seed, "seed", "", "curriculum YAML file to load into the subject catalogue")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "validate the curriculum without touching the database")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	switch fs.NArg() {
	case 0:
		if opts.seed == "" {
			return opts, errors.New("usage: migrate [flags] up|down|status")
		}
	case 1:
		opts.action = fs.Arg(0)
	default:
		return opts, fmt.Errorf("unexpected arguments: %v", fs.Args()[1:])
	}

	switch opts.action {
	case "", "up", "down", "status":
	default:
		return opts, fmt.Errorf("unknown action %q: want up, down or status", opts.action)
	}
	if opts.dryRun && opts.seed == "" {
		return opts, errors.New("-dry-run needs -seed")
	}

	return opts, nil
}

func run(ctx context.Context, opts options) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.LoadFile(opts.envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log, err := logger.New(logger.Options{
		Development: cfg.IsDevelopment(),
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
	})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log = log.With(zap.String("app", cfg.App.Name), zap.String("env", string(cfg.App.Environment)))
	log.Info("starting migrate",
		zap.String("action", opts.action),
		zap.Bool("dry_run", opts.dryRun),
		zap.String("timezone", cfg.App.Timezone),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. CURRICULUM (parsed before any connection so a bad file fails fast)
	// ─────────────────────────────────────────────────────────────────────────
	var plan *curriculum.Curriculum
	if opts.seed != "" {
		plan, err = curriculum.NewLoader().LoadFile(opts.seed)
		if err != nil {
			return fmt.Errorf("failed to load curriculum %s: %w", opts.seed, err)
		}
		log.Info("curriculum loaded", zap.String("file", opts.seed), zap.Int("subjects", len(plan.Entries)))
	}

	if opts.dryRun {
		return seed(ctx, plan, memory.NewSubjectRepository(), log)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. DATABASE
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	conn, err := postgres.NewConnection(ctx, postgres.FromAppConfig(cfg.Database), log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		conn.Close()
	}()
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. MIGRATIONS
	// ─────────────────────────────────────────────────────────────────────────
	if err := migrate(ctx, postgres.NewMigrator(conn), opts.action, log); err != nil {
		return err
	}

	if plan == nil {
		return nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. SUBJECT CACHE (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var subjects subject.Repository = postgres.NewSubjectRepository(conn)

	if cfg.Redis.Enabled {
		cache, err := redis.NewCache(ctx, redisConfig(cfg.Redis))
		if err != nil {
			log.Warn("redis unavailable, seeding without cache", zap.Error(err))
		} else {
			defer cache.Close()
			subjects = redis.NewSubjectCache(subjects, cache, cfg.Redis.SubjectTTL, log,
				redis.NewMetrics(prometheus.DefaultRegisterer)).
				WithBreaker(redis.NewBreaker(log))
			log.Info("subject cache enabled", zap.Duration("ttl", cfg.Redis.SubjectTTL))
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. SEED
	// ─────────────────────────────────────────────────────────────────────────
	return seed(ctx, plan, subjects, log)
}

func migrate(ctx context.Context, m *postgres.Migrator, action string, log *zap.Logger) error {
	switch action {
	case "up":
		n, err := m.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date", zap.Int("applied", n))

	case "down":
		n, err := m.Rollback(ctx)
		if err != nil {
			return fmt.Errorf("failed to roll back: %w", err)
		}
		log.Info("rolled back", zap.Int("reverted", n))

	case "status":
		migrations, err := m.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to read migration status: %w", err)
		}
		for _, mig := range migrations {
			state := "pending"
			if mig.IsApplied {
				state = "applied " + mig.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%04d  %-32s %s\n", mig.Version, mig.Name, state)
		}
	}
	return nil
}

// seed registers every subject of plan in prerequisite order. Subjects whose
// code is already registered are skipped, so seeding twice is harmless.
func seed(ctx context.Context, plan *curriculum.Curriculum, subjects subject.Repository, log *zap.Logger) error {
	handler := command.NewRegisterSubjectHandler(subjects, log)

	var created, skipped int
	for _, e := range plan.Entries {
		_, err := handler.Handle(ctx, registerCommand(e))
		switch {
		case err == nil:
			created++
		case command.IsAlreadyRegistered(err):
			skipped++
			log.Debug("subject already registered", logger.SubjectCode(e.Code))
		default:
			return fmt.Errorf("failed to seed subject %s: %w", e.Code, err)
		}
	}

	log.Info("curriculum seeded", zap.Int("created", created), zap.Int("skipped", skipped))
	return nil
}

func registerCommand(e curriculum.Entry) command.RegisterSubjectCommand {
	return command.RegisterSubjectCommand{
		Module:            e.Module,
		Semester:          e.Semester,
		Block:             e.Block,
		Code:              e.Code,
		Acronym:           e.Acronym,
		Name:              e.Name,
		Credits:           e.Credits,
		PrerequisiteCodes: e.Prerequisites,
	}
}

func redisConfig(c config.RedisConfig) redis.Config {
	rc := redis.DefaultConfig()
	rc.Host = c.Host
	rc.Port = c.Port
	rc.Password = c.Password
	rc.DB = c.DB
	rc.PoolSize = c.PoolSize
	rc.SubjectTTL = c.SubjectTTL
	return rc
}
