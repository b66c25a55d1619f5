// Package main prints the tasks of one enrollment as an iCalendar feed.
//
// Usage:
//
//	calendar [-env .env] [-pending] [-o tasks.ics] <enrollment-id>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unadm-hub/academic-core/config"
	"github.com/unadm-hub/academic-core/internal/application/query"
	"github.com/unadm-hub/academic-core/internal/infrastructure/calendar"
	"github.com/unadm-hub/academic-core/internal/infrastructure/persistence/postgres"
	"github.com/unadm-hub/academic-core/pkg/logger"
)

type options struct {
	envFile      string
	output       string
	pendingOnly  bool
	enrollmentID uuid.UUID
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

	fs := flag.NewFlagSet("calendar", flag.ContinueOnError)
	fs.StringVar(&opts.envFile, "env", ".env", "path to the .env file")
	fs.StringVar(&opts.output, "o", "", "write the feed to this file instead of stdout")
	fs.BoolVar(&opts.pendingOnly, "pending", false, "leave out tasks that are done")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if fs.NArg() != 1 {
		return opts, errors.New("usage: calendar [flags] <enrollment-id>")
	}
	id, err := uuid.Parse(fs.Arg(0))
	if err != nil {
		return opts, fmt.Errorf("invalid enrollment id %q: %w", fs.Arg(0), err)
	}
	opts.enrollmentID = id

	return opts, nil
}

func run(ctx context.Context, opts options) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION AND LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.LoadFile(opts.envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Options{
		Development: cfg.IsDevelopment(),
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
	})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	// ─────────────────────────────────────────────────────────────────────────
	// 2. DATABASE
	// ─────────────────────────────────────────────────────────────────────────
	conn, err := postgres.NewConnection(ctx, postgres.FromAppConfig(cfg.Database), log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	handler := query.NewTaskCalendarHandler(
		postgres.NewSubjectRepository(conn),
		postgres.NewEnrollmentRepository(conn),
		postgres.NewTaskRepository(conn),
		nil,
		log,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. FEED
	// ─────────────────────────────────────────────────────────────────────────
	cal, err := handler.Handle(ctx, query.TaskCalendarQuery{
		EnrollmentID: opts.enrollmentID,
		PendingOnly:  opts.pendingOnly,
	})
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", opts.output, err)
		}
		defer f.Close()
		out = f
	}

	if err := calendar.Encode(out, cal, time.Now()); err != nil {
		return err
	}

	log.Info("task calendar written",
		logger.EnrollmentID(opts.enrollmentID),
		zap.Int("tasks", len(cal.Tasks)),
		zap.String("output", opts.output),
	)
	return nil
}
