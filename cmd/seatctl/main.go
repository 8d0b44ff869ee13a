// Command seatctl runs one-off maintenance jobs against the seat database.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"
	_ "time/tzdata"

	"seatreserve/internal/clock"
	"seatreserve/internal/config"
	"seatreserve/internal/database"
	"seatreserve/internal/events"
	"seatreserve/internal/export"
	"seatreserve/internal/logging"
	"seatreserve/internal/models"
	"seatreserve/internal/scheduler"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const usage = `usage: seatctl <command> [flags]

commands:
  seed       write seat metadata from a YAML file
  blackouts  fill the blackout calendar once
  backup     write a database backup now
  export     save bookings for a date range as .xlsx
`

type SeatsFile struct {
	Seats []models.Seat `yaml:"seats"`
}

type app struct {
	cfg    *config.Config
	loc    *time.Location
	db     *database.DB
	logger *zerolog.Logger
	closer io.Closer
}

func (a *app) Close() {
	a.db.Close()
	if a.closer != nil {
		_ = a.closer.Close()
	}
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	configPath := fs.String("config", envOr("CONFIG_PATH", "configs/config.yaml"), "path to config.yaml")
	seatsPath := fs.String("seats", "configs/seats.yaml", "seed: path to seats.yaml")
	from := fs.String("from", "", "export: first day, YYYY-MM-DD")
	to := fs.String("to", "", "export: last day, YYYY-MM-DD")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := open(*configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch command {
	case "seed":
		return a.seed(ctx, *seatsPath)
	case "blackouts":
		return a.blackouts(ctx)
	case "backup":
		return a.backup(ctx)
	case "export":
		return a.export(ctx, *from, *to)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func open(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	loc, err := cfg.App.Location()
	if err != nil {
		return nil, err
	}

	base, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger := logging.Component(base, "seatctl")
	db, err := database.Open(cfg.Database, loc, logger)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, fmt.Errorf("open db: %w", err)
	}
	return &app{cfg: cfg, loc: loc, db: db, logger: logger, closer: closer}, nil
}

func (a *app) seed(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seats: %w", err)
	}
	var file SeatsFile
	if err = yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse seats: %w", err)
	}
	if len(file.Seats) == 0 {
		return fmt.Errorf("no seats in yaml")
	}

	if _, err = a.db.ProvisionSeats(ctx, a.cfg.Seats.Count); err != nil {
		return fmt.Errorf("provision: %w", err)
	}

	created, updated := 0, 0
	for i := range file.Seats {
		isNew, err := a.db.UpsertSeat(ctx, &file.Seats[i])
		if err != nil {
			return fmt.Errorf("seat %d: %w", file.Seats[i].ID, err)
		}
		if isNew {
			created++
		} else {
			updated++
		}
	}

	fmt.Printf("done: created=%d updated=%d\n", created, updated)
	return nil
}

func (a *app) blackouts(ctx context.Context) error {
	s := scheduler.New(a.db, scheduler.RulesFromConfig(a.cfg.Blackout), a.loc, clock.System(),
		events.NewEventBus(), logging.Component(a.logger, "scheduler"))
	n, err := s.Tick(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("done: inserted=%d\n", n)
	return nil
}

func (a *app) backup(ctx context.Context) error {
	svc := database.NewBackupService(a.db, a.cfg.Backup, logging.Component(a.logger, "backup"))
	path, err := svc.PerformBackup(ctx)
	if err != nil {
		return err
	}
	removed := svc.CleanupOldBackups()
	fmt.Printf("done: backup=%s removed=%d\n", path, removed)
	return nil
}

func (a *app) export(ctx context.Context, from, to string) error {
	start := time.Now().In(a.loc)
	if from != "" {
		d, err := time.ParseInLocation("2006-01-02", from, a.loc)
		if err != nil {
			return fmt.Errorf("parse -from: %w", err)
		}
		start = d
	}
	end := start.AddDate(0, 0, 6)
	if to != "" {
		d, err := time.ParseInLocation("2006-01-02", to, a.loc)
		if err != nil {
			return fmt.Errorf("parse -to: %w", err)
		}
		end = d
	}

	path, err := export.New(a.db, a.cfg.Exports.Path, a.loc, logging.Component(a.logger, "export")).Save(ctx, start, end)
	if err != nil {
		return err
	}
	fmt.Printf("done: file=%s\n", path)
	return nil
}
