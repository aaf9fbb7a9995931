package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/focusguard/focusguard/go/internal/config"
	"github.com/focusguard/focusguard/go/internal/db"
	"github.com/focusguard/focusguard/go/internal/dbconfig"
	"github.com/focusguard/focusguard/go/internal/logging"
	"github.com/focusguard/focusguard/go/internal/reward"
	"github.com/focusguard/focusguard/go/internal/session"
)

// CLI is the focusctl command tree
type CLI struct {
	Config string `help:"Path to the YAML config file" default:"config.yaml" env:"CONFIG_PATH" type:"path"`

	Migrate     MigrateCmd     `cmd:"" help:"Apply the database schema"`
	Sweep       SweepCmd       `cmd:"" help:"Run one idle-session sweep and exit"`
	CheckConfig CheckConfigCmd `cmd:"check-config" help:"Validate the config file and print the effective reward policy"`
}

// MigrateCmd applies the embedded schema
type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx context.Context) error {
	pool, err := pgxpool.New(ctx, dbconfig.NewConfigFromEnv().DSN())
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, db.Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	log.Info().Msg("schema applied")
	return nil
}

// SweepCmd abandons orphaned sessions once
type SweepCmd struct {
	BatchSize int `help:"Override the configured batch size" default:"0"`
}

func (c *SweepCmd) Run(ctx context.Context, cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if c.BatchSize > 0 {
		cfg.Sweep.BatchSize = c.BatchSize
	}

	database, err := dbconfig.Open(ctx, dbconfig.NewConfigFromEnv())
	if err != nil {
		return err
	}
	defer database.Close()

	engine, err := reward.NewEngine(cfg.Reward)
	if err != nil {
		return err
	}
	repo := session.NewRepository(db.New(database), database)
	app := session.NewApp(repo, engine, clockwork.NewRealClock(), cfg.Session)

	abandoned, err := session.NewSweeper(app, cfg.Sweep).SweepOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("abandoned %d session(s)\n", abandoned)
	return nil
}

// CheckConfigCmd loads and validates the config file
type CheckConfigCmd struct{}

func (c *CheckConfigCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	p := cfg.Reward
	fmt.Printf("xp_per_minute=%d xp_per_level=%d timezone=%s default_rarity=%s\n",
		p.XPPerMinute, p.XPPerLevel, p.Timezone, p.DefaultRarity)
	for _, t := range p.Tiers {
		fmt.Printf("  %-10s %.2f\n", t.Rarity, t.Probability)
	}
	fmt.Printf("sweep: every %s, ceiling %s, idle grace %s\n", cfg.Sweep.Interval, cfg.Sweep.Ceiling, cfg.Sweep.IdleGrace)
	return nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file")
	}
	logging.Setup("focusctl")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("focusctl"),
		kong.Description("FocusGuard operations tool"),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	if err := kctx.Run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
