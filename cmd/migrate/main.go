// Command migrate applies or rolls back the OmniLearn schema.
//
//	migrate up
//	migrate down [steps]
//	migrate version
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/kumanday/OmniLearn/internal/app"
	"github.com/kumanday/OmniLearn/internal/config"
	"github.com/kumanday/OmniLearn/migrations"
	pkgconfig "github.com/kumanday/OmniLearn/pkg/config"
	"github.com/kumanday/OmniLearn/pkg/database"
	"github.com/kumanday/OmniLearn/pkg/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("migrate failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: migrate up | down [steps] | version")
	}
	if err := pkgconfig.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New("omnilearn-migrate", cfg.LogLevel)

	pgCfg := app.PostgresConfig(cfg)
	m, err := database.NewMigrator(migrations.FS, ".", pgCfg.DSN(), log)
	if err != nil {
		return err
	}
	defer m.Close()

	switch args[0] {
	case "up":
		return m.Up()
	case "down":
		steps := 1
		if len(args) > 1 {
			steps, err = strconv.Atoi(args[1])
			if err != nil || steps < 1 {
				return fmt.Errorf("invalid step count %q", args[1])
			}
		}
		return m.Down(steps)
	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version=%d dirty=%t\n", v, dirty)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}
