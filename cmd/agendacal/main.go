package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"agendacal/internal/config"
	appLog "agendacal/internal/log"
)

var version = "0.1.0-dev"

var CLI struct {
	Version  kong.VersionFlag
	Config   string `help:"Path to the YAML config file." type:"path" default:"./agendacal.yaml" env:"AGENDACAL_CONFIG"`
	LogLevel string `help:"Log level (debug, info, warn, error). Overrides the config file." env:"AGENDACAL_LOG_LEVEL"`
	NoColor  bool   `help:"Disable colored log output." env:"NO_COLOR"`

	Serve    ServeCmd    `cmd:"" help:"Serve the HTTP API and refresh ICS feeds on schedule." default:"1"`
	Agenda   AgendaCmd   `cmd:"" help:"Print the agenda of one or more days."`
	Schedule ScheduleCmd `cmd:"" help:"Schedule a JSON batch of events into one day."`
}

// appContext is passed to every command's Run.
type appContext struct {
	ctx        context.Context
	cfg        *config.Config
	configPath string
	out        io.Writer
}

func main() {
	// .env is optional.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: cannot read .env: %v\n", err)
	}

	kctx := kong.Parse(&CLI,
		kong.Name("agendacal"),
		kong.Description("Day-window scheduler for calendar events and ICS feeds."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	appLog.Init(appLog.Options{Writer: os.Stderr, Level: appLog.LevelInfo, NoColor: CLI.NoColor})

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", CLI.Config)
		os.Exit(1)
	}
	level := cfg.LogLevel
	if CLI.LogLevel != "" {
		level = CLI.LogLevel
	}
	appLog.SetLevel(appLog.ParseLevel(level))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &appContext{ctx: ctx, cfg: cfg, configPath: CLI.Config, out: os.Stdout}
	if err := kctx.Run(app); err != nil {
		appLog.Error("command failed", err, "command", kctx.Command())
		stop()
		os.Exit(1)
	}
}
