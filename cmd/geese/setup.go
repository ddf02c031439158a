package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lao-tseu-is-alive/go-flocking-geese/internal/config"
	"github.com/lao-tseu-is-alive/go-flocking-geese/internal/control"
	"github.com/lao-tseu-is-alive/go-flocking-geese/pkg/flock"
	"github.com/spf13/cobra"
	"github.com/tochemey/goakt/v3/actor"
	golog "github.com/tochemey/goakt/v3/log"
)

const shutdownTimeout = 5 * time.Second

// runtime is everything run and serve share: the configuration, the actor
// system hosting the controller, and the flock with its goroutine started.
type runtime struct {
	cfg    *config.Config
	logger golog.Logger
	system actor.ActorSystem
	flock  *flock.Flock
	client *control.Client
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := config.DefaultConfig()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		var err error
		if cfg, err = config.LoadConfig(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func logLevel(name string) golog.Level {
	switch name {
	case "debug":
		return golog.DebugLevel
	case "warn":
		return golog.WarningLevel
	case "error":
		return golog.ErrorLevel
	default:
		return golog.InfoLevel
	}
}

func setup(ctx context.Context, cmd *cobra.Command) (*runtime, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := golog.New(logLevel(cfg.LogLevel), os.Stdout)

	background, ink, err := cfg.Colors()
	if err != nil {
		return nil, err
	}
	opts := []flock.Option{
		flock.WithLogger(logger),
		flock.WithParams(cfg.GooseParams()),
		flock.WithThrottleThreshold(cfg.ThrottleThreshold),
		flock.WithColors(background, ink),
	}
	if cfg.Seed != 0 {
		opts = append(opts, flock.WithSeed(cfg.Seed))
	}
	f := flock.New(cfg.Bounds(), opts...)
	if cfg.ShowSprite {
		f.SetGooseSprite(flock.GooseSprite())
	}

	system, err := actor.NewActorSystem("GeeseWorld",
		actor.WithLogger(logger),
		actor.WithActorInitMaxRetries(3))
	if err != nil {
		return nil, fmt.Errorf("failed to create actor system: %w", err)
	}
	if err := system.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start actor system: %w", err)
	}

	limits := control.Limits{MaxFlockSize: cfg.MaxFlockSize, MaxAttractors: cfg.MaxAttractors}
	client, err := control.Spawn(ctx, system, f, limits, control.DefaultAskTimeout)
	if err != nil {
		_ = system.Stop(ctx)
		return nil, err
	}

	rt := &runtime{cfg: cfg, logger: logger, system: system, flock: f, client: client}
	for _, line := range []string{
		control.NewCommand(control.MethodResetFlock).With("size", fmt.Sprint(cfg.FlockSize)).String(),
		control.MethodRunSimulation,
	} {
		reply, err := dispatch(ctx, client, line)
		if err != nil {
			rt.close()
			return nil, err
		}
		logger.Infof("%s -> %s", line, reply)
	}
	return rt, nil
}

type dispatcher interface {
	Dispatch(ctx context.Context, line string) (string, error)
}

// dispatch sends line and turns an error reply into an error.
func dispatch(ctx context.Context, d dispatcher, line string) (string, error) {
	reply, err := d.Dispatch(ctx, line)
	if err != nil {
		return "", err
	}
	parsed, err := control.ParseCommand(reply)
	if err != nil {
		return "", fmt.Errorf("unreadable reply %q to %q: %w", reply, line, err)
	}
	if parsed.Method == control.ReplyError {
		return "", fmt.Errorf("%q failed: %s", line, parsed.Params["message"])
	}
	return reply, nil
}

func (rt *runtime) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := rt.flock.Close(ctx); err != nil {
		rt.logger.Errorf("flock did not stop: %v", err)
	}
	if err := rt.system.Stop(ctx); err != nil {
		rt.logger.Errorf("actor system did not stop: %v", err)
	}
}
