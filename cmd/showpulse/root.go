package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/WessleyAI/showpulse/engine/snapshot"
)

// version is stamped with -ldflags "-X main.version=...".
var version = "dev"

// flagKeys maps flags whose config key is dotted.
var flagKeys = map[string]string{
	"redis-url":    "redis.url",
	"nats-url":     "nats.url",
	"neo4j-url":    "neo4j.url",
	"port":         "serve.port",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"log-file":     "log.file",
	"metrics-port": "metrics.port",
}

// app is the state shared by the subcommands once the root has resolved
// configuration.
type app struct {
	cfgFile string
	stdout  io.Writer
	stderr  io.Writer
	now     func() time.Time

	v       *viper.Viper
	cfg     Config
	log     *slog.Logger
	closers []io.Closer
}

func newRootCmd() *cobra.Command { return newRootCmdIO(os.Stdout, os.Stderr) }

func newRootCmdIO(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, now: time.Now}

	root := &cobra.Command{
		Use:           "showpulse",
		Short:         "Box-office show scraper and aggregator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			for _, c := range a.closers {
				c.Close()
			}
		},
	}
	root.SetOut(a.stdout)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default ./showpulse.yaml)")
	pf.String("source", "bms", "vendor: bms or district")
	pf.String("shard", "1", "venue shard")
	pf.String("date", "", "show date YYYYMMDD (default today)")
	pf.String("data-dir", "data", "snapshot and log directory")
	pf.String("timezone", "Asia/Kolkata", "timezone of show dates and times")
	pf.String("store", "file", "snapshot store: file or redis")
	pf.String("redis-url", "", "redis URL for store=redis")
	pf.String("nats-url", "", "publish and subscribe run events on this NATS server")
	pf.String("neo4j-url", "", "mirror merged shows into this Neo4j server")
	pf.String("log-level", "info", "debug, info, warn or error")
	pf.String("log-format", "json", "json or text")
	pf.Bool("log-file", false, "also write logs under <data-dir>/<date>/logs")

	root.AddCommand(
		a.scrapeCmd(),
		a.combineCmd(),
		a.summaryCmd(),
		a.serveCmd(),
		a.versionCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	v, err := newViper(a.cfgFile)
	if err != nil {
		return err
	}
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	a.v = v
	a.cfg = loadConfig(v)

	out := a.stderr
	if a.cfg.LogFile {
		day, err := a.cfg.Day(a.now())
		if err != nil {
			return err
		}
		f, err := logFile(a.cfg, day)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, f)
		out = io.MultiWriter(a.stderr, f)
	}
	a.log = newLogger(a.cfg.LogLevel, a.cfg.LogFormat, out)
	slog.SetDefault(a.log)
	return nil
}

// bindFlags binds every flag to its config key: dashes become
// underscores unless flagKeys names a dotted key.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Name == "config" || f.Name == "help" {
			return
		}
		key, ok := flagKeys[f.Name]
		if !ok {
			key = strings.ReplaceAll(f.Name, "-", "_")
		}
		if e := v.BindPFlag(key, f); e != nil {
			err = fmt.Errorf("bind flag %s: %w", f.Name, e)
		}
	})
	return err
}

// openStore returns the configured snapshot store. Connections it opens
// are closed after the command.
func (a *app) openStore(ctx context.Context) (snapshot.Store, error) {
	switch a.cfg.Store {
	case "", "file":
		return snapshot.NewFileStore(a.cfg.DataDir), nil
	case "redis":
		if a.cfg.RedisURL == "" {
			return nil, fmt.Errorf("store=redis needs redis.url")
		}
		client, err := snapshot.NewRedisClient(ctx, a.cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client)
		return snapshot.NewRedisStore(client, a.cfg.RedisTTL), nil
	}
	return nil, fmt.Errorf("unknown store %q (want file or redis)", a.cfg.Store)
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			v := version
			if info, ok := debug.ReadBuildInfo(); ok && v == "dev" && info.Main.Version != "" {
				v = info.Main.Version
			}
			fmt.Fprintf(cmd.OutOrStdout(), "showpulse %s\n", v)
		},
	}
}
