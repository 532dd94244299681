// Command verstats inspects and updates per-version statistics from the shell.
//
// Usage:
//
//	verstats [-config file] [-version x.y.z] <command> [args]
//
// Commands:
//
//	launch             record a launch and print the launch count
//	show <key>         print a statistic's stored JSON value
//	set <key> <value>  store a string statistic
//	reset <key>        remove a statistic for the current version
//	reset-all          remove every statistic of every version
//	version            print the current and last seen versions
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"code.byted.org/khicago/verstats"
	"code.byted.org/khicago/verstats/internal/config"
	"github.com/sirupsen/logrus"
)

var launchCount = verstats.NewDescriptor("launchCount", verstats.Increment[int]())

func main() {
	configPath := flag.String("config", "", "YAML config file; its values override the environment")
	version := flag.String("version", "", "application version, overriding the configured one")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] launch|show|set|reset|reset-all|version [args]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if *version != "" {
		cfg.Version = *version
	}

	log := cfg.Logger()
	if err := run(context.Background(), cfg, log, flag.Args(), os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("missing command")
	}

	backend, closer, err := config.OpenBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	defer closer.Close()

	store, err := verstats.OpenHost(ctx, backend, cfg.Host(),
		verstats.WithLogger(verstats.NewLogrusLogger(log)),
		verstats.WithUpgrade(func(ctx context.Context, u verstats.Upgrade) error {
			if u.FirstRun {
				fmt.Fprintf(out, "first run of %s\n", u.Current)
			} else {
				fmt.Fprintf(out, "upgraded from %s to %s\n", u.Previous, u.Current)
			}
			return nil
		}),
	)
	if err != nil {
		return err
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "launch":
		verstats.Record(ctx, store, launchCount)
		n, _ := verstats.Value(ctx, store, launchCount)
		fmt.Fprintf(out, "launch %d of %s\n", n, store.Current())

	case "show":
		if len(rest) != 1 {
			return errors.New("usage: show <key>")
		}
		d := verstats.NewDescriptor(rest[0], verstats.Replace(json.RawMessage(nil)))
		v, ok := verstats.Value(ctx, store, d)
		if !ok {
			fmt.Fprintf(out, "%s: no value\n", rest[0])
			return nil
		}
		fmt.Fprintf(out, "%s: %s\n", rest[0], v)

	case "set":
		if len(rest) != 2 {
			return errors.New("usage: set <key> <value>")
		}
		verstats.Record(ctx, store, verstats.NewDescriptor(rest[0], verstats.Replace(rest[1])))

	case "reset":
		if len(rest) != 1 {
			return errors.New("usage: reset <key>")
		}
		verstats.Reset(ctx, store, verstats.NewDescriptor(rest[0], verstats.Clear[json.RawMessage]()))

	case "reset-all":
		store.ResetAll(ctx)

	case "version":
		prev, ok := store.Previous()
		if ok {
			fmt.Fprintf(out, "current %s, last seen %s\n", store.Current(), prev)
		} else {
			fmt.Fprintf(out, "current %s, first run\n", store.Current())
		}

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}
