package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

const (
	verboseKey  = "verbose"
	manifestKey = "manifest"
	elementKey  = "element"
	eventKey    = "event"
	outKey      = "out"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "qsnap",
		Usage: "Inspect and resume paused HTML documents",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  verboseKey,
				Usage: "Log debug output to stderr",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "inspect",
				Usage:     "Print the entries of an embedded snapshot",
				ArgsUsage: "<file.html>",
				Action:    inspect,
			},
			{
				Name:      "resume",
				Usage:     "Resume a document, optionally dispatch an event, and pause it again",
				ArgsUsage: "<file.html>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     manifestKey,
						Aliases:  []string{"m"},
						Usage:    "YAML manifest mapping chunk names to JavaScript files",
						Required: true,
					},
					&cli.StringFlag{
						Name:  elementKey,
						Usage: "q:id of the element receiving the event",
					},
					&cli.StringFlag{
						Name:  eventKey,
						Usage: "Event name to dispatch, without the on: prefix",
					},
					&cli.StringFlag{
						Name:  outKey,
						Usage: "Write the paused document here instead of stdout",
					},
				},
				Action: resume,
			},
		},
	}
}

func logger(cmd *cli.Command) *slog.Logger {
	level := slog.LevelInfo
	if cmd.Bool(verboseKey) {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
