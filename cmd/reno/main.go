// Command reno is a low-level OCI-compliant container runtime.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/reno-project/reno/internal/renolog"
	"github.com/reno-project/reno/internal/reno"
)

const defaultRoot = "/tmp/reno"

func main() {
	app := cli.NewApp()
	app.Name = "reno"
	app.Usage = "Open Container Initiative runtime"
	app.Version = "0.1.0"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "root",
			Value: defaultRoot,
			Usage: "root directory for container state",
		},
		cli.StringFlag{
			Name:  "log",
			Usage: "write runtime log to this path instead of stderr",
		},
		cli.StringFlag{
			Name:  "log-format",
			Value: "text",
			Usage: "log output format, \"text\" or \"json\"",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug-level logging",
		},
	}

	app.Before = func(c *cli.Context) error {
		return renolog.Setup(c.GlobalString("log"), c.GlobalString("log-format"), c.GlobalBool("debug"))
	}

	app.Commands = []cli.Command{
		createCommand,
		startCommand,
		killCommand,
		deleteCommand,
		stateCommand,
		initCommand,
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Errorf("reno: %v", err)
		fmt.Fprintf(os.Stderr, "reno: %v\n", err)
		os.Exit(1)
	}
}

var createCommand = cli.Command{
	Name:      "create",
	Usage:     "create a container",
	ArgsUsage: "<container-id>",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "bundle, b", Value: ".", Usage: "path to the bundle directory"},
	},
	Action: func(c *cli.Context) error {
		id := c.Args().First()
		if id == "" {
			return cli.NewExitError("reno create: container id is required", 1)
		}
		return reno.Create(c.GlobalString("root"), id, c.String("bundle"))
	},
}

var startCommand = cli.Command{
	Name:      "start",
	Usage:     "start a created container",
	ArgsUsage: "<container-id>",
	Action: func(c *cli.Context) error {
		id := c.Args().First()
		if id == "" {
			return cli.NewExitError("reno start: container id is required", 1)
		}
		return reno.Start(c.GlobalString("root"), id)
	},
}

var killCommand = cli.Command{
	Name:      "kill",
	Usage:     "send a signal to a container's init process",
	ArgsUsage: "<container-id> [signal]",
	Action: func(c *cli.Context) error {
		id := c.Args().Get(0)
		if id == "" {
			return cli.NewExitError("reno kill: container id is required", 1)
		}
		sig := c.Args().Get(1)
		if sig == "" {
			sig = "KILL"
		}
		return reno.Kill(c.GlobalString("root"), id, sig)
	},
}

var deleteCommand = cli.Command{
	Name:      "delete",
	Usage:     "delete a stopped container's state",
	ArgsUsage: "<container-id>",
	Action: func(c *cli.Context) error {
		id := c.Args().First()
		if id == "" {
			return cli.NewExitError("reno delete: container id is required", 1)
		}
		return reno.Delete(c.GlobalString("root"), id)
	},
}

var stateCommand = cli.Command{
	Name:      "state",
	Usage:     "print the OCI state of a container as JSON",
	ArgsUsage: "<container-id>",
	Action: func(c *cli.Context) error {
		id := c.Args().First()
		if id == "" {
			return cli.NewExitError("reno state: container id is required", 1)
		}
		state, err := reno.State(c.GlobalString("root"), id)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(&state.State)
	},
}

// initCommand is the hidden re-exec target CloneChild invokes; it is
// never meant to be typed by a user (spec.md §4.2).
var initCommand = cli.Command{
	Name:   "init",
	Hidden: true,
	Action: func(c *cli.Context) error {
		return reno.InitContainer()
	},
}
