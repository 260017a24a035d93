package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

var configPath = flag.String("config", "config/config.yaml", "config file path")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	commander.Register(&serveCmd{}, "daemon")
	commander.Register(&listCmd{}, "portfolio")
	commander.Register(&addCmd{}, "portfolio")
	commander.Register(&removeCmd{}, "portfolio")
	commander.Register(&refreshCmd{}, "portfolio")
	commander.Register(&exportCmd{}, "snapshot")
	commander.Register(&importCmd{}, "snapshot")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
