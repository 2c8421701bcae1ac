// Command tripctl talks to a tripledger server.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"github.com/mmynk/tripledger/pkg/logging"
)

func main() {
	logging.Setup()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&loginCmd{}, "session")
	commander.Register(&tripsCmd{}, "trips")
	commander.Register(&syncCmd{}, "trips")
	commander.Register(&groupsCmd{}, "trips")
	commander.Register(&convertCmd{}, "currency")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
