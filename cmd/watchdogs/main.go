package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/klantle/watchdogs-sub000/pkg/cli"
)

const version = "0.1.0"

func main() {
	fs := pflag.NewFlagSet("watchdogs", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.Usage = func() { cli.PrintUsage(os.Stderr) }
	dir := fs.StringP("dir", "C", "", "Project directory")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn or error")
	showVersion := fs.BoolP("version", "v", false, "Print the version")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *showVersion {
		fmt.Printf("watchdogs version %s\n", version)
		os.Exit(0)
	}

	args := fs.Args()
	if len(args) > 0 && (args[0] == "help" || args[0] == "-h") {
		cli.PrintUsage(os.Stdout)
		os.Exit(0)
	}

	app, err := cli.NewApp(cli.Options{Dir: *dir, LogLevel: *logLevel, Version: version})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if len(args) == 0 {
		err = app.Shell(ctx)
	} else {
		err = app.Execute(ctx, args)
		if errors.Is(err, cli.ErrUnknownCommand) {
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			os.Exit(1)
		}
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
