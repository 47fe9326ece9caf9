package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"grimm.is/ifctl/cmd"
	"grimm.is/ifctl/internal/brand"
	"grimm.is/ifctl/internal/logging"
)

func main() {
	global := flag.NewFlagSet(brand.BinaryName, flag.ContinueOnError)
	global.SetOutput(io.Discard)
	sim := global.Bool("sim", false, "Run against a simulated host instead of the kernel")
	verbose := global.Bool("v", false, "Verbose logging")
	logJSON := global.Bool("log-json", false, "Log as JSON")
	if err := global.Parse(os.Args[1:]); err != nil || global.NArg() == 0 {
		printUsage()
		os.Exit(2)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LevelWarn
	if *verbose {
		logCfg.Level = logging.LevelDebug
	}
	logCfg.JSON = *logJSON
	logging.SetPrefix(brand.BinaryName)
	logging.SetDefault(logging.New(logCfg))

	args := global.Args()
	command, args := args[0], args[1:]
	switch command {
	case "help", "-h", "--help":
		printUsage()
		return
	case "version":
		cmd.Printer.Println(brand.VersionString())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := cmd.NewEnv(ctx, *sim, os.Stdout)
	if err != nil {
		cmd.Fail(err)
	}

	switch command {
	case "list", "ls":
		err = cmd.RunList(env, args)
	case "show":
		err = cmd.RunShow(env, args)
	case "up":
		err = cmd.RunUp(env, args, true)
	case "down":
		err = cmd.RunUp(env, args, false)
	case "set":
		err = cmd.RunSet(env, args)
	case "bridge", "br":
		err = cmd.RunBridge(env, args)
	case "tap":
		err = cmd.RunTap(env, args)
	case "vlan":
		err = cmd.RunVLAN(env, args)
	case "route":
		err = cmd.RunRoute(env, args)
	case "frame":
		err = cmd.RunFrame(env, args)
	case "watch":
		err = cmd.RunWatch(env, args)
	case "exporter":
		err = cmd.RunExporter(env, args)
	case "apply":
		err = cmd.RunApply(env, args)
	default:
		_ = env.Close()
		cmd.Printer.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(2)
	}

	if closeErr := env.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		stop()
		cmd.Fail(err)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `%s - %s

Usage:
  %s [-sim] [-v] [-log-json] <command> [options]

Device Commands:
  list      List interfaces
            Options: -physical, -o table|yaml
  show      Show one interface in detail
  up        Bring an interface up
  down      Bring an interface down
  set       Change interface settings
            Options: -mac, -ip, -prefix, -speed, -duplex, -auto, -pause, -name

Bridge and Virtual Device Commands:
  bridge    Manage bridges (alias: br)
            Subcommands: create, delete, add, del, list, stp, fd, fdb
  tap       Manage tap devices
            Subcommands: create, delete, read
  vlan      Manage 802.1Q sub-interfaces
            Subcommands: add, del, show

Utility Commands:
  route     Show the default route
  frame     Send or capture raw Ethernet frames
            Subcommands: send, capture
  watch     Stream link changes
  exporter  Serve device metrics and health checks
            Options: -listen, -physical, -require
  apply     Converge devices to a host file
            Options: -f <file>, -dry-run, -diff, -export
  version   Print version information

Examples:
  %s list -physical
  %s set eth0 -ip 10.0.0.2/24
  %s bridge create br0 && %s bridge add br0 eth1
  %s apply -f %s -dry-run
  %s -sim list
`,
		brand.Name, brand.Description,
		brand.BinaryName,
		brand.BinaryName, brand.BinaryName,
		brand.BinaryName, brand.BinaryName,
		brand.BinaryName, brand.ConfigPath(),
		brand.BinaryName)
}
