package main

import (
	"context"
	"flag"
	"os"
	"time"

	"grimm.is/scribe/cmd"
	"grimm.is/scribe/internal/brand"
	"grimm.is/scribe/internal/ctlplane"
	"grimm.is/scribe/internal/i18n"
)

var printer = i18n.NewCLIPrinter()

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	defaultConfig := brand.GetConfigFile()

	switch os.Args[1] {
	case "run":
		// Run the daemon in this process
		runFlags := flag.NewFlagSet("run", flag.ExitOnError)
		configFile := runFlags.String("config", defaultConfig, "Configuration file")
		runFlags.StringVar(configFile, "c", defaultConfig, "Configuration file (short)")

		foreground := runFlags.Bool("foreground", false, "Log to stderr and print counters at exit")
		runFlags.BoolVar(foreground, "f", false, "Foreground (short)")

		verbose := runFlags.Bool("verbose", false, "Debug-level diagnostics")
		runFlags.BoolVar(verbose, "v", false, "Verbose (short)")

		runFlags.Parse(os.Args[2:])

		err := cmd.RunDaemon(cmd.RunOptions{
			ConfigFile: *configFile,
			Foreground: *foreground,
			Verbose:    *verbose,
		})
		if err != nil {
			printer.Fprintf(os.Stderr, "%s: %v\n", brand.BinaryName, err)
			os.Exit(1)
		}

	case "start":
		// Start the daemon in the background
		startFlags := flag.NewFlagSet("start", flag.ExitOnError)
		configFile := startFlags.String("config", defaultConfig, "Configuration file")
		startFlags.StringVar(configFile, "c", defaultConfig, "Configuration file (short)")
		startFlags.Parse(os.Args[2:])

		if err := cmd.RunStart(*configFile); err != nil {
			printer.Fprintf(os.Stderr, "Start failed: %v\n", err)
			os.Exit(1)
		}

	case "stop", "killme":
		stopFlags := flag.NewFlagSet("stop", flag.ExitOnError)
		wait := stopFlags.Duration("wait", 10*time.Second, "How long to wait for the daemon to exit (0 = don't wait)")
		stopFlags.Parse(os.Args[2:])

		if err := cmd.RunStop(brand.GetPIDFile(), *wait, os.Stdout); err != nil {
			printer.Fprintf(os.Stderr, "Stop failed: %v\n", err)
			os.Exit(1)
		}

	case "reload":
		reloadFlags := flag.NewFlagSet("reload", flag.ExitOnError)
		timeout := reloadFlags.Duration("timeout", ctlplane.DefaultReloadTimeout, "How long to wait for the reload result")
		useSignal := reloadFlags.Bool("signal", false, "Send SIGHUP instead of using the control socket")
		quiet := reloadFlags.Bool("quiet", false, "Don't print progress")
		reloadFlags.BoolVar(quiet, "q", false, "Quiet (short)")
		reloadFlags.Parse(os.Args[2:])

		if *useSignal {
			if err := cmd.RunReloadSignal(brand.GetPIDFile(), os.Stdout); err != nil {
				printer.Fprintf(os.Stderr, "Reload failed: %v\n", err)
				os.Exit(1)
			}
			return
		}

		client := connect()
		defer client.Close()
		opts := cmd.ReloadOptions{Timeout: *timeout, Poll: 200 * time.Millisecond}
		if *quiet {
			opts.Poll = 0
		}
		if err := cmd.RunReload(client, opts, os.Stdout); err != nil {
			client.Close()
			printer.Fprintf(os.Stderr, "Reload failed: %v\n", err)
			os.Exit(1)
		}

	case "status":
		client := connect()
		defer client.Close()
		if err := cmd.RunStatus(client, os.Stdout); err != nil {
			client.Close()
			printer.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}

	case "check":
		checkFlags := flag.NewFlagSet("check", flag.ExitOnError)
		verbose := checkFlags.Bool("verbose", false, "Print chain histograms and zone names")
		checkFlags.BoolVar(verbose, "v", false, "Verbose output (short)")
		checkFlags.Parse(os.Args[2:])

		configFile := defaultConfig
		if len(checkFlags.Args()) > 0 {
			configFile = checkFlags.Arg(0)
		}
		if err := cmd.RunCheck(configFile, *verbose, os.Stdout); err != nil {
			printer.Fprintf(os.Stderr, "Check failed: %v\n", err)
			os.Exit(1)
		}

	case "import":
		importFlags := flag.NewFlagSet("import", flag.ExitOnError)
		from := importFlags.String("from", brand.GetDefinitionsFile(), "Definitions file (HCL, JSON or YAML)")
		to := importFlags.String("to", "", "SQLite database to write (default: state dir)")
		importFlags.Parse(os.Args[2:])

		if err := cmd.RunImport(context.Background(), *from, *to, os.Stdout); err != nil {
			printer.Fprintf(os.Stderr, "Import failed: %v\n", err)
			os.Exit(1)
		}

	case "version":
		printer.Printf("%s version %s\n", brand.Name, brand.Version)
		printer.Printf("Build: %s (%s)\n", brand.BuildTime, brand.GitCommit)

	case "help", "-h", "--help":
		printUsage()

	default:
		printer.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func connect() *ctlplane.Client {
	client, err := ctlplane.NewClient(brand.GetSocketPath())
	if err != nil {
		printer.Fprintf(os.Stderr, "Failed to connect to control socket: %v\n", err)
		printer.Fprintf(os.Stderr, "Is the daemon running? Start with: %s start\n", brand.BinaryName)
		os.Exit(1)
	}
	return client
}

func printUsage() {
	printer.Printf("%s - %s\n\n", brand.Name, brand.Description)
	printer.Printf("Usage: %s <command> [options]\n\n", brand.BinaryName)
	printer.Println("Commands:")
	printer.Println("  run [-c file] [-f] [-v]   Run the logger in this process")
	printer.Println("  start [-c file]           Start the logger in the background")
	printer.Println("  stop [-wait d]            Stop the running logger (alias: killme)")
	printer.Println("  reload [-signal] [-q]     Reload definitions and reopen the logs")
	printer.Println("  status                    Show state, counters and index sizes")
	printer.Println("  check [-v] [file]         Validate config and definitions")
	printer.Println("  import [-from f] [-to db] Convert a definitions file to SQLite")
	printer.Println("  version                   Print version information")
}
