// Command-line interface to a seisvol server.
// Provides serve and local file inspection on top of the server's rpc commands.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"strings"
	"syscall"
	"time"

	"github.com/openseis/seisvol/datatype/seismic"
	"github.com/openseis/seisvol/rpc"
	"github.com/openseis/seisvol/segy"
	"github.com/openseis/seisvol/seisvol"
	"github.com/openseis/seisvol/server"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	// Run in verbose mode if true.
	runVerbose = flag.Bool("verbose", false, "")

	// Address for rpc communication.
	rpcAddress = flag.String("rpc", server.DefaultRPCAddress, "")

	// Profile CPU usage using standard gotest system.
	cpuprofile = flag.String("cpuprofile", "", "")

	// Profile memory usage using standard gotest system.
	memprofile = flag.String("memprofile", "", "")

	// Number of logical CPUs to use.
	useCPU = flag.Int("numcpu", 0, "")
)

const helpMessage = `
seisvol is a server for SEG-Y seismic volume geometry and sections

Usage: seisvol [options] <command>

      -rpc        =string   Address for RPC communication.
      -cpuprofile =string   Write CPU profile to this file.
      -memprofile =string   Write memory profile to this file on ctrl-C.
      -numcpu     =number   Number of logical CPUs to use.
      -verbose    (flag)    Run in verbose mode.
  -h, -help       (flag)    Show help message

Commands that can be performed without a running server:

	about
	help
	serve   <configuration path>
	inspect <SEG-Y file path>
`

var usage = func() {
	// Print local help
	fmt.Print(helpMessage)

	// Print server help if available
	if err := DoCommand(rpc.Command{"help"}); err != nil {
		fmt.Printf("\nUnable to get 'help' from seisvol server at %q.\n\n", *rpcAddress)
	}
}

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() >= 1 && strings.ToLower(flag.Args()[0]) == "help" {
		*showHelp = true
	}

	if *runVerbose {
		seisvol.Verbose = true
	}
	if *showHelp || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	if *useCPU != 0 {
		runtime.GOMAXPROCS(*useCPU)
	}

	// Capture ctrl+c and other interrupts.  Then handle graceful shutdown.
	stopSig := make(chan os.Signal, 1)
	go func() {
		for sig := range stopSig {
			log.Printf("Stop signal captured: %q.  Shutting down...\n", sig)
			if *memprofile != "" {
				log.Printf("Storing memory profiling to %s...\n", *memprofile)
				f, err := os.Create(*memprofile)
				if err != nil {
					log.Fatal(err)
				}
				pprof.WriteHeapProfile(f)
				f.Close()
			}
			if *cpuprofile != "" {
				log.Printf("Stopping CPU profiling to %s...\n", *cpuprofile)
				pprof.StopCPUProfile()
			}
			server.Shutdown()
			time.Sleep(1 * time.Second)
			os.Exit(0)
		}
	}()
	signal.Notify(stopSig, os.Interrupt, syscall.SIGTERM)

	if err := DoCommand(rpc.Command(flag.Args())); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// DoCommand serves as a switchboard for commands, handling local ones and
// sending via rpc those commands that need a running server.
func DoCommand(cmd rpc.Command) error {
	if len(cmd) == 0 {
		return fmt.Errorf("blank command")
	}

	switch cmd.Name() {
	// Handle commands that don't require server connection
	case "serve":
		return DoServe(cmd)
	case "inspect":
		return DoInspect(cmd)
	case "about":
		fmt.Printf("seisvol version %s\n", seisvol.Version)
		return nil
	// Send everything else to the server
	default:
		client, err := rpc.NewClient(*rpcAddress)
		if err != nil {
			return err
		}
		defer client.Close()
		reply, err := client.Send(cmd)
		if err != nil {
			return err
		}
		fmt.Print(reply)
		return nil
	}
}

// DoServe loads the configuration then creates both web and rpc servers.
func DoServe(cmd rpc.Command) error {
	configPath := cmd.Argument(0)
	if configPath == "" {
		return fmt.Errorf("serve command must be followed by the path to the TOML configuration file")
	}
	if err := server.LoadConfig(configPath); err != nil {
		return err
	}
	if err := server.Initialize(); err != nil {
		return err
	}
	err := server.Serve()
	server.Shutdown()
	return err
}

// DoInspect prints the headers and resolved geometry of a SEG-Y file
// without registering it.
func DoInspect(cmd rpc.Command) error {
	path := cmd.Argument(0)
	if path == "" {
		return fmt.Errorf("inspect command must be followed by the path to a SEG-Y file")
	}
	f, err := segy.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	summary, err := seismic.Headers(f)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s, %d traces of %d samples (%s), interval %g ms\n",
		path, seisvol.HumanBytes(f.Size), summary.TotalTraces, f.NumSamples, f.Format(), f.SampleInterval())
	for i, th := range summary.TraceHeaders {
		fmt.Printf("  trace %d: inline %d, crossline %d, x %d, y %d\n", i,
			th[segy.Inline3D.String()], th[segy.Crossline3D.String()],
			th[segy.CDPX.String()], th[segy.CDPY.String()])
	}

	g, err := seismic.ResolveGeometry(context.Background(), f, seismic.DefaultStrategies)
	if err != nil {
		return err
	}
	fmt.Printf("Geometry %q: %d inlines [%d, %d] step %d, %d crosslines [%d, %d] step %d, %s sorted",
		g.Strategy, g.NumInlines(), g.InlineMin(), g.InlineMax(), g.InlineStep,
		g.NumCrosslines(), g.CrosslineMin(), g.CrosslineMax(), g.CrosslineStep, g.Sorting)
	switch {
	case !g.Gridded:
		fmt.Printf(", not gridded\n")
	case g.Irregular:
		fmt.Printf(", irregular spacing\n")
	default:
		fmt.Printf("\n")
	}
	return nil
}
