package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/actroid/internal/config"
	"github.com/banshee-data/actroid/internal/monitoring"
	"github.com/banshee-data/actroid/internal/version"
)

var (
	devMode         = flag.Bool("dev", false, "Drive the built-in simulator instead of a serial port")
	configPath      = flag.String("config", "", "Path to a JSON config file")
	portPath        = flag.String("port", "", "Serial port (default /dev/ttyUSB0, ignored in dev mode)")
	unitsFlag       = flag.String("units", "", "Angle units for input and output: rad, deg")
	calibrationFlag = flag.String("calibration", "", "Calibration revision: reference-2013, batch-2")
	calibrationFile = flag.String("calibration-file", "", "Load the calibration table from a JSON file")
	offlineFlag     = flag.String("offline", "", "Offline frame sent on shutdown: legacy, distinct")
	dbPath          = flag.String("db", "", "SQLite database for pose recording (empty disables)")
	listen          = flag.String("listen", "", "HTTP listen address for serve (default :8090)")
	debugFrames     = flag.Bool("debug", false, "Log every frame sent to the controller")
	showVersion     = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}
	monitoring.Debug = *debugFrames

	cfg, err := loadConfig(*configPath, cliFlags{
		port:            *portPath,
		units:           *unitsFlag,
		calibration:     *calibrationFlag,
		calibrationFile: *calibrationFile,
		offline:         *offlineFlag,
		db:              *dbPath,
		listen:          *listen,
	})
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	a := &app{cfg: cfg, dev: *devMode, out: os.Stdout}
	if err := a.run(flag.Arg(0), flag.Args()[1:]); err != nil {
		log.Fatalf("%s: %v", flag.Arg(0), err)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `actroid - servo driver for the Actroid animatronic figure

Usage: actroid [flags] <command> [args]

Commands:
  read                     Read every joint from the figure
  set <joint>=<angle>...   Move joints; joint is an index or name, angle may
                           carry a deg or rad suffix
  serve                    Serve the HTTP API
  calibration              Print the calibration table
  ports                    List serial ports
  migrate up|down|status   Manage the pose database schema

Flags:`)
	flag.PrintDefaults()
}

// cliFlags holds flag values that override the config file when non-empty.
type cliFlags struct {
	port            string
	units           string
	calibration     string
	calibrationFile string
	offline         string
	db              string
	listen          string
}

func loadConfig(path string, flags cliFlags) (*config.DriverConfig, error) {
	cfg := config.EmptyDriverConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadDriverConfig(path); err != nil {
			return nil, err
		}
	}

	for _, o := range []struct {
		value string
		field **string
	}{
		{flags.port, &cfg.Port},
		{flags.units, &cfg.Units},
		{flags.calibration, &cfg.Calibration},
		{flags.calibrationFile, &cfg.CalibrationFile},
		{flags.offline, &cfg.OfflineMode},
		{flags.db, &cfg.DBPath},
		{flags.listen, &cfg.Listen},
	} {
		if o.value != "" {
			v := o.value
			*o.field = &v
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
