package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/actroid/internal/actroid"
	"github.com/banshee-data/actroid/internal/api"
	"github.com/banshee-data/actroid/internal/calibration"
	"github.com/banshee-data/actroid/internal/config"
	"github.com/banshee-data/actroid/internal/db"
	"github.com/banshee-data/actroid/internal/serialport"
	"github.com/banshee-data/actroid/internal/simulator"
	"github.com/banshee-data/actroid/internal/units"
)

const simulatorPort = "sim"

type app struct {
	cfg *config.DriverConfig
	dev bool
	out io.Writer

	// sim is the device behind the driver in dev mode.
	sim *simulator.Device
}

func (a *app) run(command string, args []string) error {
	switch command {
	case "read":
		return a.runRead()
	case "set":
		return a.runSet(args)
	case "serve":
		return a.runServe()
	case "calibration":
		return a.runCalibration()
	case "ports":
		return a.runPorts()
	case "migrate":
		return a.runMigrate(args)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) portPath() string {
	if a.dev {
		return simulatorPort
	}
	return a.cfg.GetPort()
}

func (a *app) openDriver() (*actroid.Driver, error) {
	opts, err := a.cfg.DriverOptions()
	if err != nil {
		return nil, err
	}
	if a.dev {
		if a.sim == nil {
			a.sim = simulator.NewDevice(opts.Calibration.DefaultPose())
		}
		sim := a.sim
		opts.Factory = serialport.SerialPortOpener(func(string, serialport.PortOptions) (serialport.SerialPorter, error) {
			return sim, nil
		})
	}

	d, err := actroid.Open(a.portPath(), opts)
	if err != nil {
		return nil, err
	}
	log.Printf("servos online on %s (calibration %s)", a.portPath(), opts.Calibration.Revision)
	return d, nil
}

// closeDriver reports a close failure unless the command already failed.
func closeDriver(d *actroid.Driver, err *error) {
	if cerr := d.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}

func (a *app) runRead() (err error) {
	d, err := a.openDriver()
	if err != nil {
		return err
	}
	defer closeDriver(d, &err)

	if err := d.UpdateCurrentAngles(); err != nil {
		return err
	}
	return a.printJoints(d, d.CurrentRawAngle, d.CurrentAngle)
}

type jointMove struct {
	index int
	angle float64
}

// parseMoves parses joint=angle pairs. Every pair is checked before any is
// applied.
func parseMoves(cal *calibration.Table, args []string, unit string) ([]jointMove, error) {
	if len(args) == 0 {
		return nil, errors.New("usage: set <joint>=<angle>...")
	}
	moves := make([]jointMove, 0, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid move %q: expected <joint>=<angle>", arg)
		}
		idx, err := cal.JointIndex(key)
		if err != nil {
			return nil, err
		}
		angle, err := units.ParseAngle(value, unit)
		if err != nil {
			return nil, err
		}
		if _, err := cal.RadiansToRaw(idx, angle); err != nil {
			return nil, err
		}
		moves = append(moves, jointMove{index: idx, angle: angle})
	}
	return moves, nil
}

func (a *app) runSet(args []string) (err error) {
	opts, err := a.cfg.DriverOptions()
	if err != nil {
		return err
	}
	moves, err := parseMoves(opts.Calibration, args, a.cfg.GetUnits())
	if err != nil {
		return err
	}

	d, err := a.openDriver()
	if err != nil {
		return err
	}
	defer closeDriver(d, &err)

	// Joints not named on the command line hold where they are.
	if err := d.UpdateCurrentAngles(); err != nil {
		return err
	}
	current, err := d.CurrentPose()
	if err != nil {
		return err
	}
	for i, raw := range current {
		if err := d.SetTargetRawAngle(i, raw); err != nil {
			return err
		}
	}

	for _, m := range moves {
		if err := d.SetTargetAngle(m.index, m.angle); err != nil {
			return err
		}
	}
	if err := d.UpdateTargetAngles(); err != nil {
		return err
	}
	return a.printJoints(d, d.TargetRawAngle, d.TargetAngle)
}

func (a *app) printJoints(d *actroid.Driver, raw func(int) (uint8, error), angle func(int) (float64, error)) error {
	unit := a.cfg.GetUnits()
	cal := d.Calibration()

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "#\tjoint\traw\tangle (%s)\n", unit)
	for i := range cal.Joints {
		r, err := raw(i)
		if err != nil {
			return err
		}
		v, err := angle(i)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%.3f\n", i, cal.Joints[i].Name, r, units.FromRadians(v, unit))
	}
	return tw.Flush()
}

func (a *app) runCalibration() error {
	opts, err := a.cfg.DriverOptions()
	if err != nil {
		return err
	}
	cal := opts.Calibration
	unit := a.cfg.GetUnits()

	fmt.Fprintf(a.out, "calibration %s (built-in: %s)\n\n", cal.Revision, strings.Join(calibration.Revisions(), ", "))
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "#\tjoint\tmin\tmax\tsafe min\tsafe max\tstep\tdefault raw\n")
	for i, j := range cal.Joints {
		step, _ := cal.QuantizationStep(i)
		fmt.Fprintf(tw, "%d\t%s\t%.3f\t%.3f\t%.3f\t%.3f\t%.4f\t%d\n", i, j.Name,
			units.FromRadians(j.Min, unit), units.FromRadians(j.Max, unit),
			units.FromRadians(j.Lower(), unit), units.FromRadians(j.Upper(), unit),
			units.FromRadians(step, unit), j.DefaultRaw)
	}
	return tw.Flush()
}

func (a *app) runPorts() error {
	ports, err := serialport.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(a.out, "no serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Fprintln(a.out, p)
	}
	return nil
}

func (a *app) runMigrate(args []string) error {
	path := a.cfg.GetDBPath()
	if path == "" {
		return errors.New("no database configured: pass -db or set db_path")
	}
	if len(args) != 1 {
		return errors.New("usage: migrate up|down|status")
	}

	store, err := db.OpenDB(path)
	if err != nil {
		return err
	}
	defer store.Close()

	switch args[0] {
	case "up":
		if err := store.MigrateUp(); err != nil {
			return err
		}
	case "down":
		if err := store.MigrateDown(); err != nil {
			return err
		}
	case "status":
	default:
		return fmt.Errorf("unknown migrate action %q", args[0])
	}

	status, err := store.GetMigrationStatus()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "schema version %d of %d", status.CurrentVersion, status.LatestVersion)
	if status.Dirty {
		fmt.Fprint(a.out, " (dirty)")
	}
	if status.Pending() {
		fmt.Fprint(a.out, ", migrations pending")
	}
	fmt.Fprintln(a.out)
	return nil
}

// newHandler mounts the API and the debug pages on one mux.
func newHandler(server *api.Server, store *db.DB) http.Handler {
	mux := server.ServeMux()
	server.AttachAdminRoutes(mux)
	if store != nil {
		store.AttachAdminRoutes(mux)
	}
	return api.LoggingMiddleware(mux)
}

func (a *app) runServe() error {
	var (
		store     *db.DB
		sessionID string
	)
	if path := a.cfg.GetDBPath(); path != "" {
		var err error
		if store, err = db.NewDB(path); err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer store.Close()
	}

	d, err := a.openDriver()
	if err != nil {
		return err
	}
	if store != nil {
		session, err := store.StartSession(a.portPath(), d.Calibration().Revision)
		if err != nil {
			d.Close()
			return err
		}
		sessionID = session.ID
	}

	server := api.NewServer(d, store, sessionID, a.cfg.GetUnits())
	defer func() {
		if err := server.Close(); err != nil {
			log.Printf("failed to close driver: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:    a.cfg.GetListen(),
		Handler: newHandler(server, store),
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	return nil
}
