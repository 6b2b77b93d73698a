// Package api serves the driver over HTTP. Handlers share one driver, so every
// driver call runs under the server's mutex.
package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"text/tabwriter"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/actroid/internal/actroid"
	"github.com/banshee-data/actroid/internal/db"
	"github.com/banshee-data/actroid/internal/units"
	"github.com/banshee-data/actroid/internal/version"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	mu      sync.Mutex
	driver  *actroid.Driver
	db      *db.DB
	session string
	units   string
}

// NewServer wraps driver. store may be nil, in which case nothing is
// recorded; otherwise samples go to sessionID.
func NewServer(driver *actroid.Driver, store *db.DB, sessionID, unit string) *Server {
	if !units.IsValid(unit) {
		unit = units.Radians
	}
	return &Server{
		driver:  driver,
		db:      store,
		session: sessionID,
		units:   unit,
	}
}

// Close ends the recording session and closes the driver.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil && s.session != "" {
		if err := s.db.EndSession(s.session); err != nil {
			log.Printf("failed to end session %s: %v", s.session, err)
		}
	}
	return s.driver.Close()
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/pose", s.showPose)
	mux.HandleFunc("/api/target", s.handleTarget)
	mux.HandleFunc("/api/calibration", s.showCalibration)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/samples", s.listSamples)
	mux.HandleFunc("/api/version", s.showVersion)
	return mux
}

// AttachAdminRoutes adds a plain-text joint table under /debug/.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("joints", "Joint table with cached and target values", s.debugJoints)
}

func (s *Server) debugJoints(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	current, cerr := s.readings(s.driver.CurrentRawAngle, s.driver.CurrentAngle)
	target, terr := s.readings(s.driver.TargetRawAngle, s.driver.TargetAngle)
	revision := s.driver.Calibration().Revision
	s.mu.Unlock()

	if err := errors.Join(cerr, terr); err != nil {
		writeDriverError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "calibration %s, angles in %s\n\n", revision, s.units)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tjoint\tcurrent raw\tcurrent\ttarget raw\ttarget")
	for i := range current {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%.3f\t%d\t%.3f\n",
			i, current[i].Name, current[i].Raw, current[i].Angle, target[i].Raw, target[i].Angle)
	}
	tw.Flush()
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}
