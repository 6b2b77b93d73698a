package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/banshee-data/actroid/internal/actroid"
	"github.com/banshee-data/actroid/internal/calibration"
)

const maxRequestBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode json response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// writeDriverError maps driver failures onto status codes. A device that
// rejects or garbles a frame is a bad gateway; a closed driver is unavailable.
func writeDriverError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, actroid.ErrClosed):
		status = http.StatusServiceUnavailable
	case actroid.IsProtocolError(err), actroid.IsTransportError(err):
		status = http.StatusBadGateway
	case errors.Is(err, calibration.ErrInvalidJoint),
		errors.Is(err, calibration.ErrInvalidAngle),
		errors.Is(err, actroid.ErrPoseSize):
		status = http.StatusBadRequest
	}
	writeJSONError(w, status, err.Error())
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
