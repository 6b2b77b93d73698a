package api

import (
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/banshee-data/actroid/internal/actroid"
	"github.com/banshee-data/actroid/internal/calibration"
	"github.com/banshee-data/actroid/internal/db"
	"github.com/banshee-data/actroid/internal/protocol"
	"github.com/banshee-data/actroid/internal/units"
)

const defaultSampleLimit = 100

// JointReading is one joint's raw value and its angle in the server's units.
type JointReading struct {
	Index int     `json:"index"`
	Name  string  `json:"name"`
	Raw   uint8   `json:"raw"`
	Angle float64 `json:"angle"`
}

type PoseResponse struct {
	Units  string         `json:"units"`
	Joints []JointReading `json:"joints"`
}

// TargetRequest sets some joints and leaves the rest alone. Keys are joint
// indices or names. Angles are in the server's units.
type TargetRequest struct {
	Angles map[string]float64 `json:"angles,omitempty"`
	Raw    map[string]int     `json:"raw,omitempty"`

	// Send defaults to true. When false the targets are only staged.
	Send *bool `json:"send,omitempty"`
}

type CalibrationJoint struct {
	Index      int     `json:"index"`
	Name       string  `json:"name"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Lower      float64 `json:"lower"`
	Upper      float64 `json:"upper"`
	Step       float64 `json:"step"`
	DefaultRaw uint8   `json:"default_raw"`
}

type CalibrationResponse struct {
	Revision string             `json:"revision"`
	Units    string             `json:"units"`
	Joints   []CalibrationJoint `json:"joints"`
}

// readings must be called with s.mu held.
func (s *Server) readings(raw func(int) (uint8, error), angle func(int) (float64, error)) ([]JointReading, error) {
	cal := s.driver.Calibration()
	out := make([]JointReading, protocol.NumJoints)
	for i := range out {
		r, err := raw(i)
		if err != nil {
			return nil, err
		}
		a, err := angle(i)
		if err != nil {
			return nil, err
		}
		out[i] = JointReading{
			Index: i,
			Name:  cal.Joints[i].Name,
			Raw:   r,
			Angle: units.FromRadians(a, s.units),
		}
	}
	return out, nil
}

// record must be called with s.mu held. Recording failures never fail the
// request that moved the figure.
func (s *Server) record(kind db.PoseKind) {
	if s.db == nil || s.session == "" {
		return
	}
	var (
		pose actroid.Pose
		err  error
	)
	if kind == db.PoseTarget {
		pose, err = s.driver.TargetPose()
	} else {
		pose, err = s.driver.CurrentPose()
	}
	if err != nil {
		return
	}
	if err := s.db.RecordPose(s.session, kind, pose); err != nil {
		log.Printf("failed to record %s pose: %v", kind, err)
	}
}

// showPose reads every joint from the figure unless refresh=false.
func (s *Server) showPose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if r.URL.Query().Get("refresh") != "false" {
		if err := s.driver.UpdateCurrentAngles(); err != nil {
			writeDriverError(w, err)
			return
		}
		s.record(db.PoseCurrent)
	}

	joints, err := s.readings(s.driver.CurrentRawAngle, s.driver.CurrentAngle)
	if err != nil {
		writeDriverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PoseResponse{Units: s.units, Joints: joints})
}

func (s *Server) handleTarget(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.showTarget(w)
	case http.MethodPost:
		s.setTarget(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) showTarget(w http.ResponseWriter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	joints, err := s.readings(s.driver.TargetRawAngle, s.driver.TargetAngle)
	if err != nil {
		writeDriverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PoseResponse{Units: s.units, Joints: joints})
}

// setTarget validates the whole request before touching the driver, so a bad
// entry leaves every target as it was.
func (s *Server) setTarget(w http.ResponseWriter, r *http.Request) {
	var req TargetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Angles) == 0 && len(req.Raw) == 0 {
		writeJSONError(w, http.StatusBadRequest, "request sets no joints")
		return
	}

	staged, err := s.stageTargets(s.driver.Calibration(), req)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for idx, raw := range staged {
		if err := s.driver.SetTargetRawAngle(idx, raw); err != nil {
			writeDriverError(w, err)
			return
		}
	}
	if req.Send == nil || *req.Send {
		if err := s.driver.UpdateTargetAngles(); err != nil {
			writeDriverError(w, err)
			return
		}
		s.record(db.PoseTarget)
	}

	joints, err := s.readings(s.driver.TargetRawAngle, s.driver.TargetAngle)
	if err != nil {
		writeDriverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PoseResponse{Units: s.units, Joints: joints})
}

func (s *Server) stageTargets(cal *calibration.Table, req TargetRequest) (map[int]uint8, error) {
	staged := make(map[int]uint8, len(req.Angles)+len(req.Raw))
	for key, angle := range req.Angles {
		idx, err := cal.JointIndex(key)
		if err != nil {
			return nil, err
		}
		if _, dup := staged[idx]; dup {
			return nil, fmt.Errorf("joint %d is set more than once", idx)
		}
		raw, err := cal.RadiansToRaw(idx, units.ToRadians(angle, s.units))
		if err != nil {
			return nil, err
		}
		staged[idx] = raw
	}
	for key, value := range req.Raw {
		idx, err := cal.JointIndex(key)
		if err != nil {
			return nil, err
		}
		if _, dup := staged[idx]; dup {
			return nil, fmt.Errorf("joint %d is set more than once", idx)
		}
		if value < 0 || value > calibration.MaxRaw {
			return nil, fmt.Errorf("raw value %d for joint %d out of range 0-%d", value, idx, calibration.MaxRaw)
		}
		staged[idx] = uint8(value)
	}
	return staged, nil
}

func (s *Server) showCalibration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	cal := s.driver.Calibration()
	resp := CalibrationResponse{Revision: cal.Revision, Units: s.units}
	for i, j := range cal.Joints {
		step, _ := cal.QuantizationStep(i)
		resp.Joints = append(resp.Joints, CalibrationJoint{
			Index:      i,
			Name:       j.Name,
			Min:        units.FromRadians(j.Min, s.units),
			Max:        units.FromRadians(j.Max, s.units),
			Lower:      units.FromRadians(j.Lower(), s.units),
			Upper:      units.FromRadians(j.Upper(), s.units),
			Step:       units.FromRadians(step, s.units),
			DefaultRaw: j.DefaultRaw,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.db == nil {
		writeJSONError(w, http.StatusNotFound, "pose recording is disabled")
		return
	}

	sessions, err := s.db.Sessions()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sessions == nil {
		sessions = []db.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// listSamples serves ?session_id=&kind=&limit=, defaulting to the live session.
func (s *Server) listSamples(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.db == nil {
		writeJSONError(w, http.StatusNotFound, "pose recording is disabled")
		return
	}

	q := r.URL.Query()
	sessionID := q.Get("session_id")
	if sessionID == "" {
		sessionID = s.session
	}
	kind := db.PoseKind(q.Get("kind"))
	if kind != "" && kind != db.PoseCurrent && kind != db.PoseTarget {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid kind %q: expected current or target", kind))
		return
	}
	limit := defaultSampleLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = n
	}

	samples, err := s.db.PoseSamples(sessionID, kind, limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if samples == nil {
		samples = []db.PoseSample{}
	}
	writeJSON(w, http.StatusOK, samples)
}
