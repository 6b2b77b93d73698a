package main

import (
	"bytes"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/actroid/internal/actroid"
	"github.com/banshee-data/actroid/internal/api"
	"github.com/banshee-data/actroid/internal/calibration"
	"github.com/banshee-data/actroid/internal/config"
	"github.com/banshee-data/actroid/internal/protocol"
	"github.com/banshee-data/actroid/internal/simulator"
	"github.com/banshee-data/actroid/internal/timeutil"
)

func TestFlagDefaults(t *testing.T) {
	assert.False(t, *devMode)
	assert.False(t, *showVersion)
	assert.Empty(t, *portPath, "port must default empty so the config file can set it")
	assert.Empty(t, *unitsFlag)
	assert.Empty(t, *dbPath)
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actroid.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port": "/dev/ttyACM0", "units": "rad", "listen": ":9000"}`), 0644))

	cfg, err := loadConfig(path, cliFlags{units: "deg", offline: "distinct"})
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyACM0", cfg.GetPort())
	assert.Equal(t, "deg", cfg.GetUnits())
	assert.Equal(t, ":9000", cfg.GetListen())
	assert.Equal(t, protocol.OfflineDistinct, cfg.GetOfflineMode())
}

func TestLoadConfig_NoFile(t *testing.T) {
	cfg, err := loadConfig("", cliFlags{port: "/dev/ttyUSB3"})
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB3", cfg.GetPort())
	assert.Equal(t, config.DefaultUnits, cfg.GetUnits())
}

func TestLoadConfig_InvalidFlag(t *testing.T) {
	_, err := loadConfig("", cliFlags{calibration: "batch-9"})
	assert.Error(t, err)

	_, err = loadConfig("", cliFlags{units: "furlongs"})
	assert.Error(t, err)
}

func TestParseMoves(t *testing.T) {
	cal := calibration.MustLookup(calibration.Batch2)

	moves, err := parseMoves(cal, []string{"8=50", "torso_yaw=0.1rad", "0=-5deg"}, "deg")
	require.NoError(t, err)
	require.Len(t, moves, 3)

	assert.Equal(t, 8, moves[0].index)
	assert.InDelta(t, 50*math.Pi/180, moves[0].angle, 1e-12)
	assert.Equal(t, 23, moves[1].index)
	assert.InDelta(t, 0.1, moves[1].angle, 1e-12)
	assert.InDelta(t, -5*math.Pi/180, moves[2].angle, 1e-12)
}

func TestParseMoves_Errors(t *testing.T) {
	cal := calibration.MustLookup(calibration.Batch2)

	for _, args := range [][]string{
		nil,
		{"8"},
		{"tail=3"},
		{"8=fast"},
		{"8=NaN"},
		{"8=50", "99=1"},
	} {
		_, err := parseMoves(cal, args, "deg")
		assert.Error(t, err, "args %v", args)
	}
}

func newTestApp(t *testing.T, flags cliFlags) (*app, *bytes.Buffer) {
	t.Helper()
	cfg, err := loadConfig("", flags)
	require.NoError(t, err)
	var out bytes.Buffer
	return &app{cfg: cfg, dev: true, out: &out}, &out
}

func TestRunRead(t *testing.T) {
	a, out := newTestApp(t, cliFlags{units: "deg"})
	a.sim = simulator.NewDevice([protocol.NumJoints]byte{8: 126})

	require.NoError(t, a.run("read", nil))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, protocol.NumJoints+1)
	assert.Contains(t, lines[0], "angle (deg)")
	assert.Contains(t, lines[9], "left_arm_raise")
	assert.Contains(t, lines[9], "126")
	assert.True(t, a.sim.Closed())
}

func TestRunSet_HoldsOtherJoints(t *testing.T) {
	a, out := newTestApp(t, cliFlags{units: "deg"})

	var pose [protocol.NumJoints]byte
	for i := range pose {
		pose[i] = 100
	}
	a.sim = simulator.NewDevice(pose)

	require.NoError(t, a.run("set", []string{"left_arm_raise=50"}))

	got := a.sim.Pose()
	assert.Equal(t, uint8(126), got[8])
	for i, raw := range got {
		if i != 8 {
			assert.Equal(t, uint8(100), raw, "joint %d moved", i)
		}
	}
	assert.Contains(t, out.String(), "left_arm_raise")
}

func TestRunSet_BadArgsNeverOpenPort(t *testing.T) {
	a, _ := newTestApp(t, cliFlags{})
	a.sim = simulator.NewDevice([protocol.NumJoints]byte{})

	assert.Error(t, a.run("set", []string{"8=50", "bogus"}))
	assert.Empty(t, a.sim.Frames())
}

func TestRunRead_DeviceRejectsOnline(t *testing.T) {
	a, _ := newTestApp(t, cliFlags{})
	a.sim = simulator.NewDevice([protocol.NumJoints]byte{})
	a.sim.NackNext(1)

	err := a.run("read", nil)
	require.Error(t, err)
	assert.True(t, actroid.IsProtocolError(err))
	assert.True(t, a.sim.Closed())
}

func TestRunCalibration(t *testing.T) {
	a, out := newTestApp(t, cliFlags{calibration: calibration.Reference2013, units: "deg"})

	require.NoError(t, a.run("calibration", nil))
	assert.Contains(t, out.String(), "calibration reference-2013")
	assert.Contains(t, out.String(), "-180.000")
	assert.Contains(t, out.String(), "torso_yaw")
}

func TestRunMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poses.db")
	a, out := newTestApp(t, cliFlags{db: path})

	require.NoError(t, a.run("migrate", []string{"status"}))
	assert.Contains(t, out.String(), "schema version 0 of 2, migrations pending")

	out.Reset()
	require.NoError(t, a.run("migrate", []string{"up"}))
	assert.Equal(t, "schema version 2 of 2\n", out.String())

	out.Reset()
	require.NoError(t, a.run("migrate", []string{"down"}))
	assert.Contains(t, out.String(), "schema version 1 of 2")

	assert.Error(t, a.run("migrate", []string{"sideways"}))
	assert.Error(t, a.run("migrate", nil))
}

func TestRunMigrate_NoDatabase(t *testing.T) {
	a, _ := newTestApp(t, cliFlags{})
	assert.Error(t, a.run("migrate", []string{"status"}))
}

func TestRunUnknownCommand(t *testing.T) {
	a, _ := newTestApp(t, cliFlags{})
	assert.Error(t, a.run("dance", nil))
}

func TestNewHandler(t *testing.T) {
	dev := simulator.NewDevice([protocol.NumJoints]byte{})
	d, err := actroid.New(dev, actroid.Options{Clock: timeutil.NewMockClock(time.Time{})})
	require.NoError(t, err)
	defer d.Close()

	h := newHandler(api.NewServer(d, nil, "", "rad"), nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/calibration", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/joints", nil))
	assert.NotEqual(t, http.StatusNotFound, w.Code)
}
