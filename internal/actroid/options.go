package actroid

import (
	"time"

	"github.com/banshee-data/actroid/internal/calibration"
	"github.com/banshee-data/actroid/internal/protocol"
	"github.com/banshee-data/actroid/internal/serialport"
	"github.com/banshee-data/actroid/internal/timeutil"
)

// Default poll intervals while waiting on the controller.
const (
	DefaultAckPollInterval      = time.Millisecond
	DefaultSnapshotPollInterval = 10 * time.Millisecond
)

// Options configures a Driver. The zero value is usable.
type Options struct {
	// Calibration selects the hardware revision. Nil selects
	// calibration.DefaultRevision.
	Calibration *calibration.Table

	// OfflineMode picks the teardown frame bytes.
	OfflineMode protocol.OfflineMode

	// AckPollInterval is the sleep between polls while awaiting an ACK.
	AckPollInterval time.Duration

	// SnapshotPollInterval is the sleep between polls while a snapshot is
	// arriving.
	SnapshotPollInterval time.Duration

	// Clock is used for the poll sleeps.
	Clock timeutil.Clock

	// Factory opens the device in Open. Nil selects serialport.RealFactory.
	Factory serialport.SerialPortFactory

	// Port holds line settings passed to Factory.
	Port serialport.PortOptions
}

func (o Options) withDefaults() (Options, error) {
	if o.Calibration == nil {
		t, err := calibration.Lookup(calibration.DefaultRevision)
		if err != nil {
			return o, err
		}
		o.Calibration = t
	}
	if o.AckPollInterval <= 0 {
		o.AckPollInterval = DefaultAckPollInterval
	}
	if o.SnapshotPollInterval <= 0 {
		o.SnapshotPollInterval = DefaultSnapshotPollInterval
	}
	if o.Clock == nil {
		o.Clock = timeutil.RealClock{}
	}
	if o.Factory == nil {
		o.Factory = serialport.RealFactory{}
	}
	return o, nil
}
