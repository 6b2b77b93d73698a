package actroid

import "github.com/banshee-data/actroid/internal/protocol"

// Pose is one raw byte per joint, in channel order.
type Pose [protocol.NumJoints]uint8

// jointState is the driver's view of the figure: the last snapshot read back
// and the target pose that the next UpdateTargetAngles will send. It exists
// only while the driver is online.
type jointState struct {
	current Pose
	target  Pose
}

func newJointState(defaults Pose) *jointState {
	return &jointState{
		current: defaults,
		target:  defaults,
	}
}

func (s *jointState) setTarget(index int, raw uint8) {
	s.target[index] = raw
}

// commit replaces the current pose with a validated snapshot.
func (s *jointState) commit(snap protocol.Snapshot) {
	s.current = snap.Joints
}
