package bdm

import "fmt"

// TargetState is what the engine knows about the target's protocol state.
// BDM has no connected notion on the wire, so it is inferred from handshakes.
type TargetState uint8

const (
	StateUnknown TargetState = iota
	StateReset
	StateSynchronized
	StateDebugMode
)

var stateNames = map[TargetState]string{
	StateUnknown:      "Unknown",
	StateReset:        "Reset",
	StateSynchronized: "Synchronized",
	StateDebugMode:    "DebugMode",
}

func (s TargetState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("TargetState(%d)", s)
}
