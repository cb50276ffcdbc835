package pipeline

import "fmt"

// State is the position of one invocation in the build pipeline.
type State int

const (
	Configured State = iota
	Built
	Resolved
	Packaged
	Installed
	Done

	ValidationFailed
	CleanFailed
	CompileFailed
	ArtifactMissing
	PackagingFailed
	InstallFailed
)

var stateNames = map[State]string{
	Configured:       "configured",
	Built:            "built",
	Resolved:         "resolved",
	Packaged:         "packaged",
	Installed:        "installed",
	Done:             "done",
	ValidationFailed: "validation-failed",
	CleanFailed:      "clean-failed",
	CompileFailed:    "compile-failed",
	ArtifactMissing:  "artifact-missing",
	PackagingFailed:  "packaging-failed",
	InstallFailed:    "install-failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// Failed reports whether s is a failure state.
func (s State) Failed() bool {
	return s >= ValidationFailed
}

// transitions lists the legal successors of every state. Each success
// state is reached only from its predecessor and a failure halts the run
// where it happened.
var transitions = map[State][]State{
	Configured: {Built, CleanFailed, CompileFailed},
	Built:      {Resolved, ArtifactMissing},
	Resolved:   {Packaged, CompileFailed, ArtifactMissing, PackagingFailed},
	Packaged:   {Installed, Done, InstallFailed},
	Installed:  {Done},
}

// CanTransition reports whether the pipeline may move from one state to
// the other.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
