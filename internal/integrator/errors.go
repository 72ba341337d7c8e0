package integrator

import "fmt"

// BindingError is a fatal setup failure: a generated kernel could not be
// connected to its destination array or its compiled handle.
type BindingError struct {
	Kernel string
	Dest   string
	Detail string
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("integrator: binding %s to %s: %s", e.Kernel, e.Dest, e.Detail)
}

// ProgramError is a fatal capture failure: the timestep definition names a
// stage that no destination defines. Detected before any step runs.
type ProgramError struct {
	Stage string
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("integrator: program runs stage %q, which no destination defines", e.Stage)
}

// LaunchError aborts an in-progress step: a kernel launch or buffer
// resolution failed. There is no retry; a partial timestep would corrupt the
// simulation state.
type LaunchError struct {
	Stage string
	Dest  string
	Err   error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("integrator: launching %s for %s: %v", e.Stage, e.Dest, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }
