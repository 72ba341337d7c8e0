package integrator

// OpKind tags one operation of a timestep program.
type OpKind int

const (
	// OpRunStage launches the stage's kernels on every destination that
	// defines it.
	OpRunStage OpKind = iota
	// OpRecompute refreshes neighbor information and re-evaluates
	// accelerations. This is the only point where that happens.
	OpRecompute
	// OpPostStage marks a completed stage: advances t to origT + DtFrac*dt
	// and fires the post-stage callback.
	OpPostStage
)

// Op is one tagged operation. Programs are captured once and re-executed
// identically every timestep; order and interleaving are never inferred.
type Op struct {
	Kind       OpKind
	Stage      string  // OpRunStage
	StageIndex int     // OpPostStage, starting from 1
	DtFrac     float64 // OpPostStage fraction of dt elapsed at the mark
}

// RunStage runs one named stage across all destinations defining it.
func RunStage(name string) Op { return Op{Kind: OpRunStage, Stage: name} }

// Recompute refreshes the spatial index and re-evaluates accelerations.
func Recompute() Op { return Op{Kind: OpRecompute} }

// PostStageMark reports stage completion. dtFrac scales dt to the stage's
// elapsed time (0.5 mid-scheme, 1.0 at the end); values <= 0 mean 1.0.
func PostStageMark(stage int, dtFrac float64) Op {
	if dtFrac <= 0 {
		dtFrac = 1.0
	}
	return Op{Kind: OpPostStage, StageIndex: stage, DtFrac: dtFrac}
}

// Program is a captured timestep definition, validated against a call table.
type Program struct {
	ops []Op
}

// Capture lowers a timestep definition into an executable program. A RunStage
// naming a stage no destination defines fails here, before any step runs;
// stages that only some destinations define are fine (the rest are skipped).
func Capture(ops []Op, calls *CallTable) (*Program, error) {
	p := &Program{ops: make([]Op, len(ops))}
	for i, op := range ops {
		if op.Kind == OpRunStage && !calls.HasStage(op.Stage) {
			return nil, &ProgramError{Stage: op.Stage}
		}
		if op.Kind == OpPostStage && op.DtFrac <= 0 {
			op.DtFrac = 1.0
		}
		p.ops[i] = op
	}
	return p, nil
}

// Ops returns the captured operation sequence.
func (p *Program) Ops() []Op { return p.ops }
