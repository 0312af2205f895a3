package reconcile

// Report summarizes one reconcile run
type Report struct {
	Machine string
	Root    string
	Copied  []Copy
	Skipped []string
	Failed  []Failure
}

// Copy records a source mirrored into the staging directory
type Copy struct {
	Source string
	Target string
	Dir    bool
}

// Failure records an entry that could not be mirrored
type Failure struct {
	Source string
	Target string
	Err    error
}

// OK reports whether every entry was copied or deliberately skipped
func (r *Report) OK() bool {
	return len(r.Failed) == 0
}
