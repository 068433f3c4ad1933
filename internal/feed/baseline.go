package feed

// Baseline detects a change of the newest record id. The first observed id
// only establishes the baseline; later ids different from the previous one
// are reported as new.
type Baseline struct {
	lastID      string
	established bool
}

// Observe records id and reports whether it is a new result.
func (b *Baseline) Observe(id string) bool {
	if !b.established {
		b.lastID = id
		b.established = true
		return false
	}
	if id == b.lastID {
		return false
	}
	b.lastID = id
	return true
}

// Established reports whether a baseline id has been captured.
func (b *Baseline) Established() bool {
	return b.established
}

// LastID returns the most recently observed id.
func (b *Baseline) LastID() string {
	return b.lastID
}
