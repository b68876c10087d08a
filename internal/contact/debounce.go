package contact

// Debouncer filters raw load-bearing signals: a new value is committed only
// after it has been sampled threshold times in a row.
type Debouncer struct {
	threshold int
	signals   map[string]*signal
}

type signal struct {
	committed bool
	candidate bool
	count     int
}

func NewDebouncer(threshold int) *Debouncer {
	if threshold < 1 {
		threshold = 1
	}
	return &Debouncer{
		threshold: threshold,
		signals:   make(map[string]*signal),
	}
}

// Sample feeds one raw reading and returns the committed value together with
// whether it changed on this sample. Unknown bodies start unloaded.
func (d *Debouncer) Sample(name string, loaded bool) (value bool, changed bool) {
	s, ok := d.signals[name]
	if !ok {
		s = &signal{}
		d.signals[name] = s
	}
	if loaded == s.committed {
		s.count = 0
		return s.committed, false
	}
	if loaded != s.candidate || s.count == 0 {
		s.candidate = loaded
		s.count = 0
	}
	s.count++
	if s.count >= d.threshold {
		s.committed = loaded
		s.count = 0
		return s.committed, true
	}
	return s.committed, false
}

// Seed sets the committed value without counting, e.g. when the owner
// changes contact itself.
func (d *Debouncer) Seed(name string, loaded bool) {
	d.signals[name] = &signal{committed: loaded, candidate: loaded}
}
