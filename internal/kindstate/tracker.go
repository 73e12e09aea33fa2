// Package kindstate tracks, per data-kind (audio/video), whether a worker
// has already forwarded that kind's sequence header and what the last
// timestamp written for it was. A worker consults this before deciding
// whether an incoming tag needs to be forwarded at all.
package kindstate

// Kind indexes the two tracked stream kinds.
type Kind int

const (
	Audio Kind = iota
	Video
	numKinds
)

type entry struct {
	headerWritten bool
	lastTimestamp int32
}

// Tracker holds the per-kind state for one part. The zero value is not
// usable; construct with New so lastTimestamp starts at -1 for both kinds.
type Tracker struct {
	entries [numKinds]entry
}

// New returns a Tracker with both kinds' lastTimestamp initialized to -1,
// meaning "no tag of this kind has been written yet."
func New() *Tracker {
	t := &Tracker{}
	for i := range t.entries {
		t.entries[i].lastTimestamp = -1
	}
	return t
}

// HeaderWritten reports whether kind's sequence header has been forwarded.
func (t *Tracker) HeaderWritten(k Kind) bool {
	return t.entries[k].headerWritten
}

// SetHeaderWritten records that kind's sequence header has been forwarded.
func (t *Tracker) SetHeaderWritten(k Kind) {
	t.entries[k].headerWritten = true
}

// LastTimestamp returns the timestamp most recently written for kind, or -1
// if none has been written.
func (t *Tracker) LastTimestamp(k Kind) int32 {
	return t.entries[k].lastTimestamp
}

// SetLastTimestamp records the timestamp most recently written for kind.
func (t *Tracker) SetLastTimestamp(k Kind, ts int32) {
	t.entries[k].lastTimestamp = ts
}

// KindOf maps an audio/video tag, given as whether it is video, onto the
// Kind it tracks.
// Metadata tags have no entry; callers should not call this for them.
func KindOf(isVideo bool) Kind {
	if isVideo {
		return Video
	}
	return Audio
}
