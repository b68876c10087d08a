package icp

import "github.com/san-kum/legbalance/internal/legged"

// FootstepQueue holds the plan front to back. Entries are never reordered.
type FootstepQueue struct {
	entries []legged.TimedFootstep
}

func (q *FootstepQueue) Len() int { return len(q.entries) }

func (q *FootstepQueue) Clear() {
	q.entries = q.entries[:0]
}

// Append validates and queues the entry at the tail. Rejected entries leave
// the queue unchanged.
func (q *FootstepQueue) Append(entry legged.TimedFootstep) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	q.entries = append(q.entries, entry)
	return nil
}

func (q *FootstepQueue) Head() (legged.TimedFootstep, bool) {
	return q.At(0)
}

func (q *FootstepQueue) At(i int) (legged.TimedFootstep, bool) {
	if i < 0 || i >= len(q.entries) {
		return legged.TimedFootstep{}, false
	}
	return q.entries[i], true
}

// PopHead consumes the completed head entry.
func (q *FootstepQueue) PopHead() (legged.TimedFootstep, bool) {
	if len(q.entries) == 0 {
		return legged.TimedFootstep{}, false
	}
	head := q.entries[0]
	copy(q.entries, q.entries[1:])
	q.entries = q.entries[:len(q.entries)-1]
	return head, true
}
