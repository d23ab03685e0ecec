package scheduling

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Queue ranks, ascending. Emergencies go first, then any recognized priority
// reason, then everyone else in registration order.
const (
	rankEmergency = 0
	rankPriority  = 1
	rankNormal    = 2
)

// QueueEntry is a derived view over one waiting appointment. Like Slot it is
// recomputed per query and never persisted.
type QueueEntry struct {
	AppointmentID uuid.UUID
	PatientID     uuid.UUID
	QueueNumber   int
	Rank          int
	Type          VisitType
	Priority      *Priority
	StartTime     time.Time
}

// PriorityRank maps a visit type and optional priority reason to a sort rank.
func PriorityRank(t VisitType, p *Priority) int {
	if t == VisitEmergency {
		return rankEmergency
	}
	if p != nil && p.Valid() {
		return rankPriority
	}
	return rankNormal
}

// OrderQueue produces the call-next order for a set of waiting appointments:
// ascending (rank, queue number). Ties within a rank break by queue number,
// so the order is a deterministic total order even when priority reasons
// repeat.
func OrderQueue(waiting []Appointment) []QueueEntry {
	entries := make([]QueueEntry, 0, len(waiting))
	for _, a := range waiting {
		if !a.Status.Waiting() {
			continue
		}
		entries = append(entries, QueueEntry{
			AppointmentID: a.ID,
			PatientID:     a.PatientID,
			QueueNumber:   a.QueueNumber,
			Rank:          PriorityRank(a.Type, a.Priority),
			Type:          a.Type,
			Priority:      a.Priority,
			StartTime:     a.StartTime,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Rank != entries[j].Rank {
			return entries[i].Rank < entries[j].Rank
		}
		return entries[i].QueueNumber < entries[j].QueueNumber
	})

	return entries
}
