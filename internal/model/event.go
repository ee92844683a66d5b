package model

import "time"

// Event represents a ticketed event.  Events own one or more plans and
// are administered by a single manager who is allowed to validate
// tickets at the gate.
//
// Fields:
//  ID          – primary key identifier.
//  Name        – display name.
//  Description – free-form description.
//  Category    – short category label (concert, theatre, ...).
//  StartTime   – when the event begins.
//  EndTime     – when the event ends (nullable).
//  ManagerID   – user administering the event.
type Event struct {
	ID          uint64     // events.id
	Name        string     // events.name
	Description string     // events.description
	Category    string     // events.category
	StartTime   time.Time  // events.start_time
	EndTime     *time.Time // events.end_time (nullable)
	ManagerID   uint64     // events.manager_id
}

// DefaultEventDuration is assumed when an event has no end time.
const DefaultEventDuration = 4 * time.Hour

// Ends returns the end of the event, falling back to StartTime plus
// DefaultEventDuration when EndTime is unset.
func (e Event) Ends() time.Time {
	if e.EndTime != nil {
		return *e.EndTime
	}
	return e.StartTime.Add(DefaultEventDuration)
}

// StartsWithin reports whether the event starts within d of now.  Events
// that have already started are considered to start within any window.
func (e Event) StartsWithin(now time.Time, d time.Duration) bool {
	return e.StartTime.Sub(now) <= d
}
