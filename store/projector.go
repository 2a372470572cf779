package store

// Project derives the current list of live events from an operation
// log. It is a pure fold over surviving create entries in append
// order: an event is live iff its create entry is still active. The
// projection is a cache derived from the log, never a second source
// of truth — it must be recomputable from the log at any point.
func Project(entries []*LogEntry) []*Event {
	events := make([]*Event, 0, len(entries))
	for _, entry := range entries {
		if !entry.Active || entry.Kind != LogKindCreate || entry.Event == nil {
			continue
		}
		events = append(events, entry.Event.Clone())
	}
	return events
}
