package engine

import "strings"

// reminderTriggers mark the start of reminder-worthy content in a message.
var reminderTriggers = []string{
	"remind me",
	"don't forget",
	"remember to",
	"set a reminder",
}

// ExtractReminders scans a user message for reminder phrases and returns the
// clause from each trigger to the end of its sentence. Heuristic by design;
// the background worker persists whatever comes back, best-effort.
func ExtractReminders(message string) []string {
	lower := strings.ToLower(message)
	var reminders []string
	for _, trigger := range reminderTriggers {
		idx := strings.Index(lower, trigger)
		if idx < 0 {
			continue
		}
		clause := message[idx:]
		if end := strings.IndexAny(clause, ".!?\n"); end > 0 {
			clause = clause[:end]
		}
		clause = strings.TrimSpace(clause)
		if clause != "" {
			reminders = append(reminders, clause)
		}
	}
	return reminders
}
