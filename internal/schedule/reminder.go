package schedule

import "sort"

// DefaultReminderMinutes is part of every class's reminders and is not
// stored.
const DefaultReminderMinutes = 15

// ReminderSet returns the default reminder plus extra, de-duplicated and
// sorted ascending.
func ReminderSet(extra []int) []int {
	seen := map[int]bool{DefaultReminderMinutes: true}
	out := []int{DefaultReminderMinutes}
	for _, m := range extra {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	sort.Ints(out)
	return out
}

// ExtraReminders drops the default reminder, leaving what gets stored.
func ExtraReminders(reminders []int) []int {
	var out []int
	for _, m := range ReminderSet(reminders) {
		if m != DefaultReminderMinutes {
			out = append(out, m)
		}
	}
	return out
}
