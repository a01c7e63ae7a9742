package services

import (
	"database/sql"
	"log"
	"time"
)

// ShouldRunNow decides whether a claimed job is due. The scheduled time is
// interpreted as wall-clock time in the job's own zone and compared against
// the current time converted into that zone. A missing schedule means always
// eligible; an unknown zone fails open so a bad row cannot block the pipeline.
func ShouldRunNow(scheduledTime sql.NullTime, timeZone sql.NullString, now time.Time) bool {
	if !scheduledTime.Valid {
		return true
	}

	loc := time.UTC
	if timeZone.Valid && timeZone.String != "" {
		parsed, err := time.LoadLocation(timeZone.String)
		if err != nil {
			log.Printf("Warning: invalid time zone %q, treating job as due: %v", timeZone.String, err)
			return true
		}
		loc = parsed
	}

	// The stored timestamp's wall-clock fields are the local schedule; rebuild
	// it in the job's zone rather than trusting the stored offset.
	sched := scheduledTime.Time
	scheduledLocal := time.Date(sched.Year(), sched.Month(), sched.Day(),
		sched.Hour(), sched.Minute(), sched.Second(), sched.Nanosecond(), loc)

	return !now.In(loc).Before(scheduledLocal)
}
