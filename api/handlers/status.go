package handlers

import (
	"context"
	"fmt"
	"time"
)

type StatusResult struct {
	Body struct {
		Started string `json:"started" doc:"Time in UTC when the server started"`
		Uptime  string `json:"uptime" doc:"Uptime of the riool server"`
		Tasks   string `json:"tasks" enum:"running,stopped" doc:"State of the background task router"`
	}
}

// StatusHandler reports uptime and whether background tasks are processed.
func StatusHandler(start time.Time, tasksRunning func() bool) func(ctx context.Context, input *struct{}) (*StatusResult, error) {
	return func(ctx context.Context, input *struct{}) (*StatusResult, error) {
		result := &StatusResult{}
		result.Body.Started = start.UTC().Format(time.RFC3339)
		result.Body.Uptime = formatUptime(time.Since(start))
		result.Body.Tasks = "stopped"
		if tasksRunning != nil && tasksRunning() {
			result.Body.Tasks = "running"
		}
		return result, nil
	}
}

// formatUptime prints a duration as days, hours, minutes and seconds,
// leaving out leading zero units.
func formatUptime(d time.Duration) string {
	total := int(d.Seconds())
	units := []struct {
		size   int
		suffix string
	}{{86400, "d"}, {3600, "h"}, {60, "m"}, {1, "s"}}

	out := ""
	for _, u := range units {
		n := total / u.size
		total -= n * u.size
		switch {
		case out != "":
			out += fmt.Sprintf(" %02d%s", n, u.suffix)
		case n > 0 || u.size == 1:
			if u.size == 86400 {
				out = fmt.Sprintf("%d%s", n, u.suffix)
			} else {
				out = fmt.Sprintf("%02d%s", n, u.suffix)
			}
		}
	}
	return out
}
