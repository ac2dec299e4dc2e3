package queue

// Bounds on strings persisted to job_runs and job_queue.last_error.
const (
	ErrorMessageMax  = 2000
	ResultSummaryMax = 2000
	ErrorStackMax    = 8000
)

const ellipsis = "…"

// Truncate bounds s to max runes, replacing the tail with an ellipsis marker
// when trimming occurs. The result is never longer than max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + ellipsis
}
