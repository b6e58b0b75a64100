package jobs

import "strings"

// ParseRoute extracts the job ID and optional action from a URL path like
// /api/jobs/{id} or /api/jobs/{id}/{action}. apiPrefix should be like
// "/api/jobs/". Returns ok=false if the path has no job ID or too many segments.
func ParseRoute(path, apiPrefix string) (jobID, action string, ok bool) {
	if !strings.HasPrefix(path, apiPrefix) {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(strings.TrimPrefix(path, apiPrefix), "/"), "/")
	if len(parts) == 0 || parts[0] == "" || len(parts) > 2 {
		return "", "", false
	}

	jobID = parts[0]
	if len(parts) == 2 {
		action = parts[1]
	}
	return jobID, action, true
}
