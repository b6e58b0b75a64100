package jobs

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ReportFilename is the object name of a job's rendered report.
const ReportFilename = "report.txt"

// ErrMalformedKey reports an upload key that is not {jobId}/{filename}.
var ErrMalformedKey = errors.New("malformed upload key")

// ParseKey extracts the job ID (leading path segment) and filename (last
// path segment) from an upload key of the form {jobId}/{filename}. Keys
// arrive URL-encoded in S3 notifications and are decoded first.
func ParseKey(key string) (jobID, filename string, err error) {
	decoded, err := url.QueryUnescape(key)
	if err != nil {
		return "", "", fmt.Errorf("%w %q: %v", ErrMalformedKey, key, err)
	}

	parts := strings.Split(decoded, "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("%w %q: expected {jobId}/{filename}", ErrMalformedKey, decoded)
	}
	jobID = parts[0]
	filename = parts[len(parts)-1]
	if jobID == "" || filename == "" {
		return "", "", fmt.Errorf("%w %q: empty job id or filename", ErrMalformedKey, decoded)
	}
	return jobID, filename, nil
}

// DecodeKey returns the URL-decoded object key, or key itself when it is
// not valid URL encoding.
func DecodeKey(key string) string {
	if decoded, err := url.QueryUnescape(key); err == nil {
		return decoded
	}
	return key
}

// OutputBucket derives the report bucket from the upload bucket by
// replacing "input" with "output".
func OutputBucket(inputBucket string) string {
	return strings.ReplaceAll(inputBucket, "input", "output")
}

// ReportKey returns the object key of a job's report in the output bucket.
func ReportKey(jobID string) string {
	return jobID + "/" + ReportFilename
}
