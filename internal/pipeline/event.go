// Package pipeline runs the queue poller that turns storage upload events
// into dispatched transcode jobs.
package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ErrMalformedEvent marks queue messages whose body does not carry a usable
// storage notification. Such messages are skipped without acknowledgement so
// the queue can redeliver or dead-letter them.
var ErrMalformedEvent = errors.New("pipeline: malformed upload event")

type uploadNotification struct {
	Records []struct {
		S3 struct {
			Object struct {
				Key string `json:"key"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// ParseUploadEvent extracts the uploaded object key from a storage
// notification body. Keys arrive URL-encoded in the notification schema.
func ParseUploadEvent(body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("%w: empty body", ErrMalformedEvent)
	}

	var event uploadNotification
	if err := json.Unmarshal([]byte(body), &event); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if len(event.Records) == 0 {
		return "", fmt.Errorf("%w: no records", ErrMalformedEvent)
	}

	key := event.Records[0].S3.Object.Key
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: missing object key", ErrMalformedEvent)
	}

	decoded, err := url.QueryUnescape(key)
	if err != nil {
		return "", fmt.Errorf("%w: undecodable object key %q", ErrMalformedEvent, key)
	}
	return decoded, nil
}

// DeriveJobID maps an uploaded object key to its job correlation ID by
// stripping the path prefix and file extension:
// "uploads/video-abc123.mp4" becomes "video-abc123".
func DeriveJobID(key string) (string, error) {
	base := path.Base(strings.TrimSpace(key))
	jobID := strings.TrimSuffix(base, path.Ext(base))
	if jobID == "" || jobID == "." || jobID == "/" {
		return "", fmt.Errorf("%w: key %q yields no job id", ErrMalformedEvent, key)
	}
	return jobID, nil
}
