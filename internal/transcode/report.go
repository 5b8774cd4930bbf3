package transcode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type linkReport struct {
	VideoID   string `json:"videoId"`
	VideoLink string `json:"videoLink"`
}

// ReportPlaybackLink posts the finished playback URL to the backend's
// link-creation endpoint. A conflict response means an earlier attempt for
// the same job already registered the link, which counts as success.
func ReportPlaybackLink(ctx context.Context, client *http.Client, endpoint, jobID, playbackURL string) error {
	if client == nil {
		client = http.DefaultClient
	}

	payload, err := json.Marshal(linkReport{VideoID: jobID, VideoLink: playbackURL})
	if err != nil {
		return &ReportError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return &ReportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return &ReportError{Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusConflict:
		return nil
	default:
		return &ReportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
}
