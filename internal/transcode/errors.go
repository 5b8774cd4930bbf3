package transcode

import "fmt"

// DownloadError reports a failure fetching the source media.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download source: %v", e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// TranscodeError reports a non-zero exit from the codec tool, carrying the
// tail of its diagnostic output.
type TranscodeError struct {
	ExitCode int
	Output   string
	Err      error
}

func (e *TranscodeError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("ffmpeg exited with code %d: %v\n%s", e.ExitCode, e.Err, e.Output)
	}
	return fmt.Sprintf("ffmpeg exited with code %d: %v", e.ExitCode, e.Err)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// UploadError reports that every file in the rendition set failed to upload.
type UploadError struct {
	Failed int
	Total  int
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload rendition set: %d of %d files failed: %v", e.Failed, e.Total, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// ReportError reports a failure publishing the playback link to the backend.
type ReportError struct {
	StatusCode int
	Err        error
}

func (e *ReportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("report playback link: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("report playback link: %v", e.Err)
}

func (e *ReportError) Unwrap() error { return e.Err }
