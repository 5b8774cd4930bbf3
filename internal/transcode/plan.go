// Package transcode implements the isolated worker that turns one uploaded
// video into an HLS rendition set: download, transcode, upload, report,
// cleanup.
package transcode

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Rendition is one rung of the adaptive bitrate ladder.
type Rendition struct {
	Name         string
	Width        int
	Height       int
	MaxRate      string
	AudioBitrate string
}

// DefaultLadder is the three-rung ladder every job produces.
func DefaultLadder() []Rendition {
	return []Rendition{
		{Name: "360p", Width: 480, Height: 360, MaxRate: "600k", AudioBitrate: "64k"},
		{Name: "480p", Width: 640, Height: 480, MaxRate: "900k", AudioBitrate: "128k"},
		{Name: "720p", Width: 1280, Height: 720, MaxRate: "900k", AudioBitrate: "128k"},
	}
}

// Plan holds the fully resolved ffmpeg invocation for one job.
type Plan struct {
	Args       []string
	Renditions []Rendition
	OutputDir  string
	MasterName string
}

// PlanOptions tunes the encode without changing the ladder shape.
type PlanOptions struct {
	Preset         string
	CRF            int
	SegmentSeconds int
}

// BuildPlan creates the ffmpeg argument list that encodes the input into one
// HLS variant per ladder rung plus a master manifest. Each rendition gets its
// own subdirectory under outputDir.
func BuildPlan(input, outputDir string, ladder []Rendition, opts PlanOptions) (*Plan, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("input source is required")
	}
	if strings.TrimSpace(outputDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if len(ladder) == 0 {
		ladder = DefaultLadder()
	}
	absDir, err := filepath.Abs(outputDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return nil, err
	}

	preset := opts.Preset
	if preset == "" {
		preset = "slow"
	}
	crf := opts.CRF
	if crf <= 0 {
		crf = 22
	}
	segmentSeconds := opts.SegmentSeconds
	if segmentSeconds <= 0 {
		segmentSeconds = 3
	}

	args := []string{"-i", input}
	for range ladder {
		args = append(args, "-map", "0:v:0", "-map", "0:a:0")
	}
	args = append(args,
		"-c:v", "libx264",
		"-crf", strconv.Itoa(crf),
		"-c:a", "aac",
		"-ar", "48000",
	)

	varStreamMap := make([]string, 0, len(ladder))
	for idx, rung := range ladder {
		if err := os.MkdirAll(filepath.Join(absDir, rung.Name), 0o755); err != nil {
			return nil, err
		}
		args = append(args,
			fmt.Sprintf("-filter:v:%d", idx), fmt.Sprintf("scale=w=%d:h=%d", rung.Width, rung.Height),
			fmt.Sprintf("-maxrate:v:%d", idx), rung.MaxRate,
			fmt.Sprintf("-b:a:%d", idx), rung.AudioBitrate,
		)
		varStreamMap = append(varStreamMap, fmt.Sprintf("v:%d,a:%d,name:%s", idx, idx, rung.Name))
	}

	args = append(args,
		"-var_stream_map", strings.Join(varStreamMap, " "),
		"-preset", preset,
		"-hls_list_size", "0",
		"-threads", "0",
		"-f", "hls",
		"-hls_playlist_type", "event",
		"-hls_time", strconv.Itoa(segmentSeconds),
		"-hls_flags", "independent_segments",
		"-hls_segment_filename", filepath.ToSlash(filepath.Join(absDir, "%v", "segment-%03d.ts")),
		"-master_pl_name", "master.m3u8",
		filepath.ToSlash(filepath.Join(absDir, "%v", "playlist.m3u8")),
	)

	renditions := make([]Rendition, len(ladder))
	copy(renditions, ladder)

	return &Plan{
		Args:       args,
		Renditions: renditions,
		OutputDir:  absDir,
		MasterName: "master.m3u8",
	}, nil
}
