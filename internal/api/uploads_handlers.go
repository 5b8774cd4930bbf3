// Package api implements the upload facade: presigned URL issuance, playback
// link registration, and link polling.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"vodforge/internal/objectstore"
	"vodforge/internal/observability/metrics"
	"vodforge/internal/registry"
)

// Handler serves the /upload API surface.
type Handler struct {
	Store        objectstore.Gateway
	Registry     registry.Store
	Logger       *slog.Logger
	Metrics      *metrics.Recorder
	UploadBucket string
	UploadTTL    time.Duration
	DownloadTTL  time.Duration
}

type presignedUploadResponse struct {
	PresignedURL string `json:"presignedUrl"`
	Key          string `json:"key"`
	VideoID      string `json:"videoId"`
}

type downloadURLRequest struct {
	Key string `json:"key"`
}

type downloadURLResponse struct {
	AccessURL string `json:"accessUrl"`
}

type videoLinkRequest struct {
	VideoID   string `json:"videoId"`
	VideoLink string `json:"videoLink"`
}

type videoLinkResponse struct {
	VideoID   string `json:"videoId"`
	Link      string `json:"link"`
	CreatedAt string `json:"createdAt"`
}

// newUploadKey generates the object key a client uploads its video to. The
// UUID section doubles as the job correlation ID for the rest of the
// pipeline.
func newUploadKey() (key, videoID string) {
	videoID = "video-" + uuid.NewString()
	return "uploads/" + videoID + ".mp4", videoID
}

// HandlePresignedUpload issues a fresh upload URL plus the key and derived
// video ID the client needs to poll for the finished playback link.
func (h *Handler) HandlePresignedUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}

	key, videoID := newUploadKey()
	uploadURL, err := h.Store.PresignUpload(r.Context(), h.UploadBucket, key, h.UploadTTL)
	if err != nil {
		h.logger(r).Error("presign upload failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("failed to create upload url"))
		return
	}

	writeJSON(w, http.StatusOK, presignedUploadResponse{
		PresignedURL: uploadURL,
		Key:          key,
		VideoID:      videoID,
	})
}

// HandleDownloadURL presigns a read of an uploaded source object.
func (h *Handler) HandleDownloadURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}

	var req downloadURLRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		writeError(w, http.StatusBadRequest, errors.New("key is required"))
		return
	}

	accessURL, err := h.Store.PresignDownload(r.Context(), h.UploadBucket, req.Key, h.DownloadTTL)
	if err != nil {
		if errors.Is(err, objectstore.ErrKeyRequired) || errors.Is(err, objectstore.ErrBucketRequired) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		h.logger(r).Error("presign download failed", "key", req.Key, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("failed to create download url"))
		return
	}

	writeJSON(w, http.StatusOK, downloadURLResponse{AccessURL: accessURL})
}

// HandleCreateVideoLink registers the playback link a finished worker
// reports. Duplicate registrations for the same video conflict; the first
// write wins.
func (h *Handler) HandleCreateVideoLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}

	var req videoLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if strings.TrimSpace(req.VideoID) == "" || strings.TrimSpace(req.VideoLink) == "" {
		writeError(w, http.StatusBadRequest, errors.New("videoId and videoLink are required"))
		return
	}
	if _, err := url.ParseRequestURI(req.VideoLink); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("videoLink must be a valid URL"))
		return
	}

	record := registry.Record{JobID: req.VideoID, PlaybackURL: req.VideoLink}
	if err := h.Registry.Create(r.Context(), record); err != nil {
		if errors.Is(err, registry.ErrConflict) {
			writeError(w, http.StatusConflict, errors.New("link already exists for video"))
			return
		}
		h.logger(r).Error("create video link failed", "video_id", req.VideoID, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("failed to store video link"))
		return
	}

	// a registered link is the only completion signal a fire-and-forget
	// worker ever sends
	if h.Metrics != nil {
		h.Metrics.JobCompleted()
	}

	h.logger(r).Info("video link registered", "video_id", req.VideoID)
	writeJSON(w, http.StatusCreated, videoLinkResponse{
		VideoID:   req.VideoID,
		Link:      req.VideoLink,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// HandleGetVideoLink serves client polling for a finished playback link.
func (h *Handler) HandleGetVideoLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}

	videoID := strings.TrimSpace(r.PathValue("videoId"))
	if videoID == "" {
		writeError(w, http.StatusBadRequest, errors.New("videoId is required"))
		return
	}

	record, err := h.Registry.Get(r.Context(), videoID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, errors.New("Video not generated yet"))
			return
		}
		h.logger(r).Error("lookup video link failed", "video_id", videoID, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("failed to look up video link"))
		return
	}

	writeJSON(w, http.StatusOK, videoLinkResponse{
		VideoID:   record.JobID,
		Link:      record.PlaybackURL,
		CreatedAt: record.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
}

func (h *Handler) logger(r *http.Request) *slog.Logger {
	return loggerFor(r, h.Logger)
}
