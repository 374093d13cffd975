package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/himanishpuri/AdvertDNA/pkg/advertdna"
	"github.com/himanishpuri/AdvertDNA/pkg/advertdna/probe"
	"github.com/himanishpuri/AdvertDNA/pkg/models"
	"github.com/himanishpuri/AdvertDNA/pkg/utils"
)

// Registrar is the part of the pipeline the server drives.
type Registrar interface {
	Register(ctx context.Context, displayName, uploadFilename string, body io.Reader) (*advertdna.Registration, error)
	Match(ctx context.Context, uploadFilename string, body io.Reader) ([]models.FingerprintRecord, error)
	List(ctx context.Context) ([]models.IdentifierRow, error)
	Extension() string
}

type StreamProber interface {
	Probe(ctx context.Context, rawURL string) (probe.Result, error)
}

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	pipeline Registrar
	prober   StreamProber
	config   *ServerConfig
	validate *validator.Validate
	log      advertdna.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Addr           string
	MaxUploadBytes int64
	AllowedOrigins []string
	UploadTimeout  time.Duration
	ProbeTimeout   time.Duration
}

// NewServer creates a new server instance
func NewServer(pipeline Registrar, prober StreamProber, config *ServerConfig, log advertdna.Logger) *Server {
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 100 << 20
	}
	if config.UploadTimeout <= 0 {
		config.UploadTimeout = 5 * time.Minute
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = time.Minute
	}
	return &Server{
		pipeline: pipeline,
		prober:   prober,
		config:   config,
		validate: validator.New(),
		log:      log,
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// filePart returns the "file" part of a multipart body as a stream, so the
// clip is never buffered before the pipeline sees it.
func (s *Server) filePart(w http.ResponseWriter, r *http.Request) (*multipart.Part, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" && part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}

func (s *Server) extensionMessage() string {
	return fmt.Sprintf("File with `.%s` extension is only accepted.", s.pipeline.Extension())
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"message": "Radio API app",
		"service": "AdvertDNA API",
		"endpoints": map[string]string{
			"health":         "GET /health",
			"metrics":        "GET /metrics",
			"upload":         "POST /upload?name={name}",
			"match":          "POST /api/match",
			"advertisements": "GET /api/advertisements",
			"validChannel":   "GET /valid/channel?url={url}",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleUpload handles POST /upload?name= with the clip in multipart field "file".
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.config.UploadTimeout)
	defer cancel()

	file, err := s.filePart(w, r)
	if err != nil {
		s.log.Errorf("Failed to get uploaded file: %v", err)
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if !utils.HasExtension(file.FileName(), s.pipeline.Extension()) {
		registrationsTotal.WithLabelValues("rejected").Inc()
		s.log.Infof("Rejected %s: unsupported extension", file.FileName())
		s.respondJSON(w, http.StatusNotAcceptable, UploadResponse{
			Success: false,
			Status:  http.StatusNotAcceptable,
			Message: s.extensionMessage(),
		})
		return
	}

	query := UploadQuery{Name: r.URL.Query().Get("name")}
	if err := s.validate.Struct(query); err != nil {
		s.respondError(w, http.StatusBadRequest, "name query parameter is required")
		return
	}

	reg, err := s.pipeline.Register(ctx, query.Name, file.FileName(), file)
	switch {
	case errors.Is(err, advertdna.ErrUnsupportedExtension):
		registrationsTotal.WithLabelValues("rejected").Inc()
		s.log.Infof("Rejected %s: %v", file.FileName(), err)
		s.respondJSON(w, http.StatusNotAcceptable, UploadResponse{
			Success: false,
			Status:  http.StatusNotAcceptable,
			Message: s.extensionMessage(),
		})
		return
	case errors.Is(err, advertdna.ErrNameTaken):
		registrationsTotal.WithLabelValues("rejected").Inc()
		s.respondJSON(w, http.StatusConflict, UploadResponse{
			Success: false,
			Status:  http.StatusConflict,
			Message: "Advertisement name already registered for different audio",
		})
		return
	case errors.Is(err, advertdna.ErrValidation):
		registrationsTotal.WithLabelValues("rejected").Inc()
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, advertdna.ErrEngine):
		registrationsTotal.WithLabelValues("error").Inc()
		s.log.Errorf("Registration of %q failed: %v", query.Name, err)
		s.respondError(w, http.StatusServiceUnavailable, "Fingerprint engine unavailable")
		return
	case err != nil:
		registrationsTotal.WithLabelValues("error").Inc()
		s.log.Errorf("Registration of %q failed: %v", query.Name, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to register advertisement")
		return
	}

	registrationsTotal.WithLabelValues(reg.Outcome.String()).Inc()
	if reg.Outcome == advertdna.OutcomeDuplicate {
		s.respondJSON(w, http.StatusNotAcceptable, UploadResponse{
			Success:        false,
			Status:         http.StatusNotAcceptable,
			Message:        "Advertisement already exists",
			RegisteredID:   reg.Identifier,
			RegisteredName: reg.CanonicalName,
		})
		return
	}

	s.respondJSON(w, http.StatusCreated, UploadResponse{
		Success:           true,
		Status:            http.StatusCreated,
		Message:           "Advertisement Created",
		AdvertisementID:   reg.Identifier,
		AdvertisementName: reg.CanonicalName,
	})
}

// handleMatch handles POST /api/match (multipart file upload)
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.config.UploadTimeout)
	defer cancel()

	file, err := s.filePart(w, r)
	if err != nil {
		s.log.Errorf("Failed to get uploaded file: %v", err)
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	records, err := s.pipeline.Match(ctx, file.FileName(), file)
	switch {
	case errors.Is(err, advertdna.ErrUnsupportedExtension):
		matchRequestsTotal.WithLabelValues("rejected").Inc()
		s.respondError(w, http.StatusNotAcceptable, s.extensionMessage())
		return
	case errors.Is(err, advertdna.ErrValidation):
		matchRequestsTotal.WithLabelValues("rejected").Inc()
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, advertdna.ErrEngine):
		matchRequestsTotal.WithLabelValues("error").Inc()
		s.log.Errorf("Match of %s failed: %v", file.FileName(), err)
		s.respondError(w, http.StatusServiceUnavailable, "Fingerprint engine unavailable")
		return
	case err != nil:
		matchRequestsTotal.WithLabelValues("error").Inc()
		s.log.Errorf("Match of %s failed: %v", file.FileName(), err)
		s.respondError(w, http.StatusInternalServerError, "Failed to match clip")
		return
	}

	matchRequestsTotal.WithLabelValues(strconv.FormatBool(len(records) > 0)).Inc()
	s.log.Infof("Match complete: found %d matches", len(records))
	s.respondJSON(w, http.StatusOK, MatchResponse{
		Matches: toMatchDTOs(records),
		Count:   len(records),
	})
}

// handleListAdvertisements handles GET /api/advertisements
func (s *Server) handleListAdvertisements(w http.ResponseWriter, r *http.Request) {
	rows, err := s.pipeline.List(r.Context())
	if err != nil {
		s.log.Errorf("Failed to list advertisements: %v", err)
		s.respondError(w, http.StatusServiceUnavailable, "Failed to retrieve advertisements")
		return
	}

	s.respondJSON(w, http.StatusOK, ListAdvertisementsResponse{
		Advertisements: rows,
		Count:          len(rows),
	})
}

// handleValidChannel handles GET /valid/channel?url=
func (s *Server) handleValidChannel(w http.ResponseWriter, r *http.Request) {
	query := ProbeQuery{URL: r.URL.Query().Get("url")}
	if err := s.validate.Struct(query); err != nil {
		s.respondError(w, http.StatusBadRequest, "url query parameter must be an absolute URL")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.ProbeTimeout)
	defer cancel()

	res, err := s.prober.Probe(ctx, query.URL)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	probesTotal.WithLabelValues(strconv.FormatBool(res.Reachable)).Inc()

	resp := ProbeResponse{
		Success: res.Reachable,
		Status:  http.StatusAccepted,
		Message: "Url can be used.",
		Bitrate: res.BitrateKbps,
	}
	if !res.Reachable {
		resp.Status = http.StatusNotAcceptable
		resp.Message = "Url cannot be used."
	}
	s.respondJSON(w, resp.Status, resp)
}
