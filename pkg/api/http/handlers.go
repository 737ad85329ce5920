package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aescanero/vocalmetrics/internal/acoustics"
	"github.com/aescanero/vocalmetrics/internal/application/analyzer"
	"github.com/aescanero/vocalmetrics/internal/domain"
	"github.com/aescanero/vocalmetrics/internal/system"
)

const (
	endpointAnalyzeVocal = "analyze_vocal"
	endpointSubmit       = "submit"
)

// SubmitResponse represents an analysis submission response
type SubmitResponse struct {
	ID          string                `json:"id"`
	Status      domain.AnalysisStatus `json:"status"`
	SubmittedAt time.Time             `json:"submitted_at"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	checks := gin.H{}

	if s.storage != nil {
		if err := s.storage.Ping(ctx); err != nil {
			s.logger.Warn("storage health check failed", zap.Error(err))
			checks["storage"] = err.Error()
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		} else {
			checks["storage"] = "ok"
		}
	}

	if s.pool != nil {
		poolStatus := s.pool.Health().GetStatus()
		checks["workers"] = poolStatus
		if !poolStatus.Healthy && status == "healthy" {
			status = "degraded"
		}
	}

	body := gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	}
	if stats, err := system.Snapshot(ctx); err == nil {
		body["system"] = stats
	} else {
		s.logger.Debug("failed to collect system stats", zap.Error(err))
	}

	c.JSON(code, body)
}

// handleAnalyzeVocal analyses an uploaded recording and answers with the
// four voice metrics
func (s *Server) handleAnalyzeVocal(c *gin.Context) {
	upload, closeUpload, err := s.readUpload(c)
	if err != nil {
		s.recordRequest(endpointAnalyzeVocal, "rejected")
		c.JSON(flatStatus(err), gin.H{"error": err.Error()})
		return
	}
	defer closeUpload()

	analysis, err := s.analyzer.Analyze(c.Request.Context(), upload)
	if err != nil {
		s.logger.Error("analysis failed",
			zap.String("filename", upload.Filename),
			zap.Error(err))
		s.recordRequest(endpointAnalyzeVocal, "failed")
		c.JSON(flatStatus(err), gin.H{"error": err.Error()})
		return
	}

	s.recordRequest(endpointAnalyzeVocal, "completed")
	c.JSON(http.StatusOK, analysis.Metrics)
}

// handleSubmitAnalysis queues an uploaded recording for analysis
func (s *Server) handleSubmitAnalysis(c *gin.Context) {
	upload, closeUpload, err := s.readUpload(c)
	if err != nil {
		s.recordRequest(endpointSubmit, "rejected")
		s.writeError(c, err)
		return
	}
	defer closeUpload()

	analysis, err := s.analyzer.Submit(c.Request.Context(), upload)
	if err != nil {
		s.logger.Error("failed to submit analysis",
			zap.String("filename", upload.Filename),
			zap.Error(err))
		s.recordRequest(endpointSubmit, "failed")
		s.writeError(c, err)
		return
	}

	if analysis.Cached {
		s.recordRequest(endpointSubmit, "cached")
		c.JSON(http.StatusOK, analysis)
		return
	}

	s.recordRequest(endpointSubmit, "accepted")
	c.JSON(http.StatusAccepted, SubmitResponse{
		ID:          analysis.ID,
		Status:      analysis.Status,
		SubmittedAt: analysis.SubmittedAt,
	})
}

// handleGetAnalysis returns an analysis and its results
func (s *Server) handleGetAnalysis(c *gin.Context) {
	analysisID := c.Param("id")

	analysis, err := s.analyzer.Get(c.Request.Context(), analysisID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, analysis)
}

// readUpload extracts the "file" field of a multipart request. The returned
// func closes the upload body.
func (s *Server) readUpload(c *gin.Context) (*analyzer.Upload, func(), error) {
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, fmt.Errorf("%w: request body exceeds %d bytes", analyzer.ErrUploadTooLarge, tooLarge.Limit)
		}
		// a file input submitted without a selection arrives as a plain value
		if form := c.Request.MultipartForm; form != nil {
			if _, ok := form.Value["file"]; ok {
				return nil, nil, fmt.Errorf("%w: no audio file selected", analyzer.ErrInvalidUpload)
			}
		}
		return nil, nil, fmt.Errorf("%w: no audio file provided", analyzer.ErrInvalidUpload)
	}

	file, err := header.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open upload: %w", err)
	}

	upload := &analyzer.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
	return upload, func() { _ = file.Close() }, nil
}

// writeError maps service errors to an ErrorResponse
func (s *Server) writeError(c *gin.Context, err error) {
	code, status := errorCode(err)
	c.JSON(status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: err.Error(),
		},
	})
}

// errorCode returns the API error code and HTTP status for err
func errorCode(err error) (string, int) {
	switch {
	case errors.Is(err, analyzer.ErrInvalidUpload):
		return "INVALID_UPLOAD", http.StatusBadRequest
	case errors.Is(err, analyzer.ErrUploadTooLarge):
		return "UPLOAD_TOO_LARGE", http.StatusRequestEntityTooLarge
	case errors.Is(err, analyzer.ErrUnsupportedFormat):
		return "UNSUPPORTED_FORMAT", http.StatusUnsupportedMediaType
	case errors.Is(err, analyzer.ErrNotFound):
		return "NOT_FOUND", http.StatusNotFound
	case errors.Is(err, analyzer.ErrQueueFull):
		return "QUEUE_FULL", http.StatusServiceUnavailable
	case errors.Is(err, acoustics.ErrEmptySound), errors.Is(err, acoustics.ErrSoundTooShort):
		return "UNPROCESSABLE_RECORDING", http.StatusUnprocessableEntity
	default:
		return "ANALYSIS_FAILED", http.StatusInternalServerError
	}
}

// flatStatus keeps /analyze_vocal to 400 for bad input and 500 for any
// analysis failure
func flatStatus(err error) int {
	switch {
	case errors.Is(err, analyzer.ErrInvalidUpload):
		return http.StatusBadRequest
	case errors.Is(err, analyzer.ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) recordRequest(endpoint, status string) {
	if s.metrics != nil {
		s.metrics.RecordRequest(endpoint, status)
	}
}
