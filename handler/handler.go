package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"recording-uploader/constant"
	"recording-uploader/dto"
	"recording-uploader/pkg/blobstore"
	"recording-uploader/repository"
	"recording-uploader/service"
)

type Handler struct {
	coordinator *service.Coordinator
}

func New(coordinator *service.Coordinator) *Handler {
	return &Handler{coordinator: coordinator}
}

func (h *Handler) Register(r *gin.Engine) {
	g := r.Group("/sessions/:sessionId/recording")
	g.POST("/start", h.start)
	g.POST("/stop", h.stop)
	g.POST("/chunks", h.submitChunk)
	g.GET("/progress", h.progress)
	g.POST("/complete", h.complete)
	g.DELETE("", h.cancel)
}

func (h *Handler) start(c *gin.Context) {
	sessionID := c.Param("sessionId")
	var req dto.StartRecordingRequest
	_ = c.ShouldBindJSON(&req) // body is optional, mime type defaults

	job, err := h.coordinator.StartRecording(c.Request.Context(), sessionID, req.MimeType)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.StartRecordingResponse{
		JobId:            job.ID,
		SessionId:        sessionID,
		Status:           string(job.Status()),
		ChunksFolderPath: job.ChunksFolder(),
	})
}

func (h *Handler) stop(c *gin.Context) {
	if err := h.coordinator.StopRecording(c.Request.Context(), c.Param("sessionId")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(constant.SessionUploading)})
}

func (h *Handler) submitChunk(c *gin.Context) {
	sessionID := c.Param("sessionId")
	blob, err := readBlob(c, "chunk")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.coordinator.SubmitChunk(c.Request.Context(), sessionID, blob)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ChunkResponse{
		ChunkIndex: res.ChunkIndex,
		SizeBytes:  res.SizeBytes,
		Locator:    res.Locator,
	})
}

func (h *Handler) progress(c *gin.Context) {
	sessionID := c.Param("sessionId")
	job, ok := h.coordinator.Job(sessionID)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": service.ErrNoActiveJob.Error()})
		return
	}

	p := job.Progress()
	c.JSON(http.StatusOK, dto.ProgressResponse{
		SessionId:      sessionID,
		Status:         string(job.Status()),
		ChunksUploaded: p.ChunksUploaded,
		ChunksFailed:   p.ChunksFailed,
		TotalBytes:     p.TotalBytes,
	})
}

func (h *Handler) complete(c *gin.Context) {
	sessionID := c.Param("sessionId")
	blob, err := readBlob(c, "recording")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	duration, _ := strconv.Atoi(c.PostForm("durationSeconds"))
	meta := service.Metadata{
		DurationSeconds: duration,
		MimeType:        c.PostForm("mimeType"),
	}

	locator, err := h.coordinator.Complete(c.Request.Context(), sessionID, blob, meta)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.CompleteResponse{
		SessionId:         sessionID,
		Status:            string(constant.SessionReadyForTranscription),
		FinalArtifactPath: locator,
	})
}

func (h *Handler) cancel(c *gin.Context) {
	if err := h.coordinator.Cancel(c.Request.Context(), c.Param("sessionId")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// readBlob accepts the media bytes either as a multipart file field or as a
// raw request body, which is how browser recorders ship chunks.
func readBlob(c *gin.Context, field string) ([]byte, error) {
	if file, err := c.FormFile(field); err == nil {
		f, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(f)
	}
	return io.ReadAll(c.Request.Body)
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFromError(err), gin.H{"error": err.Error()})
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, service.ErrEmptyChunk):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrAlreadyFinalizing),
		errors.Is(err, service.ErrRecordingInProgress),
		errors.Is(err, service.ErrJobNotActive):
		return http.StatusConflict
	case errors.Is(err, service.ErrNoActiveJob):
		return http.StatusNotFound
	}

	var ve *service.ValidationError
	if errors.As(err, &ve) {
		return http.StatusForbidden
	}
	var te *constant.TransitionError
	if errors.As(err, &te) {
		return http.StatusConflict
	}
	if repository.IsNotFound(err) {
		return http.StatusNotFound
	}
	if repository.IsConflict(err) {
		return http.StatusConflict
	}
	var be *blobstore.Error
	if errors.As(err, &be) && be.Kind == blobstore.KindQuotaExceeded {
		return http.StatusInsufficientStorage
	}
	return http.StatusInternalServerError
}
