package sessions

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/Sreyaes/DubMaster/auth"
	"github.com/Sreyaes/DubMaster/gateway"
	"github.com/Sreyaes/DubMaster/media"
	"github.com/Sreyaes/DubMaster/models"
	"github.com/Sreyaes/DubMaster/recording"
	"github.com/Sreyaes/DubMaster/studio"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	Registry *studio.Registry
	Media    *media.Store
}

func NewHandler(registry *studio.Registry, mediaStore *media.Store) *Handler {
	return &Handler{Registry: registry, Media: mediaStore}
}

// CreateSession opens a fresh studio session and sets the signed session
// cookie on the response.
func (h *Handler) CreateSession(c *gin.Context) {
	session := h.Registry.Create()

	token, err := auth.GenerateJWT(session.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	c.SetCookie(auth.CookieName, token, 24*60*60, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{
		"session_id": session.ID,
		"state":      session.Orchestrator.Snapshot(),
		"languages":  models.SupportedLanguages,
	})
}

// GetState returns the current state snapshot.
func (h *Handler) GetState(c *gin.Context) {
	session := auth.SessionFrom(c)
	c.JSON(http.StatusOK, session.Orchestrator.Snapshot())
}

type SubmitProductionRequest struct {
	Prompt       string `json:"prompt" binding:"required"`
	Language     string `json:"language"`
	IncludeVideo bool   `json:"include_video"`
}

// SubmitProduction starts a new production for the session.
func (h *Handler) SubmitProduction(c *gin.Context) {
	session := auth.SessionFrom(c)

	var req SubmitProductionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Language == "" {
		req.Language = "en"
	}
	if !models.IsSupportedLanguage(req.Language) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported language code"})
		return
	}

	err := session.Orchestrator.SubmitProduction(c.Request.Context(), req.Prompt, req.Language, req.IncludeVideo)
	if errors.Is(err, studio.ErrRefused) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue production"})
		return
	}

	c.JSON(http.StatusAccepted, session.Orchestrator.Snapshot())
}

// StartRecording hands the microphone uplink to the recording session.
func (h *Handler) StartRecording(c *gin.Context) {
	session := auth.SessionFrom(c)

	err := session.Orchestrator.BeginRecording(c.Request.Context())
	if errors.Is(err, studio.ErrRefused) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if errors.Is(err, recording.ErrDeviceUnavailable) {
		c.JSON(http.StatusConflict, gin.H{"error": "Microphone unavailable"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start recording"})
		return
	}

	c.JSON(http.StatusOK, session.Orchestrator.Snapshot())
}

// UploadChunk buffers one captured audio chunk from the browser.
func (h *Handler) UploadChunk(c *gin.Context) {
	session := auth.SessionFrom(c)

	chunk, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read audio chunk"})
		return
	}

	if err := session.Orchestrator.AppendAudio(chunk, c.ContentType()); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

// StopRecording finalizes the take and queues transcription and feedback.
func (h *Handler) StopRecording(c *gin.Context) {
	session := auth.SessionFrom(c)

	err := session.Orchestrator.EndRecording(c.Request.Context())
	if errors.Is(err, studio.ErrRefused) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to finish recording"})
		return
	}

	c.JSON(http.StatusAccepted, session.Orchestrator.Snapshot())
}

// RequestLipSync queues a lip-synced re-render of the scene video.
func (h *Handler) RequestLipSync(c *gin.Context) {
	session := auth.SessionFrom(c)

	err := session.Orchestrator.RequestLipSync(c.Request.Context())
	if errors.Is(err, studio.ErrRefused) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue lip sync"})
		return
	}

	c.JSON(http.StatusAccepted, session.Orchestrator.Snapshot())
}

type ToggleVariantRequest struct {
	Synced *bool `json:"synced" binding:"required"`
}

// ToggleVideoVariant switches between the original and synced renders.
func (h *Handler) ToggleVideoVariant(c *gin.Context) {
	session := auth.SessionFrom(c)

	var req ToggleVariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := session.Orchestrator.ToggleVideoVariant(c.Request.Context(), *req.Synced)
	if errors.Is(err, studio.ErrRefused) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, session.Orchestrator.Snapshot())
}

// PerformanceAudio serves the finalized take for playback.
func (h *Handler) PerformanceAudio(c *gin.Context) {
	session := auth.SessionFrom(c)

	audio, mimeType, ok := session.Orchestrator.PerformanceAudio()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No recorded take"})
		return
	}

	c.Data(http.StatusOK, mimeType, audio)
}

type ReferenceAudioRequest struct {
	Text  string `json:"text" binding:"required"`
	Voice string `json:"voice"`
}

// ReferenceAudio synthesizes TTS audio for one dialogue line and returns raw
// PCM for direct playback buffer construction.
func (h *Handler) ReferenceAudio(c *gin.Context) {
	session := auth.SessionFrom(c)

	var req ReferenceAudioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pcm, err := session.Orchestrator.SynthesizeReference(c.Request.Context(), req.Text, req.Voice)
	if err != nil || len(pcm) == 0 {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to synthesize reference audio"})
		return
	}

	c.Header("X-Sample-Rate", strconv.Itoa(gateway.ReferencePCMSampleRate))
	c.Data(http.StatusOK, "audio/pcm", pcm)
}

// ServeMedia serves a generated image or video asset by ID.
func (h *Handler) ServeMedia(c *gin.Context) {
	data, mimeType, ok := h.Media.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Asset not found"})
		return
	}

	c.Data(http.StatusOK, mimeType, data)
}
