// Package handlers exposes the HTTP surface of the generation service.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"sitesmith/internal/logging"
	"sitesmith/internal/metrics"
	"sitesmith/internal/middleware"
	"sitesmith/internal/pipeline"
	"sitesmith/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Handler carries the dependencies of all HTTP handlers.
type Handler struct {
	db   *gorm.DB
	orch *pipeline.Orchestrator
	hub  *Hub
}

// New creates the handler set.
func New(db *gorm.DB, orch *pipeline.Orchestrator, hub *Hub) *Handler {
	return &Handler{db: db, orch: orch, hub: hub}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type createDraftRequest struct {
	BusinessName        string `json:"business_name" binding:"required"`
	BusinessType        string `json:"business_type"`
	BusinessDescription string `json:"business_description"`
	Location            string `json:"location"`
	Style               string `json:"style"`
	PreferredColors     string `json:"preferred_colors"`
	UploadedImage       string `json:"uploaded_image"`
	RequestText         string `json:"request_text"`
}

// CreateDraft stores a new draft project for the authenticated user.
func (h *Handler) CreateDraft(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req createDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	draft := &models.DraftProject{
		PublicID:            uuid.New().String(),
		OwnerID:             userID,
		BusinessName:        req.BusinessName,
		BusinessType:        req.BusinessType,
		BusinessDescription: req.BusinessDescription,
		Location:            req.Location,
		Style:               req.Style,
		PreferredColors:     req.PreferredColors,
		UploadedImage:       req.UploadedImage,
		RequestText:         req.RequestText,
		Status:              models.DraftStatusDraft,
	}

	if err := h.db.Create(draft).Error; err != nil {
		logging.S().Errorw("failed to create draft", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create draft"})
		return
	}

	c.JSON(http.StatusCreated, draft)
}

// GetDraft returns a draft owned by the authenticated user.
func (h *Handler) GetDraft(c *gin.Context) {
	draft, ok := h.ownedDraft(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, draft)
}

// GenerateDraft runs the generation pipeline for a draft, streaming
// newline-delimited JSON progress records until the terminal event.
//
// The run executes on a detached context: a client disconnect stops
// delivery but lets in-flight LLM calls finish or hit their own timeouts.
func (h *Handler) GenerateDraft(c *gin.Context) {
	draft, ok := h.ownedDraft(c)
	if !ok {
		return
	}

	stream := pipeline.NewStream(32)
	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	go h.orch.Run(context.Background(), draft.PublicID, stream)

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	flusher, canFlush := c.Writer.(http.Flusher)
	clientGone := c.Request.Context().Done()

	for {
		select {
		case ev, open := <-stream.Events():
			if !open {
				return
			}
			h.hub.Broadcast(draft.PublicID, &ev)

			data, err := json.Marshal(ev)
			if err != nil {
				logging.S().Errorw("failed to marshal progress event", "error", err)
				continue
			}
			if _, err := c.Writer.Write(append(data, '\n')); err != nil {
				stream.Disconnect()
				drain(stream)
				return
			}
			if canFlush {
				flusher.Flush()
			}

		case <-clientGone:
			stream.Disconnect()
			drain(stream)
			return
		}
	}
}

// drain consumes remaining events so the producer's Close is never stuck.
func drain(stream *pipeline.Stream) {
	for range stream.Events() {
	}
}

// GetDraftFiles returns the committed tree for a generated draft.
func (h *Handler) GetDraftFiles(c *gin.Context) {
	draft, ok := h.ownedDraft(c)
	if !ok {
		return
	}

	var files []models.DraftFile
	if err := h.db.Where("draft_id = ?", draft.ID).Order("path").Find(&files).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load files"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files, "count": len(files)})
}

// ownedDraft loads the :id draft and enforces ownership. Missing drafts and
// foreign drafts both read as 404 so draft ids cannot be probed.
func (h *Handler) ownedDraft(c *gin.Context) (*models.DraftProject, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return nil, false
	}

	var draft models.DraftProject
	err := h.db.Where("public_id = ? AND owner_id = ?", c.Param("id"), userID).First(&draft).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load draft"})
		}
		return nil, false
	}
	return &draft, true
}
