package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"paperwave/internal/auth"
	"paperwave/internal/models"
	"paperwave/internal/pipeline"
	"paperwave/internal/runner"
	"paperwave/internal/service/podcast"
	"paperwave/internal/service/user"
)

const maxUploadBytes = 50 << 20 // 50 MiB

// Handler wires HTTP routes to the services.
type Handler struct {
	users    *user.Service
	podcasts *podcast.Service
	auth     *auth.Service
	runs     *runner.Manager
	fetcher  pipeline.Fetcher
	fileBase string
}

func NewHandler(users *user.Service, podcasts *podcast.Service, authService *auth.Service, runs *runner.Manager, fetcher pipeline.Fetcher, fileBase string) *Handler {
	if fileBase == "" {
		fileBase = "uploads"
	}
	return &Handler{
		users:    users,
		podcasts: podcasts,
		auth:     authService,
		runs:     runs,
		fetcher:  fetcher,
		fileBase: fileBase,
	}
}

func (h *Handler) requirePathUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.UserIDFromContext(c)
		if !ok || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		paramID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || paramID <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		if paramID != userID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user mismatch"})
			return
		}
		c.Next()
	}
}

func (h *Handler) authorizedUserID(c *gin.Context) (int64, bool) {
	userID, ok := auth.UserIDFromContext(c)
	if !ok || userID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return 0, false
	}
	return userID, true
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/users/register", h.registerUser)
	api.POST("/users/login", h.loginUser)
	api.GET("/podcasts/:podcast_id", h.getPodcast)
	api.GET("/proxy/image", h.proxyImage)

	authMW := h.auth.Middleware()
	userRoutes := api.Group("/users/:id")
	userRoutes.Use(authMW, h.requirePathUser())
	userRoutes.POST("/podcasts", h.createPodcast)
	userRoutes.GET("/podcasts", h.listPodcasts)
	userRoutes.POST("/logout", h.logoutUser)
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) registerUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	u, err := h.users.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         u.ID,
		"username":   u.Username,
		"created_at": u.CreatedAt,
	})
}

func (h *Handler) loginUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	u, err := h.users.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	authToken, err := h.auth.IssueToken(c.Request.Context(), u.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":         u.ID,
		"username":   u.Username,
		"created_at": u.CreatedAt,
		"auth_token": authToken,
	})
}

func (h *Handler) logoutUser(c *gin.Context) {
	token, ok := auth.AuthTokenFromContext(c)
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	if err := h.auth.RevokeToken(c.Request.Context(), token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// createPodcast accepts the multipart submission, saves the document, and
// streams generation progress over SSE until the run finishes.
func (h *Handler) createPodcast(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	if err := c.Request.ParseMultipartForm(maxUploadBytes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}

	req, err := h.buildRequest(c, userID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	savedPath, err := h.saveUpload(c, userID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer os.Remove(savedPath)
	req.FilePath = savedPath

	runCtx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Minute)
	defer cancel()

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	var writeMu sync.Mutex
	sendEvent := func(event string, payload interface{}) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if event != "" {
			if _, err := fmt.Fprintf(c.Writer, "event: %s\n", event); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := sendEvent("ack", gin.H{"title": req.Title, "user_id": userID}); err != nil {
		return
	}

	tracker := pipeline.NewTracker(func(p pipeline.Progress) {
		_ = sendEvent("progress", p)
	})
	// If the client disconnects, Submit returns while the worker may still
	// finish its in-flight stage; detaching keeps late checkpoints away
	// from a response writer gin has already recycled.
	defer tracker.Detach()

	res, err := h.runs.Submit(runCtx, req, tracker)
	if err != nil {
		payload := gin.H{"message": err.Error()}
		if errors.Is(err, runner.ErrRunInFlight) {
			payload["message"] = "this paper is already being processed"
		}
		if kind := pipeline.KindOf(err); kind != "" {
			payload["kind"] = kind
		}
		_ = sendEvent("error", payload)
		return
	}
	_ = sendEvent("done", gin.H{
		"podcast":              res.Podcast,
		"used_fallback_prompt": res.UsedFallbackPrompt,
	})
}

// buildRequest reads the metadata fields of the multipart form.
func (h *Handler) buildRequest(c *gin.Context, userID int64) (*pipeline.Request, error) {
	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		return nil, errors.New("title is required")
	}
	abstract := strings.TrimSpace(c.PostForm("abstract"))
	if abstract == "" {
		return nil, errors.New("abstract is required")
	}
	year := 0
	if raw := strings.TrimSpace(c.PostForm("publishing_year")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.New("invalid publishing_year")
		}
		year = parsed
	}
	return &pipeline.Request{
		UserID:          userID,
		Title:           title,
		Abstract:        abstract,
		Authors:         splitList(c.PostForm("authors")),
		PublishingYear:  year,
		FieldOfResearch: strings.TrimSpace(c.PostForm("field_of_research")),
		Keywords:        splitList(c.PostForm("keywords")),
		DOI:             strings.TrimSpace(c.PostForm("doi")),
		IsPublic:        c.PostForm("is_public") == "true",
	}, nil
}

// saveUpload stores the submitted document under the file base directory.
func (h *Handler) saveUpload(c *gin.Context, userID int64) (string, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return "", errors.New("file is required")
	}
	if file.Size > maxUploadBytes {
		return "", errors.New("file too large")
	}
	destDir := filepath.Join(h.fileBase, strconv.FormatInt(userID, 10))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}
	destPath := filepath.Join(destDir, fmt.Sprintf("%d-%s", time.Now().UnixMilli(), filepath.Base(file.Filename)))
	if err := c.SaveUploadedFile(file, destPath); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return destPath, nil
}

func (h *Handler) listPodcasts(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	list, err := h.podcasts.ListPodcasts(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if list == nil {
		list = make([]*models.Podcast, 0)
	}
	c.JSON(http.StatusOK, gin.H{"podcasts": list})
}

// getPodcast serves a single podcast: public ones to anyone, private ones to
// their owner only.
func (h *Handler) getPodcast(c *gin.Context) {
	podcastID, err := strconv.ParseInt(c.Param("podcast_id"), 10, 64)
	if err != nil || podcastID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid podcast id"})
		return
	}
	p, err := h.podcasts.GetPodcast(c.Request.Context(), podcastID)
	if err != nil {
		if errors.Is(err, podcast.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "podcast not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !p.IsPublic && h.bearerUserID(c) != p.UserID {
		c.JSON(http.StatusNotFound, gin.H{"error": "podcast not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// bearerUserID resolves the optional bearer token on unauthenticated routes.
func (h *Handler) bearerUserID(c *gin.Context) int64 {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return 0
	}
	userID, err := h.auth.ValidateToken(c.Request.Context(), strings.TrimSpace(header[7:]))
	if err != nil {
		return 0
	}
	return userID
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
