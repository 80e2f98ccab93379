package api

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

// proxyImage fetches a remote image server-side so browser clients are not
// blocked by the image host's cross-origin policy. Only http(s) URLs are
// accepted.
func (h *Handler) proxyImage(c *gin.Context) {
	raw := c.Query("url")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid url"})
		return
	}

	data, err := h.fetcher.Fetch(c.Request.Context(), raw)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "fetch failed"})
		return
	}
	c.Data(http.StatusOK, http.DetectContentType(data), data)
}
