package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prasenjit/firescope/internal/apidoc"
	"github.com/prasenjit/firescope/internal/capture"
	"github.com/prasenjit/firescope/internal/models"
	"github.com/prasenjit/firescope/internal/querystring"
	"github.com/prasenjit/firescope/internal/resolver"
	"github.com/prasenjit/firescope/internal/stats"
	"github.com/prasenjit/firescope/internal/storage"
)

// defaultListLimit caps record listings without an explicit limit
const defaultListLimit = 100

// Pipeline is the correlator surface the admin API drives
type Pipeline interface {
	capture.Recorder
	Pending() int
}

// ListenerCounter reports connected stream listeners
type ListenerCounter interface {
	Listeners() int
}

// Handler handles API requests
type Handler struct {
	store          storage.Storage
	statsCollector *stats.Collector
	pipeline       Pipeline
	listeners      ListenerCounter
	resolver       resolver.Resolver
	doc            *apidoc.Document
}

// NewHandler creates a new API handler
func NewHandler(store storage.Storage, statsCollector *stats.Collector, pipeline Pipeline, listeners ListenerCounter, res resolver.Resolver, doc *apidoc.Document) *Handler {
	if res == nil {
		res = resolver.Local{}
	}
	return &Handler{
		store:          store,
		statsCollector: statsCollector,
		pipeline:       pipeline,
		listeners:      listeners,
		resolver:       res,
		doc:            doc,
	}
}

// ListRecords returns stored records matching the query parameters
func (h *Handler) ListRecords(c *gin.Context) {
	filter, err := parseRecordFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	records, err := h.store.List(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}

func parseRecordFilter(c *gin.Context) (*models.RecordFilter, error) {
	filter := &models.RecordFilter{
		Collection: c.Query("collection"),
		Kind:       models.QueryKind(c.Query("type")),
		Method:     c.Query("method"),
		TabContext: c.Query("tab"),
		GroupID:    c.Query("group"),
		Limit:      defaultListLimit,
	}

	if s := c.Query("status"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, errors.New("status must be an integer")
		}
		filter.Status = n
	}
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return nil, errors.New("limit must be a positive integer")
		}
		filter.Limit = n
	}
	if s := c.Query("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, errors.New("since must be an RFC 3339 time")
		}
		filter.StartTime = t
	}
	if s := c.Query("until"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, errors.New("until must be an RFC 3339 time")
		}
		filter.EndTime = t
	}
	return filter, nil
}

// GetRecord returns a single record
func (h *Handler) GetRecord(c *gin.Context) {
	rec, ok := h.lookupRecord(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) lookupRecord(c *gin.Context) (*models.Record, bool) {
	rec, err := h.store.Get(c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return rec, true
}

// ClearRecords clears the record history
func (h *Handler) ClearRecords(c *gin.Context) {
	if err := h.store.Clear(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Records cleared"})
}

// GetRecordLink resolves the console URL of a stored record
func (h *Handler) GetRecordLink(c *gin.Context) {
	rec, ok := h.lookupRecord(c)
	if !ok {
		return
	}
	h.resolve(c, resolver.NewPayload(rec))
}

// ResolveLink resolves the console URL of a posted query
func (h *Handler) ResolveLink(c *gin.Context) {
	var p resolver.Payload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.resolve(c, p.Normalize())
}

func (h *Handler) resolve(c *gin.Context, p resolver.Payload) {
	url, err := h.resolver.ResolveConsoleURL(c.Request.Context(), p)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"url": url})
	case errors.Is(err, resolver.ErrCredentialRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, resolver.ErrUnresolvable):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

// GetGlobalStats returns global statistics
func (h *Handler) GetGlobalStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.statsCollector.GetGlobalStats())
}

// ResetStats resets all statistics
func (h *Handler) ResetStats(c *gin.Context) {
	h.statsCollector.Reset()
	c.JSON(http.StatusOK, gin.H{"message": "Statistics reset"})
}

// EncodeQueryString builds the console query string for posted clauses
func (h *Handler) EncodeQueryString(c *gin.Context) {
	var q querystring.Query
	if err := c.ShouldBindJSON(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"query": querystring.Encode(q.Filters, q.OrderBy, q.Aggregations, q.Limit),
	})
}

type decodeRequest struct {
	Query string `json:"query"`
}

// DecodeQueryString parses a console query string
func (h *Handler) DecodeQueryString(c *gin.Context) {
	var req decodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	q, err := querystring.Decode(req.Query)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, q)
}

type captureStartRequest struct {
	RequestID   string `json:"requestId" binding:"required"`
	URL         string `json:"url" binding:"required"`
	Method      string `json:"method" binding:"required"`
	TabID       string `json:"tabId"`
	ContentType string `json:"contentType"`
	Body        string `json:"body"`
}

// CaptureStart ingests a request start reported by an external capture
// source
func (h *Handler) CaptureStart(c *gin.Context) {
	var req captureStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	call := capture.NewCall(req.RequestID, req.URL, req.Method, req.TabID, req.ContentType, []byte(req.Body))
	c.JSON(http.StatusOK, gin.H{"buffered": h.pipeline.Observe(call)})
}

type captureCompleteRequest struct {
	RequestID  string    `json:"requestId" binding:"required"`
	StatusCode int       `json:"statusCode"`
	Method     string    `json:"method"`
	EndedAt    time.Time `json:"endedAt"`
}

// CaptureComplete ingests a completion and returns the emitted records
func (h *Handler) CaptureComplete(c *gin.Context) {
	var req captureCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	records := h.pipeline.Complete(models.CompletionSignal{
		RequestID:  req.RequestID,
		StatusCode: req.StatusCode,
		Method:     req.Method,
		EndedAt:    req.EndedAt,
	})
	if records == nil {
		records = []models.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// GetAPIDocument serves the OpenAPI description
func (h *Handler) GetAPIDocument(c *gin.Context) {
	data, err := h.doc.JSON()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

// HealthCheck returns health status
func (h *Handler) HealthCheck(c *gin.Context) {
	count, err := h.store.Count()
	status := "healthy"
	if err != nil {
		status = "degraded"
	}

	listeners := 0
	if h.listeners != nil {
		listeners = h.listeners.Listeners()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       status,
		"timestamp":    time.Now().Format(time.RFC3339),
		"pendingCalls": h.pipeline.Pending(),
		"listeners":    listeners,
		"records":      count,
	})
}
