// Package api exposes the payment gateway over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourorg/payment-gateway/internal/adapter"
	"github.com/yourorg/payment-gateway/internal/content"
	"github.com/yourorg/payment-gateway/internal/monitor"
	"github.com/yourorg/payment-gateway/internal/processor"
	"github.com/yourorg/payment-gateway/internal/reporting"
	"github.com/yourorg/payment-gateway/internal/transaction"
)

const defaultReportWindow = 24 * time.Hour

// Deps are the services behind the HTTP handlers.
type Deps struct {
	Processor    *processor.Processor
	Monitor      *monitor.ContractMonitor
	Transactions transaction.Repository
	Reporter     *reporting.RetrospectiveReporter
	Access       *content.AccessService
	// ContentDir is the directory digital content files are served from.
	ContentDir string
	Logger     *zap.Logger
}

type Handler struct {
	Deps
	now func() time.Time
}

func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Reporter == nil {
		d.Reporter = reporting.NewRetrospectiveReporter()
	}
	return &Handler{Deps: d, now: time.Now}
}

// Register mounts the API routes on r.
func (h *Handler) Register(r gin.IRouter) {
	v1 := r.Group("/v1")
	v1.POST("/gateways/:gateway/:operation", h.paymentOperation)
	v1.GET("/gateways/:gateway/customers/:customer_id/sources", h.listClientSources)
	v1.GET("/gateways/:gateway/client-token", h.clientToken)
	v1.GET("/payments/:token/transactions", h.paymentTransactions)
	v1.GET("/reports/transactions", h.transactionReport)
	v1.GET("/digital/:token", h.digitalDownload)
	v1.GET("/variants/:variant_id/access", h.variantAccess)
	v1.GET("/variants/:variant_id/content", h.variantContent)
	v1.POST("/variants/:variant_id/download-urls", h.issueDownloadURL)
}

func abortJSON(c *gin.Context, status int, err error, msg string) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// operationStatus maps processor errors onto HTTP statuses.
func operationStatus(err error) int {
	switch {
	case errors.Is(err, processor.ErrGatewayNotFound), errors.Is(err, processor.ErrUnknownOperation):
		return http.StatusNotFound
	case errors.Is(err, adapter.ErrInvalidPaymentData), errors.Is(err, adapter.ErrMissingConnectionParam):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) paymentOperation(c *gin.Context) {
	op, err := processor.ParseOperation(c.Param("operation"))
	if err != nil {
		abortJSON(c, http.StatusNotFound, err, err.Error())
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		abortJSON(c, http.StatusBadRequest, err, "Invalid request format: "+err.Error())
		return
	}
	if h.Monitor != nil {
		valid, violations, err := h.Monitor.Validate(body)
		if err != nil {
			abortJSON(c, http.StatusBadRequest, err, "Invalid request format: "+err.Error())
			return
		}
		if !valid {
			_ = c.Error(errors.New(monitor.FormatErrors(violations)))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":      "Validation failed",
				"violations": violations,
			})
			return
		}
	}
	var data adapter.PaymentData
	if err := json.Unmarshal(body, &data); err != nil {
		abortJSON(c, http.StatusBadRequest, err, "Invalid request format: "+err.Error())
		return
	}

	resp, err := h.Processor.Execute(c.Request.Context(), c.Param("gateway"), op, data)
	if err != nil {
		status := operationStatus(err)
		_ = c.Error(err)
		if status == http.StatusInternalServerError && resp.Kind != "" {
			// The provider call happened; tell the caller what it returned.
			c.AbortWithStatusJSON(status, gin.H{"error": "failed to record transaction", "response": resp})
			return
		}
		c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listClientSources(c *gin.Context) {
	sources, err := h.Processor.ListClientSources(c.Request.Context(), c.Param("gateway"), c.Param("customer_id"))
	if err != nil {
		status := operationStatus(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		abortJSON(c, status, err, err.Error())
		return
	}
	if sources == nil {
		sources = []adapter.CustomerSource{}
	}
	c.JSON(http.StatusOK, gin.H{"sources": sources})
}

func (h *Handler) clientToken(c *gin.Context) {
	token, err := h.Processor.ClientToken(c.Param("gateway"))
	if err != nil {
		abortJSON(c, operationStatus(err), err, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"client_token": token})
}

func (h *Handler) paymentTransactions(c *gin.Context) {
	txs, err := h.Transactions.ListByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		abortJSON(c, http.StatusInternalServerError, err, "failed to load transactions")
		return
	}
	if txs == nil {
		txs = []transaction.Transaction{}
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

func (h *Handler) transactionReport(c *gin.Context) {
	to := h.now().UTC()
	if s := c.Query("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			abortJSON(c, http.StatusBadRequest, err, "to must be an RFC3339 timestamp")
			return
		}
		to = t.UTC()
	}
	from := to.Add(-defaultReportWindow)
	if s := c.Query("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			abortJSON(c, http.StatusBadRequest, err, "from must be an RFC3339 timestamp")
			return
		}
		from = t.UTC()
	}
	if !from.Before(to) {
		abortJSON(c, http.StatusBadRequest, errors.New("empty report window"), "from must be before to")
		return
	}

	txs, err := h.Transactions.ListBetween(c.Request.Context(), from, to)
	if err != nil {
		abortJSON(c, http.StatusInternalServerError, err, "failed to load transactions")
		return
	}
	report, err := h.Reporter.GenerateRetrospective(txs)
	if err != nil {
		abortJSON(c, http.StatusInternalServerError, err, "failed to build report")
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) digitalDownload(c *gin.Context) {
	url, err := h.Access.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.downloadError(c, err)
		return
	}
	path, ok := h.contentPath(c, &url.Content)
	if !ok {
		return
	}
	// Count only once the file is known to exist.
	if err := h.Access.CountDownload(c.Request.Context(), url); err != nil {
		h.downloadError(c, err)
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

func (h *Handler) downloadError(c *gin.Context, err error) {
	if errors.Is(err, content.ErrNotFound) || errors.Is(err, content.ErrURLExpired) {
		abortJSON(c, http.StatusNotFound, err, "not found")
		return
	}
	abortJSON(c, http.StatusInternalServerError, err, "failed to resolve download")
}

func variantID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("variant_id"), 10, 64)
	if err != nil {
		abortJSON(c, http.StatusBadRequest, err, "variant_id must be a positive integer")
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) variantAccess(c *gin.Context) {
	id, ok := variantID(c)
	if !ok {
		return
	}
	purchased, err := h.Access.HasPurchased(c.Request.Context(), viewerFromRequest(c), id)
	if err != nil {
		abortJSON(c, http.StatusInternalServerError, err, "failed to check purchase")
		return
	}
	c.JSON(http.StatusOK, gin.H{"variant_id": id, "purchased": purchased})
}

// variantContent streams purchased content to in-page players. Direct
// browser navigation is refused so files are not trivially saved.
func (h *Handler) variantContent(c *gin.Context) {
	if c.GetHeader("Sec-Fetch-Mode") == "navigate" {
		abortJSON(c, http.StatusForbidden, errors.New("navigation request"), "forbidden")
		return
	}
	id, ok := variantID(c)
	if !ok {
		return
	}
	dc, err := h.Access.ContentForVariant(c.Request.Context(), viewerFromRequest(c), id)
	if err != nil {
		h.contentError(c, err)
		return
	}
	h.serveContent(c, dc)
}

func (h *Handler) issueDownloadURL(c *gin.Context) {
	id, ok := variantID(c)
	if !ok {
		return
	}
	url, err := h.Access.IssueURL(c.Request.Context(), viewerFromRequest(c), id)
	if err != nil {
		h.contentError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": url.Token, "url": "/v1/digital/" + url.Token})
}

func (h *Handler) contentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, content.ErrNotPurchased):
		abortJSON(c, http.StatusForbidden, err, "forbidden")
	case errors.Is(err, content.ErrNotFound):
		abortJSON(c, http.StatusNotFound, err, "not found")
	default:
		abortJSON(c, http.StatusInternalServerError, err, "failed to load content")
	}
}

// contentPath resolves dc's file inside ContentDir and aborts with 404
// when it is missing.
func (h *Handler) contentPath(c *gin.Context, dc *content.DigitalContent) (string, bool) {
	path := filepath.Join(h.ContentDir, filepath.Clean("/"+dc.ContentFile))
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		h.Logger.Warn("digital content file missing",
			zap.Uint("content_id", dc.ID),
			zap.String("path", path),
		)
		abortJSON(c, http.StatusNotFound, errors.New("content file missing"), "not found")
		return "", false
	}
	return path, true
}

func (h *Handler) serveContent(c *gin.Context, dc *content.DigitalContent) {
	if path, ok := h.contentPath(c, dc); ok {
		c.FileAttachment(path, filepath.Base(path))
	}
}
