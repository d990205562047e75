package server

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/mk070/zenlance-sub002/internal/invoice/domain"
	"github.com/mk070/zenlance-sub002/internal/invoice/lifecycle"
	"github.com/mk070/zenlance-sub002/pkg/db/pagination"
)

type invoicePayload struct {
	Title        string                     `json:"title"`
	Description  string                     `json:"description"`
	ClientID     string                     `json:"client_id"`
	ClientName   string                     `json:"client_name"`
	ClientEmail  string                     `json:"client_email"`
	ProjectID    string                     `json:"project_id"`
	Items        []invoicedomain.LineItem   `json:"items"`
	TaxRate      decimal.Decimal            `json:"tax_rate"`
	DiscountRate decimal.Decimal            `json:"discount_rate"`
	Currency     string                     `json:"currency"`
	DueDate      string                     `json:"due_date"`
	Notes        string                     `json:"notes"`
	Terms        string                     `json:"terms"`
	Version      int64                      `json:"version"`
}

// invoiceResponse augments the stored invoice with the lazily derived
// overdue badge so clients never recompute it themselves.
type invoiceResponse struct {
	invoicedomain.Invoice
	IsOverdue bool `json:"is_overdue"`
}

func toInvoiceResponse(inv invoicedomain.Invoice, now time.Time) invoiceResponse {
	return invoiceResponse{
		Invoice:   inv,
		IsOverdue: lifecycle.IsOverdue(&inv, now),
	}
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req invoicePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	dueDate, ok := parseOptionalTime(req.DueDate)
	if !ok {
		AbortWithError(c, invoicedomain.NewValidationError("due_date", "invalid_date", "due date must be a valid date"))
		return
	}

	resp, err := s.invoiceSvc.Create(c.Request.Context(), invoicedomain.CreateInvoiceRequest{
		Title:        req.Title,
		Description:  req.Description,
		ClientID:     req.ClientID,
		ClientName:   req.ClientName,
		ClientEmail:  req.ClientEmail,
		ProjectID:    req.ProjectID,
		Items:        req.Items,
		TaxRate:      req.TaxRate,
		DiscountRate: req.DiscountRate,
		Currency:     req.Currency,
		DueDate:      dueDate,
		Notes:        req.Notes,
		Terms:        req.Terms,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": toInvoiceResponse(resp, time.Now().UTC())})
}

func (s *Server) ListInvoices(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Search string `form:"search"`
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListInvoiceRequest{
		Pagination: query.Pagination,
		Search:     query.Search,
		Status:     query.Status,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	now := time.Now().UTC()
	invoices := make([]invoiceResponse, 0, len(resp.Invoices))
	for _, inv := range resp.Invoices {
		invoices = append(invoices, toInvoiceResponse(inv, now))
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"invoices": invoices,
		"page":     resp.Page,
		"limit":    resp.Limit,
		"total":    resp.Total,
		"pages":    resp.Pages,
	}})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	resp, err := s.invoiceSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toInvoiceResponse(resp, time.Now().UTC())})
}

func (s *Server) UpdateInvoice(c *gin.Context) {
	var req invoicePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Version <= 0 {
		AbortWithError(c, invoicedomain.NewValidationError("version", "required", "version is required"))
		return
	}

	dueDate, ok := parseOptionalTime(req.DueDate)
	if !ok {
		AbortWithError(c, invoicedomain.NewValidationError("due_date", "invalid_date", "due date must be a valid date"))
		return
	}

	resp, err := s.invoiceSvc.Update(c.Request.Context(), invoicedomain.UpdateInvoiceRequest{
		ID:           c.Param("id"),
		Version:      req.Version,
		Title:        req.Title,
		Description:  req.Description,
		Items:        req.Items,
		TaxRate:      req.TaxRate,
		DiscountRate: req.DiscountRate,
		Currency:     req.Currency,
		DueDate:      dueDate,
		Notes:        req.Notes,
		Terms:        req.Terms,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toInvoiceResponse(resp, time.Now().UTC())})
}

func (s *Server) DeleteInvoice(c *gin.Context) {
	if err := s.invoiceSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) SendInvoice(c *gin.Context) {
	s.applyTransition(c, s.invoiceSvc.Send)
}

func (s *Server) MarkInvoiceViewed(c *gin.Context) {
	s.applyTransition(c, s.invoiceSvc.MarkViewed)
}

func (s *Server) MarkInvoicePaid(c *gin.Context) {
	s.applyTransition(c, s.invoiceSvc.MarkPaid)
}

func (s *Server) CancelInvoice(c *gin.Context) {
	s.applyTransition(c, s.invoiceSvc.Cancel)
}

func (s *Server) applyTransition(c *gin.Context, op func(ctx context.Context, id string) (invoicedomain.Invoice, error)) {
	resp, err := op(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toInvoiceResponse(resp, time.Now().UTC())})
}

func (s *Server) GetInvoiceDocument(c *gin.Context) {
	invoice, err := s.invoiceSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := s.pdfSvc.GenerateInvoice(c.Request.Context(), invoice)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	data, err := io.ReadAll(doc)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	filename := strings.ReplaceAll(invoice.InvoiceNumber, "/", "-") + ".pdf"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", data)
}
