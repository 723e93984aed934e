package server

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/gstbill/internal/invoice/domain"
	"github.com/smallbiznis/gstbill/internal/usercontext"
)

func (s *Server) CreateInvoice(c *gin.Context) {
	var req invoicedomain.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	invoice, err := s.invoiceSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": invoice})
}

func (s *Server) ListInvoices(c *gin.Context) {
	var req invoicedomain.ListInvoiceRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      resp.Invoices,
		"page_info": resp.PageInfo,
	})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	id, ok := invoiceIDParam(c)
	if !ok {
		return
	}

	item, err := s.invoiceSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) DownloadInvoicePDF(c *gin.Context) {
	id, ok := invoiceIDParam(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := s.invoiceSvc.RenderPDF(c.Request.Context(), id, &buf); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `inline; filename="invoice-`+id+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func (s *Server) SendInvoice(c *gin.Context) {
	s.transitionInvoice(c, s.invoiceSvc.Send)
}

func (s *Server) MarkInvoicePaid(c *gin.Context) {
	id, ok := invoiceIDParam(c)
	if !ok {
		return
	}

	var req invoicedomain.MarkAsPaidRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, bindError(err))
			return
		}
	}

	invoice, err := s.invoiceSvc.MarkAsPaid(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) RemindInvoice(c *gin.Context) {
	s.transitionInvoice(c, s.invoiceSvc.SendReminder)
}

func (s *Server) CancelInvoice(c *gin.Context) {
	s.transitionInvoice(c, s.invoiceSvc.Cancel)
}

func (s *Server) RefundInvoice(c *gin.Context) {
	s.transitionInvoice(c, s.invoiceSvc.Refund)
}

func (s *Server) InvoiceRevenue(c *gin.Context) {
	userID, ok := usercontext.UserIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	start, err := parseRequiredTime(c, "start", false)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	end, err := parseRequiredTime(c, "end", true)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	summary, err := s.invoiceSvc.Revenue(c.Request.Context(), invoicedomain.RevenueRequest{
		UserID: &userID,
		Start:  start,
		End:    end,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func (s *Server) transitionInvoice(c *gin.Context, action func(ctx context.Context, id string) (invoicedomain.Invoice, error)) {
	id, ok := invoiceIDParam(c)
	if !ok {
		return
	}

	invoice, err := action(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func invoiceIDParam(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if _, err := snowflake.ParseString(id); err != nil {
		AbortWithError(c, invoicedomain.ErrInvalidInvoiceID)
		return "", false
	}
	return id, true
}
