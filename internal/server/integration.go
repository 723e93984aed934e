package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	integrationdomain "github.com/smallbiznis/gstbill/internal/integration/domain"
)

const contextIntegrationProviderKey = "integration_provider"

func (s *Server) ValidateGSTIN(c *gin.Context) {
	var req integrationdomain.ValidateGSTINRequest
	dispatchJSON(c, &req, func(ctx context.Context) (integrationdomain.Result, error) {
		return s.integrationSvc.ValidateGSTIN(ctx, req)
	})
}

func (s *Server) FileGSTReturn(c *gin.Context) {
	var req integrationdomain.FileReturnRequest
	dispatchJSON(c, &req, func(ctx context.Context) (integrationdomain.Result, error) {
		return s.integrationSvc.FileReturn(ctx, req)
	})
}

func (s *Server) GenerateEWayBill(c *gin.Context) {
	var req integrationdomain.EWayBillRequest
	dispatchJSON(c, &req, func(ctx context.Context) (integrationdomain.Result, error) {
		return s.integrationSvc.GenerateEWayBill(ctx, req)
	})
}

func (s *Server) GSTReturnStatus(c *gin.Context) {
	var req integrationdomain.ReturnStatusRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	respondResult(c, func(ctx context.Context) (integrationdomain.Result, error) {
		return s.integrationSvc.ReturnStatus(ctx, req)
	})
}

func (s *Server) ConnectAccounting(c *gin.Context) {
	var req integrationdomain.ConnectRequest
	dispatchJSON(c, &req, func(ctx context.Context) (integrationdomain.Result, error) {
		return s.integrationSvc.ConnectAccounting(ctx, req)
	})
}

func (s *Server) SyncAccounting(c *gin.Context) {
	var req integrationdomain.SyncRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, bindError(err))
			return
		}
	}
	respondResult(c, func(ctx context.Context) (integrationdomain.Result, error) {
		return s.integrationSvc.SyncAccounting(ctx, req)
	})
}

func (s *Server) ProcessPayment(c *gin.Context) {
	var req integrationdomain.PaymentRequest
	dispatchJSON(c, &req, func(ctx context.Context) (integrationdomain.Result, error) {
		return s.integrationSvc.ProcessPayment(ctx, req)
	})
}

func (s *Server) CreateRecurringPayment(c *gin.Context) {
	var req integrationdomain.RecurringRequest
	dispatchJSON(c, &req, func(ctx context.Context) (integrationdomain.Result, error) {
		return s.integrationSvc.CreateRecurringPayment(ctx, req)
	})
}

func (s *Server) RefundPayment(c *gin.Context) {
	var req integrationdomain.RefundRequest
	dispatchJSON(c, &req, func(ctx context.Context) (integrationdomain.Result, error) {
		return s.integrationSvc.RefundPayment(ctx, req)
	})
}

func (s *Server) InitiateUPI(c *gin.Context) {
	var req integrationdomain.UPIRequest
	dispatchJSON(c, &req, func(ctx context.Context) (integrationdomain.Result, error) {
		return s.integrationSvc.InitiateUPI(ctx, req)
	})
}

func (s *Server) VerifyUPI(c *gin.Context) {
	var req integrationdomain.UPIVerifyRequest
	dispatchJSON(c, &req, func(ctx context.Context) (integrationdomain.Result, error) {
		return s.integrationSvc.VerifyUPI(ctx, req)
	})
}

func (s *Server) VerifyBankAccount(c *gin.Context) {
	var req integrationdomain.BankAccountRequest
	dispatchJSON(c, &req, func(ctx context.Context) (integrationdomain.Result, error) {
		return s.integrationSvc.VerifyBankAccount(ctx, req)
	})
}

func (s *Server) IntegrationStatus(c *gin.Context) {
	status, err := s.integrationSvc.Status(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": status})
}

func dispatchJSON(c *gin.Context, req any, call func(ctx context.Context) (integrationdomain.Result, error)) {
	if err := c.ShouldBindJSON(req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}
	respondResult(c, call)
}

func respondResult(c *gin.Context, call func(ctx context.Context) (integrationdomain.Result, error)) {
	result, err := call(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if result.Provider != "" {
		c.Set(contextIntegrationProviderKey, result.Provider)
	}
	c.JSON(resultStatus(result), gin.H{"data": result})
}

func resultStatus(result integrationdomain.Result) int {
	if result.Success {
		return http.StatusOK
	}
	switch result.Code {
	case integrationdomain.CodeUnsupportedProvider,
		integrationdomain.CodeNotSupported,
		integrationdomain.CodeInvalidRequest,
		integrationdomain.CodeNotConnected:
		return http.StatusBadRequest
	case integrationdomain.CodeSyncInProgress:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}
