// Package api exposes the detector over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vietddude/scamradar/internal/core/domain"
	"github.com/vietddude/scamradar/internal/detection/service"
)

// Detector is the orchestrator surface the handlers use.
type Detector interface {
	DetectAccount(ctx context.Context, req service.AccountRequest) (*service.Result, error)
	DetectTransaction(ctx context.Context, req service.TransactionRequest) (*service.Result, error)
	Approvals(ctx context.Context, address string, page, limit int) ([]domain.Approval, error)
	Transactions(ctx context.Context, address string, page, limit int) ([]domain.AccountTransaction, error)
	History(ctx context.Context, address string, limit int) ([]*domain.Detection, error)
}

type Handler struct {
	detector Detector
}

// SetupRouter builds the gin engine.
func SetupRouter(detector Detector) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	h := &Handler{detector: detector}

	detect := r.Group("/detect")
	{
		detect.POST("", h.handleDetect)
		detect.POST("/account", h.handleDetectAccount)
		detect.POST("/transaction", h.handleDetectTransaction)
	}

	account := r.Group("/account/:address")
	{
		account.GET("/approvals", h.handleApprovals)
		account.GET("/transactions", h.handleTransactions)
		account.GET("/detections", h.handleHistory)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}
