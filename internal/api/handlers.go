package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vietddude/scamradar/internal/detection/service"
	"github.com/vietddude/scamradar/internal/infra/chain/etherscan"
)

type detectAccountIn struct {
	AccountAddress string `json:"account_address" binding:"required"`
	Explain        bool   `json:"explain"`
	ExplainWithLLM bool   `json:"explain_with_llm"`
}

// detectTransactionIn carries either a mined hash or pending fields. Explain
// defaults to true and explain_with_llm follows it unless given.
type detectTransactionIn struct {
	TransactionHash string   `json:"transaction_hash"`
	FromAddress     string   `json:"from_address"`
	ToAddress       string   `json:"to_address"`
	Value           string   `json:"value"`
	GasPrice        string   `json:"gasPrice"`
	GasUsed         string   `json:"gasUsed"`
	Timestamp       int64    `json:"timestamp"`
	FunctionCall    []string `json:"function_call"`
	Input           string   `json:"input"`
	ContractAddress string   `json:"contract_address"`
	TokenValue      string   `json:"token_value"`
	Explain         *bool    `json:"explain"`
	ExplainWithLLM  *bool    `json:"explain_with_llm"`
}

// detectIn is the body of the combined endpoint: a transaction payload when
// it names a hash or a sender/recipient, an account payload otherwise.
type detectIn struct {
	AccountAddress string `json:"account_address"`
	detectTransactionIn
}

func (in *detectIn) isTransaction() bool {
	return in.TransactionHash != "" || in.FromAddress != "" || in.ToAddress != ""
}

// POST /detect
func (h *Handler) handleDetect(c *gin.Context) {
	var req detectIn
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if req.isTransaction() {
		h.detectTransaction(c, req.detectTransactionIn)
		return
	}
	if req.AccountAddress == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: account_address, transaction_hash or from_address/to_address is required",
		})
		return
	}
	h.detectAccount(c, service.AccountRequest{
		Address:        req.AccountAddress,
		Explain:        boolOr(req.Explain, false),
		ExplainWithLLM: boolOr(req.ExplainWithLLM, false),
	})
}

// POST /detect/account
func (h *Handler) handleDetectAccount(c *gin.Context) {
	var req detectAccountIn
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	h.detectAccount(c, service.AccountRequest{
		Address:        req.AccountAddress,
		Explain:        req.Explain,
		ExplainWithLLM: req.ExplainWithLLM,
	})
}

// POST /detect/transaction
func (h *Handler) handleDetectTransaction(c *gin.Context) {
	var req detectTransactionIn
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	h.detectTransaction(c, req)
}

func (h *Handler) detectAccount(c *gin.Context, req service.AccountRequest) {
	res, err := h.detector.DetectAccount(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) detectTransaction(c *gin.Context, req detectTransactionIn) {
	explain := boolOr(req.Explain, true)
	res, err := h.detector.DetectTransaction(c.Request.Context(), service.TransactionRequest{
		Hash:            req.TransactionHash,
		From:            req.FromAddress,
		To:              req.ToAddress,
		Value:           req.Value,
		GasPrice:        req.GasPrice,
		GasUsed:         req.GasUsed,
		Timestamp:       req.Timestamp,
		FunctionCall:    req.FunctionCall,
		Input:           req.Input,
		ContractAddress: req.ContractAddress,
		TokenValue:      req.TokenValue,
		Explain:         explain,
		ExplainWithLLM:  boolOr(req.ExplainWithLLM, explain),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /account/:address/approvals?page=1&limit=200
func (h *Handler) handleApprovals(c *gin.Context) {
	address := c.Param("address")
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", 200)

	approvals, err := h.detector.Approvals(c.Request.Context(), address, page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": address, "approvals": approvals})
}

// GET /account/:address/transactions?page=1&limit=50
func (h *Handler) handleTransactions(c *gin.Context) {
	address := c.Param("address")
	page := queryInt(c, "page", 1)
	limit := queryInt(c, "limit", etherscan.DefaultHistoryLimit)

	txs, err := h.detector.Transactions(c.Request.Context(), address, page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": address, "transactions": txs})
}

// GET /account/:address/detections?limit=50
func (h *Handler) handleHistory(c *gin.Context) {
	address := c.Param("address")
	list, err := h.detector.History(c.Request.Context(), address, queryInt(c, "limit", 50))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": address, "detections": list})
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, etherscan.ErrTxNotFound):
		status = http.StatusNotFound
	case errors.Is(err, etherscan.ErrRetrieval), errors.Is(err, etherscan.ErrUpstream):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func queryInt(c *gin.Context, key string, def int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil && v > 0 {
		return v
	}
	return def
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
