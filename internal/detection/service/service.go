// Package service runs the detection pipeline for accounts and single
// transactions.
//
// Each request walks Fetch -> Enrich -> Extract -> Normalize -> Predict and,
// when asked, Attribute. Only the chain fetch can fail a request; every later
// auxiliary step degrades instead.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/vietddude/scamradar/internal/core/domain"
	"github.com/vietddude/scamradar/internal/detection/explain"
	"github.com/vietddude/scamradar/internal/detection/features"
	"github.com/vietddude/scamradar/internal/detection/metrics"
	"github.com/vietddude/scamradar/internal/detection/model"
	"github.com/vietddude/scamradar/internal/infra/cache"
	"github.com/vietddude/scamradar/internal/infra/storage"
)

// ErrInvalidRequest marks caller errors that are rejected before any I/O.
var ErrInvalidRequest = errors.New("invalid request")

// NoDataMessage is returned for accounts without any retrievable transfers.
const NoDataMessage = "No transactions found for this address."

const defaultTimeout = 30 * time.Second

// ChainFetcher retrieves the recent transfers of an account.
type ChainFetcher interface {
	Fetch(ctx context.Context, address string) ([]*domain.TransactionRecord, error)
}

// TxSource retrieves a single mined transaction.
type TxSource interface {
	FetchByHash(ctx context.Context, hash string) (*domain.TransactionRecord, error)
}

// Enricher attaches collection market data to records.
type Enricher interface {
	Enrich(ctx context.Context, records []*domain.TransactionRecord) []*domain.TransactionRecord
}

// Scaler maps raw feature vectors into model space.
type Scaler interface {
	Normalize(task domain.Task, v []float64) []float64
}

// Classifier returns the logit of the task head.
type Classifier interface {
	Forward(task domain.Task, x []float64) (float64, error)
}

// ApprovalSource lists token approvals granted by an address.
type ApprovalSource interface {
	Approvals(ctx context.Context, address string, page, limit int) ([]domain.Approval, error)
}

// TransactionLister pages through an address's normal transactions.
type TransactionLister interface {
	Transactions(ctx context.Context, address string, page, limit int) ([]domain.AccountTransaction, error)
}

// Options wires the pipeline stages. Fetcher, Enricher, Scaler and
// Classifier are required.
type Options struct {
	Fetcher      ChainFetcher
	Transactions TxSource
	Approvals    ApprovalSource
	Activity     TransactionLister
	Enricher     Enricher
	Scaler       Scaler
	Classifier   Classifier
	Explainer    explain.Explainer
	Background   *explain.Background
	Narrator     Narrator
	Store        storage.DetectionRepository
	Negative     cache.NegativeSet

	AccountNames     []string
	TransactionNames []string
	Timeout          time.Duration
	Logger           *slog.Logger
}

// Service is the detection orchestrator. It is safe for concurrent use;
// every request has its own state.
type Service struct {
	opts Options
	log  *slog.Logger
	now  func() time.Time
}

// New validates opts and returns a Service.
func New(opts Options) (*Service, error) {
	switch {
	case opts.Fetcher == nil:
		return nil, errors.New("service: fetcher is required")
	case opts.Enricher == nil:
		return nil, errors.New("service: enricher is required")
	case opts.Scaler == nil:
		return nil, errors.New("service: scaler is required")
	case opts.Classifier == nil:
		return nil, errors.New("service: classifier is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if len(opts.AccountNames) == 0 {
		opts.AccountNames = features.AccountNames
	}
	if len(opts.TransactionNames) == 0 {
		opts.TransactionNames = features.TransactionNames
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		opts: opts,
		log:  log.With("component", "detector"),
		now:  time.Now,
	}, nil
}

// AccountRequest asks for an account-level detection.
type AccountRequest struct {
	Address        string
	Explain        bool
	ExplainWithLLM bool
}

func (r AccountRequest) validate() error {
	if r.ExplainWithLLM && !r.Explain {
		return fmt.Errorf("%w: explain must be set when explain_with_llm is set", ErrInvalidRequest)
	}
	if !common.IsHexAddress(r.Address) {
		return fmt.Errorf("%w: %q is not an address", ErrInvalidRequest, r.Address)
	}
	return nil
}

// DetectAccount scores an address from its recent transfers. An address
// without transfers yields a ModeNoData result rather than an error.
func (s *Service) DetectAccount(ctx context.Context, req AccountRequest) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	started := s.now()
	address := strings.ToLower(req.Address)
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	res := &Result{
		ID:             uuid.NewString(),
		AccountAddress: address,
		Mode:           domain.ModeNormal,
	}

	t := s.now()
	records, err := s.opts.Fetcher.Fetch(ctx, address)
	s.stage("fetch", t, "address", address, "records", len(records))
	if err != nil {
		return nil, fmt.Errorf("fetch transactions for %s: %w", address, err)
	}

	if len(records) == 0 {
		res.Mode = domain.ModeNoData
		res.Message = NoDataMessage
		s.finish(ctx, domain.TaskAccount, res, started)
		return res, nil
	}
	res.TransactionsCount = len(records)

	records = s.enrich(ctx, records)
	res.TransactionsUsed = len(records)

	raw := features.Extract(domain.TaskAccount, address, records)
	prob, scaled, err := s.predict(domain.TaskAccount, raw)
	if err != nil {
		return nil, err
	}
	res.AccountProbability = &prob
	res.Features = raw

	if req.Explain {
		exp := s.explain(ctx, domain.TaskAccount, scaled, raw, prob)
		res.Explanations = &Explanations{Account: exp}
		if req.ExplainWithLLM && s.opts.Narrator != nil {
			res.LLMExplanations = &Narrations{
				Account: s.narrate(ctx, domain.TaskAccount, prob, exp),
			}
		}
	}
	s.observe(domain.TaskAccount, scaled)
	s.finish(ctx, domain.TaskAccount, res, started)
	return res, nil
}

// DetectTransaction scores one transaction, either looked up by hash or
// described by pending fields.
func (s *Service) DetectTransaction(ctx context.Context, req TransactionRequest) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	started := s.now()
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	var rec *domain.TransactionRecord
	if req.Hash != "" {
		if s.opts.Transactions == nil {
			return nil, fmt.Errorf("%w: lookup by hash is not configured", ErrInvalidRequest)
		}
		t := s.now()
		var err error
		rec, err = s.opts.Transactions.FetchByHash(ctx, req.Hash)
		s.stage("fetch", t, "hash", req.Hash)
		if err != nil {
			return nil, fmt.Errorf("fetch transaction %s: %w", req.Hash, err)
		}
	} else {
		rec = req.record(s.now())
	}

	records := s.enrich(ctx, []*domain.TransactionRecord{rec})
	raw := features.Extract(domain.TaskTransaction, "", records)
	prob, scaled, err := s.predict(domain.TaskTransaction, raw)
	if err != nil {
		return nil, err
	}

	res := &Result{
		ID:                     uuid.NewString(),
		AccountAddress:         rec.From,
		ToAddress:              rec.To,
		TxHash:                 rec.Hash,
		TransactionProbability: &prob,
		TransactionsCount:      1,
		Mode:                   domain.ModeTransactionOnly,
		Features:               raw,
	}

	if req.Explain {
		exp := s.explain(ctx, domain.TaskTransaction, scaled, raw, prob)
		res.Explanations = &Explanations{Transaction: exp}
		if req.ExplainWithLLM && s.opts.Narrator != nil {
			res.LLMExplanations = &Narrations{
				Transaction: s.narrate(ctx, domain.TaskTransaction, prob, exp),
			}
		}
	}
	s.observe(domain.TaskTransaction, scaled)
	s.finish(ctx, domain.TaskTransaction, res, started)
	return res, nil
}

// Approvals audits the approvals granted by address.
func (s *Service) Approvals(ctx context.Context, address string, page, limit int) ([]domain.Approval, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %q is not an address", ErrInvalidRequest, address)
	}
	if s.opts.Approvals == nil {
		return nil, fmt.Errorf("%w: approvals audit is not configured", ErrInvalidRequest)
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	return s.opts.Approvals.Approvals(ctx, strings.ToLower(address), page, limit)
}

// Transactions lists one page of the address's normal transactions, newest
// first.
func (s *Service) Transactions(ctx context.Context, address string, page, limit int) ([]domain.AccountTransaction, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %q is not an address", ErrInvalidRequest, address)
	}
	if s.opts.Activity == nil {
		return nil, fmt.Errorf("%w: transaction listing is not configured", ErrInvalidRequest)
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	return s.opts.Activity.Transactions(ctx, strings.ToLower(address), page, limit)
}

// History returns stored detections for address, newest first.
func (s *Service) History(ctx context.Context, address string, limit int) ([]*domain.Detection, error) {
	if s.opts.Store == nil {
		return nil, nil
	}
	return s.opts.Store.ListByAddress(ctx, strings.ToLower(address), limit)
}

func (s *Service) enrich(ctx context.Context, records []*domain.TransactionRecord) []*domain.TransactionRecord {
	t := s.now()
	records = s.opts.Enricher.Enrich(ctx, records)
	s.stage("enrich", t, "records", len(records))
	if s.opts.Negative != nil {
		metrics.NegativeCacheSize.Set(float64(s.opts.Negative.Size()))
	}
	return records
}

func (s *Service) predict(task domain.Task, raw []float64) (float64, []float64, error) {
	t := s.now()
	scaled := s.opts.Scaler.Normalize(task, raw)
	logit, err := s.opts.Classifier.Forward(task, scaled)
	if err != nil {
		return 0, nil, fmt.Errorf("predict %s: %w", task, err)
	}
	prob := model.Sigmoid(logit)
	s.stage("predict", t, "task", task, "logit", logit, "probability", prob)
	return prob, scaled, nil
}

// explain never fails: attribution errors become a labeled placeholder.
func (s *Service) explain(ctx context.Context, task domain.Task, scaled, raw []float64, prob float64) *explain.Result {
	if s.opts.Explainer == nil {
		return explain.Failed(explain.MethodGradient, task, prob, errors.New("no explainer configured"))
	}
	method := s.opts.Explainer.Method()
	t := s.now()
	res, err := s.opts.Explainer.Explain(ctx, task, scaled, s.names(task))
	s.stage("explain", t, "task", task, "method", method)
	if err != nil {
		s.log.Warn("attribution failed", "task", task, "method", method, "error", err)
		metrics.Explanations.WithLabelValues(string(method), "error").Inc()
		return explain.Failed(method, task, prob, err)
	}
	metrics.Explanations.WithLabelValues(string(method), "ok").Inc()
	res.AttachRaw(raw)
	return res
}

func (s *Service) names(task domain.Task) []string {
	if task == domain.TaskTransaction {
		return s.opts.TransactionNames
	}
	return s.opts.AccountNames
}

func (s *Service) observe(task domain.Task, scaled []float64) {
	if s.opts.Background != nil {
		s.opts.Background.Observe(task, scaled)
		metrics.BackgroundSize.WithLabelValues(string(task)).Set(float64(s.opts.Background.Len(task)))
	}
}

func (s *Service) stage(name string, started time.Time, attrs ...any) {
	d := s.now().Sub(started)
	metrics.StageDuration.WithLabelValues(name).Observe(d.Seconds())
	s.log.Debug("stage done", append([]any{"stage", name, "duration", d}, attrs...)...)
}

// finish records metrics and stores the result. Store failures are logged.
func (s *Service) finish(ctx context.Context, task domain.Task, res *Result, started time.Time) {
	elapsed := s.now().Sub(started)
	metrics.Detections.WithLabelValues(string(task), string(res.Mode)).Inc()
	metrics.DetectionDuration.WithLabelValues(string(task)).Observe(elapsed.Seconds())
	if p := res.Probability(); p != nil {
		metrics.ScamProbability.WithLabelValues(string(task)).Observe(*p)
	}
	s.log.Info("detection done",
		"id", res.ID, "task", task, "address", res.AccountAddress,
		"mode", res.Mode, "transactions", res.TransactionsCount, "duration", elapsed)

	if s.opts.Store == nil {
		return
	}
	payload, err := json.Marshal(res)
	if err != nil {
		s.log.Warn("encode detection", "id", res.ID, "error", err)
		payload = nil
	}
	d := &domain.Detection{
		ID:          res.ID,
		Task:        task,
		Address:     res.AccountAddress,
		ToAddress:   res.ToAddress,
		TxHash:      res.TxHash,
		Mode:        res.Mode,
		Probability: res.Probability(),
		TxCount:     res.TransactionsCount,
		Explained:   res.Explanations != nil,
		Payload:     payload,
		CreatedAt:   started.UTC(),
	}
	// the request deadline may already be spent
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.opts.Store.Save(storeCtx, d); err != nil {
		s.log.Warn("store detection", "id", res.ID, "error", err)
	}
}
