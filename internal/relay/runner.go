package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"proposalRelay/internal/metrics"
	"proposalRelay/internal/model"
)

// EntrySource yields filter entries not returned before.
type EntrySource interface {
	NewEntries(ctx context.Context) ([]types.Log, error)
}

// Decoder turns a raw log into a proposal.
type Decoder interface {
	DecodeProposal(log types.Log) (model.Proposal, error)
}

// Notifier forwards one proposal.
type Notifier interface {
	Notify(ctx context.Context, proposal model.Proposal) error
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RunConfig holds runtime settings for the poll loop.
type RunConfig struct {
	PollInterval time.Duration
	// Sleep defaults to a timer-based wait.
	Sleep SleepFunc
}

// Runner polls the filter and notifies each new proposal.
type Runner struct {
	cfg      RunConfig
	entries  EntrySource
	decoder  Decoder
	notifier Notifier
	logger   *zap.Logger
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, entries EntrySource, decoder Decoder, notifier Notifier, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	return &Runner{
		cfg:      cfg,
		entries:  entries,
		decoder:  decoder,
		notifier: notifier,
		logger:   logger,
	}
}

// Run polls every PollInterval until ctx is cancelled and returns ctx.Err().
// Step failures are logged and never end the loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.entries == nil {
		return fmt.Errorf("entry source is nil")
	}
	if r.decoder == nil {
		return fmt.Errorf("decoder is nil")
	}
	if r.notifier == nil {
		return fmt.Errorf("notifier is nil")
	}
	if r.cfg.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}

	for {
		r.Poll(ctx)
		if err := r.cfg.Sleep(ctx, r.cfg.PollInterval); err != nil {
			return err
		}
	}
}

// Poll runs a single iteration and returns the step errors it logged.
func (r *Runner) Poll(ctx context.Context) []error {
	start := time.Now()
	defer func() { metrics.PollLatency.Observe(time.Since(start).Seconds()) }()
	metrics.PollsTotal.Inc()

	logs, err := r.entries.NewEntries(ctx)
	if err != nil {
		stepErr := &StepError{Stage: StageFetch, Err: err}
		r.report(stepErr, nil)
		return []error{stepErr}
	}
	metrics.EntriesTotal.Add(float64(len(logs)))

	var errs []error
	for i := range logs {
		if ctx.Err() != nil {
			r.logger.Warn("poll interrupted, entries not notified",
				zap.Int("skipped", len(logs)-i),
				zap.Uint64("first_block", logs[i].BlockNumber),
				zap.Error(ctx.Err()),
			)
			break
		}
		if err := r.handle(ctx, logs[i]); err != nil {
			r.report(err, &logs[i])
			errs = append(errs, err)
		}
	}
	return errs
}

func (r *Runner) handle(ctx context.Context, log types.Log) *StepError {
	proposal, err := r.decoder.DecodeProposal(log)
	if err != nil {
		return &StepError{Stage: StageDecode, Err: err}
	}

	r.logger.Info("proposal initialized",
		zap.String("proposal_id", proposal.ProposalID.String()),
		zap.String("voting_end_block", proposal.VotingEndBlock.String()),
		zap.Uint64("block_number", log.BlockNumber),
	)

	if err := r.notifier.Notify(ctx, proposal); err != nil {
		return &StepError{Stage: StageNotify, Err: err}
	}
	return nil
}

func (r *Runner) report(err *StepError, log *types.Log) {
	metrics.StepErrors.WithLabelValues(string(err.Stage)).Inc()

	fields := []zap.Field{zap.String("stage", string(err.Stage)), zap.Error(err.Err)}
	if log != nil {
		fields = append(fields,
			zap.Uint64("block_number", log.BlockNumber),
			zap.String("tx_hash", log.TxHash.Hex()),
			zap.Uint("log_index", log.Index),
		)
	}
	r.logger.Error("error in monitoring proposals", fields...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
