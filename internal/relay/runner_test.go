package relay

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"proposalRelay/internal/model"
)

type pollResult struct {
	logs []types.Log
	err  error
}

type scriptedEntries struct {
	polls []pollResult
	calls int
}

func (s *scriptedEntries) NewEntries(context.Context) ([]types.Log, error) {
	s.calls++
	if len(s.polls) == 0 {
		return nil, nil
	}
	next := s.polls[0]
	s.polls = s.polls[1:]
	return next.logs, next.err
}

// proposalEntry encodes the proposal id in the log index and the voting end
// block in the block number; indexDecoder reads them back.
func proposalEntry(id uint, votingEnd uint64) types.Log {
	return types.Log{Index: id, BlockNumber: votingEnd}
}

type indexDecoder struct {
	fail map[uint]error
}

func (d indexDecoder) DecodeProposal(log types.Log) (model.Proposal, error) {
	if err := d.fail[log.Index]; err != nil {
		return model.Proposal{}, err
	}
	return model.Proposal{
		ProposalID:     new(big.Int).SetUint64(uint64(log.Index)),
		VotingEndBlock: new(big.Int).SetUint64(log.BlockNumber),
		BlockNumber:    log.BlockNumber,
		LogIndex:       uint64(log.Index),
	}, nil
}

type recordingNotifier struct {
	sent []model.Proposal
	fail map[string]error
}

func (n *recordingNotifier) Notify(_ context.Context, proposal model.Proposal) error {
	n.sent = append(n.sent, proposal)
	return n.fail[proposal.ProposalID.String()]
}

func (n *recordingNotifier) ids() []string {
	out := make([]string, 0, len(n.sent))
	for _, p := range n.sent {
		out = append(out, p.ProposalID.String())
	}
	return out
}

// stopAfter returns a sleep func that records durations and cancels ctx
// once it has been called n times.
func stopAfter(n int, cancel context.CancelFunc, slept *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		if len(*slept) >= n {
			cancel()
		}
		return ctx.Err()
	}
}

func runLoop(t *testing.T, polls int, entries EntrySource, decoder Decoder, notifier Notifier, logger *zap.Logger) []time.Duration {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var slept []time.Duration
	runner := NewRunner(RunConfig{
		PollInterval: 10 * time.Second,
		Sleep:        stopAfter(polls, cancel, &slept),
	}, entries, decoder, notifier, logger)

	err := runner.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	return slept
}

func TestRunnerNotifiesOnceAcrossPolls(t *testing.T) {
	entries := &scriptedEntries{polls: []pollResult{
		{logs: []types.Log{proposalEntry(1, 100)}},
		{logs: nil},
	}}
	notifier := &recordingNotifier{}

	slept := runLoop(t, 2, entries, indexDecoder{}, notifier, nil)

	assert.Equal(t, 2, entries.calls)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "1", notifier.sent[0].ProposalID.String())
	assert.Equal(t, "100", notifier.sent[0].VotingEndBlock.String())
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, slept)
}

func TestRunnerPreservesOrder(t *testing.T) {
	entries := &scriptedEntries{polls: []pollResult{
		{logs: []types.Log{proposalEntry(1, 100), proposalEntry(2, 101), proposalEntry(3, 101)}},
	}}
	notifier := &recordingNotifier{}

	runLoop(t, 1, entries, indexDecoder{}, notifier, nil)
	assert.Equal(t, []string{"1", "2", "3"}, notifier.ids())
}

func TestRunnerContinuesAfterNotifyError(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	entries := &scriptedEntries{polls: []pollResult{
		{logs: []types.Log{proposalEntry(1, 100), proposalEntry(2, 100)}},
		{logs: []types.Log{proposalEntry(3, 120)}},
	}}
	notifier := &recordingNotifier{fail: map[string]error{"1": errors.New("telegram unreachable")}}

	slept := runLoop(t, 2, entries, indexDecoder{}, notifier, zap.New(core))

	assert.Equal(t, []string{"1", "2", "3"}, notifier.ids())
	assert.Len(t, slept, 2, "sleep still happens on schedule")

	failures := logs.FilterMessage("error in monitoring proposals").All()
	require.Len(t, failures, 1)
	assert.Equal(t, string(StageNotify), failures[0].ContextMap()["stage"])
	assert.Contains(t, failures[0].ContextMap()["error"], "telegram unreachable")
}

func TestRunnerContinuesAfterFetchError(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	entries := &scriptedEntries{polls: []pollResult{
		{err: errors.New("connection refused")},
		{logs: []types.Log{proposalEntry(5, 200)}},
	}}
	notifier := &recordingNotifier{}

	slept := runLoop(t, 2, entries, indexDecoder{}, notifier, zap.New(core))

	assert.Equal(t, []string{"5"}, notifier.ids())
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, slept, "no backoff after errors")

	failures := logs.FilterField(zap.String("stage", string(StageFetch))).All()
	assert.Len(t, failures, 1)
}

func TestRunnerSkipsUndecodableEntry(t *testing.T) {
	entries := &scriptedEntries{polls: []pollResult{
		{logs: []types.Log{proposalEntry(1, 100), proposalEntry(2, 100), proposalEntry(3, 100)}},
	}}
	decoder := indexDecoder{fail: map[uint]error{2: errors.New("abi: length insufficient")}}
	notifier := &recordingNotifier{}

	runLoop(t, 1, entries, decoder, notifier, nil)
	assert.Equal(t, []string{"1", "3"}, notifier.ids())
}

func TestRunnerPollReturnsStepErrors(t *testing.T) {
	entries := &scriptedEntries{polls: []pollResult{
		{logs: []types.Log{proposalEntry(1, 100), proposalEntry(2, 100)}},
	}}
	decoder := indexDecoder{fail: map[uint]error{1: errors.New("bad data")}}
	notifier := &recordingNotifier{fail: map[string]error{"2": errors.New("timeout")}}

	runner := NewRunner(RunConfig{PollInterval: time.Second}, entries, decoder, notifier, nil)
	errs := runner.Poll(context.Background())
	require.Len(t, errs, 2)

	var stepErr *StepError
	require.ErrorAs(t, errs[0], &stepErr)
	assert.Equal(t, StageDecode, stepErr.Stage)
	require.ErrorAs(t, errs[1], &stepErr)
	assert.Equal(t, StageNotify, stepErr.Stage)
	assert.EqualError(t, errs[1], "notify: timeout")
}

func TestRunnerStopsWhenCancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	entries := &scriptedEntries{}

	runner := NewRunner(RunConfig{PollInterval: time.Hour}, entries, indexDecoder{}, &recordingNotifier{}, nil)

	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop after cancel")
	}
}

func TestRunnerValidates(t *testing.T) {
	ctx := context.Background()

	assert.Error(t, NewRunner(RunConfig{PollInterval: time.Second}, nil, indexDecoder{}, &recordingNotifier{}, nil).Run(ctx))
	assert.Error(t, NewRunner(RunConfig{PollInterval: time.Second}, &scriptedEntries{}, nil, &recordingNotifier{}, nil).Run(ctx))
	assert.Error(t, NewRunner(RunConfig{PollInterval: time.Second}, &scriptedEntries{}, indexDecoder{}, nil, nil).Run(ctx))
	assert.Error(t, NewRunner(RunConfig{}, &scriptedEntries{}, indexDecoder{}, &recordingNotifier{}, nil).Run(ctx))
}

type cancellingNotifier struct {
	recordingNotifier
	cancel context.CancelFunc
}

func (n *cancellingNotifier) Notify(ctx context.Context, proposal model.Proposal) error {
	n.cancel()
	return n.recordingNotifier.Notify(ctx, proposal)
}

func TestRunnerLogsEntriesSkippedOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	entries := &scriptedEntries{polls: []pollResult{
		{logs: []types.Log{proposalEntry(1, 100), proposalEntry(2, 101), proposalEntry(3, 102)}},
	}}
	notifier := &cancellingNotifier{cancel: cancel}
	core, recorded := observer.New(zapcore.WarnLevel)

	runner := NewRunner(RunConfig{PollInterval: time.Second}, entries, indexDecoder{}, notifier, zap.New(core))
	runner.Poll(ctx)

	assert.Equal(t, []string{"1"}, notifier.ids())
	logs := recorded.FilterMessage("poll interrupted, entries not notified").All()
	require.Len(t, logs, 1)
	assert.Equal(t, int64(2), logs[0].ContextMap()["skipped"])
	assert.Equal(t, uint64(101), logs[0].ContextMap()["first_block"])
}
