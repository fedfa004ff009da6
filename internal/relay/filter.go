package relay

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"proposalRelay/internal/metrics"
)

// LogSource is the subset of the chain client the filter polls.
type LogSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// FilterConfig scopes a LogFilter to one event on one contract.
type FilterConfig struct {
	Address   common.Address
	Topic0    common.Hash
	BatchSize uint64
	// Lookback is how many blocks below the cursor each poll scans again,
	// for providers whose log index trails the head they report.
	Lookback uint64
}

// LogFilter is a client-tracked cursor over one event type. Each call to
// NewEntries returns logs observed since the previous call, in chain order.
// Every call scans [Next()-Lookback, head], never below the anchor block;
// logs already returned are dropped. On error the cursor does not move, so
// the same blocks are covered again.
func (f *LogFilter) NewEntries(ctx context.Context) ([]types.Log, error) {
	head, err := f.source.LatestBlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get latest block: %w", err)
	}
	from := f.scanFrom()
	if head < from {
		return nil, nil
	}

	chunks, err := BlockRange{From: from, To: head}.Split(f.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	var entries []types.Log
	for _, chunk := range chunks {
		logs, err := f.source.FilterLogs(ctx, chunk.From, chunk.To, []common.Address{f.cfg.Address}, []common.Hash{f.cfg.Topic0})
		if err != nil {
			return nil, fmt.Errorf("filter logs %d-%d: %w", chunk.From, chunk.To, err)
		}
		for _, log := range logs {
			if log.Removed || log.BlockNumber < chunk.From || log.BlockNumber > chunk.To || f.isSeen(log) {
				continue
			}
			entries = append(entries, log)
		}
	}

	for _, log := range entries {
		f.seen[logKey(log)] = log.BlockNumber
	}
	f.logger.Debug("filter advanced",
		zap.Uint64("from", from),
		zap.Uint64("to", head),
		zap.Int("entries", len(entries)),
	)
	if head >= f.next {
		f.next = head + 1
		metrics.FilterHead.Set(float64(head))
	}
	f.prune()

	return entries, nil
}

// scanFrom is the first block of the next query.
func (f *LogFilter) scanFrom() uint64 {
	if f.next-f.anchor < f.cfg.Lookback {
		return f.anchor
	}
	return f.next - f.cfg.Lookback
}

func (f *LogFilter) isSeen(log types.Log) bool {
	_, ok := f.seen[logKey(log)]
	return ok
}

// prune forgets logs below the next scan window; they cannot be returned again.
func (f *LogFilter) prune() {
	floor := f.scanFrom()
	for key, block := range f.seen {
		if block < floor {
			delete(f.seen, key)
		}
	}
}

func logKey(log types.Log) string {
	return fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
}
