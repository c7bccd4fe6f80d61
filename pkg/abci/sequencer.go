package abci

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tokendex/tokendex/pkg/util"
)

// LocalSequencer is a single-node substrate: it drives
// PrepareProposal -> FinalizeBlock on a fixed interval, giving the app the
// serialized, atomic, crash-free per-operation execution it assumes.
// A consensus engine would replace this loop without touching the app.
type LocalSequencer struct {
	App      Application
	Interval time.Duration // minimum block time; <=0 means 100ms
	Clock    util.Clock
	Logger   *zap.SugaredLogger

	// OnBlockCommit is invoked after every finalized block.
	OnBlockCommit func(height int64)

	height int64
}

// Run produces blocks until ctx is cancelled.
func (s *LocalSequencer) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	clock := s.Clock
	if clock == nil {
		clock = util.RealClock{}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.commitBlock(clock)
		}
	}
}

func (s *LocalSequencer) commitBlock(clock util.Clock) {
	next := s.height + 1
	prep := s.App.PrepareProposal(RequestPrepareProposal{Height: next, MaxTxBytes: 1 << 24})
	if len(prep.Txs) == 0 {
		return // nothing pending; skip the empty block
	}

	proc := s.App.ProcessProposal(RequestProcessProposal{Height: next, Txs: prep.Txs})
	if !proc.Accept {
		if s.Logger != nil {
			s.Logger.Warnw("proposal_rejected", "height", next, "txs", len(prep.Txs))
		}
		return
	}

	resp := s.App.FinalizeBlock(RequestFinalizeBlock{
		Height:    next,
		Timestamp: clock.Now().Unix(),
		Txs:       prep.Txs,
	})
	s.height = next

	if s.Logger != nil {
		s.Logger.Infow("block_committed",
			"height", s.height,
			"txs", len(prep.Txs),
			"applied", resp.Applied,
			"rejects", resp.Rejects)
	}
	if s.OnBlockCommit != nil {
		s.OnBlockCommit(s.height)
	}
}

// Height returns the last committed height.
func (s *LocalSequencer) Height() int64 { return s.height }
