package engine

import "github.com/rs/zerolog"

// CutStats counts how often each pruning or cutoff fired during one search.
type CutStats struct {
	TTCutoffs        uint64
	NullMoveCutoffs  uint64
	ReverseFutility  uint64
	FutilityPrunes   uint64
	LateMovePrunes   uint64
	BetaCutoffs      uint64
	QStandPatCutoffs uint64
	QBetaCutoffs     uint64
	SEEPrunes        uint64
}

// MarshalZerologObject lets the stats ride along as a nested log object.
func (c CutStats) MarshalZerologObject(e *zerolog.Event) {
	e.Uint64("tt", c.TTCutoffs).
		Uint64("null", c.NullMoveCutoffs).
		Uint64("rfp", c.ReverseFutility).
		Uint64("futility", c.FutilityPrunes).
		Uint64("lmp", c.LateMovePrunes).
		Uint64("beta", c.BetaCutoffs).
		Uint64("qstandpat", c.QStandPatCutoffs).
		Uint64("qbeta", c.QBetaCutoffs).
		Uint64("see", c.SEEPrunes)
}

// CutStats returns the counters of the last search.
func (s *Searcher) CutStats() CutStats { return s.cuts }
