package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// MatchOutcome classifies the result of scanning a receipt's logs.
type MatchOutcome int

const (
	// MatchNone means no log satisfied token contract, receiver and amount.
	MatchNone MatchOutcome = iota
	// MatchFound means exactly one qualifying transfer was found.
	MatchFound
	// MatchAmountMismatch means a transfer from the right contract reached
	// the treasury but carried the wrong value. Surfaced as a hard failure
	// rather than skipped: it indicates a double-spend attempt or a pricing
	// bug upstream.
	MatchAmountMismatch
)

// MatchResult carries the matched transfer, or the offending value on an
// amount mismatch.
type MatchResult struct {
	Outcome     MatchOutcome
	From        common.Address
	To          common.Address
	Value       *big.Int
	Expected    *big.Int
	BlockNumber uint64
}

// MatchTransfer scans receipt logs in order for an ERC-20 Transfer of
// exactly expected base units from the given token contract to the
// treasury. The first log whose receiver matches the treasury is
// authoritative: if its value differs from expected the scan stops with
// MatchAmountMismatch and no later log can rescue the payment. Logs from
// other contracts and logs that are not Transfer events are skipped.
//
// Pure decision logic: no I/O, no clock.
func MatchTransfer(logs []*types.Log, token, treasury common.Address, expected *big.Int) MatchResult {
	for _, lg := range logs {
		if lg.Address != token {
			continue
		}
		ev, ok := DecodeTransferLog(lg)
		if !ok {
			continue
		}
		if ev.To != treasury {
			continue
		}
		if ev.Value.Cmp(expected) != 0 {
			return MatchResult{
				Outcome:     MatchAmountMismatch,
				From:        ev.From,
				To:          ev.To,
				Value:       ev.Value,
				Expected:    expected,
				BlockNumber: lg.BlockNumber,
			}
		}
		return MatchResult{
			Outcome:     MatchFound,
			From:        ev.From,
			To:          ev.To,
			Value:       ev.Value,
			Expected:    expected,
			BlockNumber: lg.BlockNumber,
		}
	}
	return MatchResult{Outcome: MatchNone, Expected: expected}
}
