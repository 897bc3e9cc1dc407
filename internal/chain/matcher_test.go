package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testToken    = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	testTreasury = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testSender   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	otherWallet  = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func transferLog(token, from, to common.Address, value *big.Int, block uint64) *types.Log {
	return &types.Log{
		Address: token,
		Topics: []common.Hash{
			transferEventSig,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data:        common.LeftPadBytes(value.Bytes(), 32),
		BlockNumber: block,
	}
}

func TestMatchTransferFound(t *testing.T) {
	expected := big.NewInt(300_000_000) // 300 USDC in base units
	logs := []*types.Log{
		transferLog(testToken, testSender, testTreasury, expected, 19_000_000),
	}

	result := MatchTransfer(logs, testToken, testTreasury, expected)

	require.Equal(t, MatchFound, result.Outcome)
	assert.Equal(t, testSender, result.From)
	assert.Equal(t, testTreasury, result.To)
	assert.Equal(t, "300000000", result.Value.String())
	assert.Equal(t, uint64(19_000_000), result.BlockNumber)
}

func TestMatchTransferAmountMismatchIsTerminal(t *testing.T) {
	expected := big.NewInt(300_000_000)
	logs := []*types.Log{
		// First treasury hit carries the wrong value; the exact transfer
		// after it must not rescue the payment.
		transferLog(testToken, testSender, testTreasury, big.NewInt(299_000_000), 100),
		transferLog(testToken, testSender, testTreasury, expected, 100),
	}

	result := MatchTransfer(logs, testToken, testTreasury, expected)

	require.Equal(t, MatchAmountMismatch, result.Outcome)
	assert.Equal(t, "299000000", result.Value.String())
	assert.Equal(t, "300000000", result.Expected.String())
}

func TestMatchTransferIgnoresOtherContracts(t *testing.T) {
	expected := big.NewInt(500_000_000)
	wrongToken := common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	logs := []*types.Log{
		// Right receiver and value but emitted by a different contract.
		transferLog(wrongToken, testSender, testTreasury, expected, 100),
		transferLog(testToken, testSender, testTreasury, expected, 100),
	}

	result := MatchTransfer(logs, testToken, testTreasury, expected)
	require.Equal(t, MatchFound, result.Outcome)
}

func TestMatchTransferIgnoresOtherReceivers(t *testing.T) {
	expected := big.NewInt(100_000_000)
	logs := []*types.Log{
		transferLog(testToken, testSender, otherWallet, expected, 100),
	}

	result := MatchTransfer(logs, testToken, testTreasury, expected)
	require.Equal(t, MatchNone, result.Outcome)
	assert.Equal(t, "100000000", result.Expected.String())
}

func TestMatchTransferSkipsNonTransferLogs(t *testing.T) {
	expected := big.NewInt(100_000_000)
	approval := &types.Log{
		Address: testToken,
		Topics: []common.Hash{
			common.HexToHash("0x8c5be1e5ebec7d5bd14f71427d1e84f3dd0314c0f7b2291e5b200ac8c7c3b925"),
			common.BytesToHash(testSender.Bytes()),
			common.BytesToHash(testTreasury.Bytes()),
		},
		Data: common.LeftPadBytes(expected.Bytes(), 32),
	}
	logs := []*types.Log{
		approval,
		transferLog(testToken, testSender, testTreasury, expected, 100),
	}

	result := MatchTransfer(logs, testToken, testTreasury, expected)
	require.Equal(t, MatchFound, result.Outcome)
}

func TestMatchTransferEmptyLogs(t *testing.T) {
	result := MatchTransfer(nil, testToken, testTreasury, big.NewInt(1))
	require.Equal(t, MatchNone, result.Outcome)
}
