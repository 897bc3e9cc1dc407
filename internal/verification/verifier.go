package verification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/OVERFORGE/DeDen/internal/chain"
	"github.com/OVERFORGE/DeDen/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
)

const (
	// requiredConfirmations is the depth a payment transaction must reach
	// before its receipt is trusted.
	requiredConfirmations = 3
	// defaultWaitTimeout bounds the confirmation wait so a stalled chain
	// cannot hold a verification task forever.
	defaultWaitTimeout = 5 * time.Minute
)

var (
	ErrTxReverted = errors.New("transaction reverted on chain")
	// ErrAmountMismatch's text is surfaced to operators in the audit trail.
	ErrAmountMismatch      = errors.New("Amount mismatch")
	ErrNoMatchingTransfer  = errors.New("no matching transfer to treasury wallet")
	ErrMalformedTxHash     = errors.New("malformed transaction hash")
	ErrVerificationRunning = errors.New("verification already in progress")
)

var txHashRe = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// Verifier coordinates the ledger reader, the payment matcher and the
// booking store: it loads a booking, computes the expected payment,
// checks the chain and atomically commits the outcome. It is the boundary
// that converts every internal failure into one of two durable outcomes,
// CONFIRMED or FAILED, plus an audit entry.
type Verifier struct {
	store    BookingStore
	registry *chain.Registry
	reader   LedgerReader
	notifier Notifier
	locker   Locker

	confirmationDepth uint64
	waitTimeout       time.Duration
}

func NewVerifier(store BookingStore, registry *chain.Registry, reader LedgerReader, notifier Notifier, locker Locker) *Verifier {
	return &Verifier{
		store:             store,
		registry:          registry,
		reader:            reader,
		notifier:          notifier,
		locker:            locker,
		confirmationDepth: requiredConfirmations,
		waitTimeout:       defaultWaitTimeout,
	}
}

// VerifyPayment verifies the submitted transaction against the booking's
// payment intent and commits CONFIRMED or FAILED. A booking that is no
// longer pending is a silent no-op, which makes duplicate triggers safe.
// The triggering error is re-raised to the caller after the FAILED state
// is persisted.
func (v *Verifier) VerifyPayment(ctx context.Context, bookingID, txHash string, chainID int64) error {
	if v.locker != nil {
		acquired, err := v.locker.AcquireVerification(ctx, bookingID)
		if err != nil {
			// The lock is advisory; the conditional commit still guards the race.
			log.Printf("verification lock unavailable for %s: %v", bookingID, err)
		} else if !acquired {
			return ErrVerificationRunning
		} else {
			defer v.locker.ReleaseVerification(ctx, bookingID)
		}
	}

	booking, err := v.store.GetByBookingID(ctx, bookingID)
	if err != nil {
		return err
	}
	if booking.Status != models.BookingStatusPending {
		log.Printf("booking %s is %s, skipping verification", bookingID, booking.Status)
		return nil
	}
	if !booking.HasPaymentIntent() {
		return v.fail(ctx, booking, txHash, chainID, models.ErrMissingPaymentIntent)
	}

	chainCfg, err := v.registry.Chain(chainID)
	if err != nil {
		return v.fail(ctx, booking, txHash, chainID, err)
	}
	token, err := v.registry.Token(chainID, booking.PaymentToken)
	if err != nil {
		return v.fail(ctx, booking, txHash, chainID, err)
	}
	amount, err := decimal.NewFromString(booking.PaymentAmount)
	if err != nil {
		return v.fail(ctx, booking, txHash, chainID,
			fmt.Errorf("%w: unparseable amount %q", models.ErrMissingPaymentIntent, booking.PaymentAmount))
	}
	expected, err := v.registry.BaseUnits(chainID, booking.PaymentToken, amount)
	if err != nil {
		return v.fail(ctx, booking, txHash, chainID, err)
	}

	if !txHashRe.MatchString(txHash) {
		return v.fail(ctx, booking, txHash, chainID, fmt.Errorf("%w: %s", ErrMalformedTxHash, txHash))
	}
	hash := common.HexToHash(txHash)

	if _, _, err := v.reader.GetTransaction(ctx, chainID, hash); err != nil {
		return v.fail(ctx, booking, txHash, chainID, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, v.waitTimeout)
	receipt, err := v.reader.WaitForConfirmations(waitCtx, chainID, hash, v.confirmationDepth)
	cancel()
	if err != nil {
		return v.fail(ctx, booking, txHash, chainID, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return v.fail(ctx, booking, txHash, chainID, ErrTxReverted)
	}

	result := chain.MatchTransfer(receipt.Logs, token.Address, v.registry.Treasury(), expected)
	switch result.Outcome {
	case chain.MatchAmountMismatch:
		return v.fail(ctx, booking, txHash, chainID,
			fmt.Errorf("%w: expected %s, found %s", ErrAmountMismatch, result.Expected, result.Value))
	case chain.MatchNone:
		return v.fail(ctx, booking, txHash, chainID,
			fmt.Errorf("%w: token %s, treasury %s", ErrNoMatchingTransfer, token.Address.Hex(), v.registry.Treasury().Hex()))
	}

	evidence := models.PaymentEvidence{
		TxHash:          txHash,
		Chain:           chainCfg.Name,
		ChainID:         chainID,
		BlockNumber:     int64(result.BlockNumber),
		SenderAddress:   result.From.Hex(),
		ReceiverAddress: result.To.Hex(),
		AmountBaseUnits: result.Value.String(),
	}
	if err := v.store.ConfirmPayment(ctx, bookingID, evidence); err != nil {
		if errors.Is(err, models.ErrStatusConflict) {
			// A concurrent run resolved the booking first; nothing to undo.
			log.Printf("booking %s resolved concurrently, dropping confirm", bookingID)
			return nil
		}
		return err
	}

	log.Printf("payment confirmed for booking %s: %s on %s", bookingID, txHash, chainCfg.Name)

	booking.Status = models.BookingStatusConfirmed
	booking.TxHash = evidence.TxHash
	booking.Chain = evidence.Chain
	booking.ChainID = &chainID
	booking.BlockNumber = &evidence.BlockNumber
	booking.SenderAddress = evidence.SenderAddress
	booking.ReceiverAddress = evidence.ReceiverAddress
	booking.AmountBaseUnits = evidence.AmountBaseUnits
	go v.notifier.NotifyPaymentConfirmed(context.WithoutCancel(ctx), booking)

	return nil
}

// fail commits the FAILED outcome plus its audit entry, then re-raises
// cause. A store failure here is logged but never masks the original
// verification error.
func (v *Verifier) fail(ctx context.Context, booking *models.Booking, txHash string, chainID int64, cause error) error {
	if err := v.store.MarkPaymentFailed(ctx, booking.BookingID, txHash, chainID, cause.Error()); err != nil {
		if errors.Is(err, models.ErrStatusConflict) {
			log.Printf("booking %s resolved concurrently, dropping failure %v", booking.BookingID, cause)
		} else {
			log.Printf("failed to persist failed verification for %s: %v", booking.BookingID, err)
		}
		return cause
	}

	log.Printf("payment verification failed for booking %s: %v", booking.BookingID, cause)

	booking.Status = models.BookingStatusFailed
	booking.TxHash = txHash
	go v.notifier.NotifyPaymentFailed(context.WithoutCancel(ctx), booking, cause.Error())

	return cause
}
