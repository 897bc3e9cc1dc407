package verification

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/OVERFORGE/DeDen/internal/chain"
	"github.com/OVERFORGE/DeDen/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validTxHash = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

var (
	transferSig  = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	usdcMainnet  = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	treasuryAddr = common.HexToAddress("0x1111111111111111111111111111111111111111")
	senderAddr   = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func transferLog(token, from, to common.Address, value *big.Int, block uint64) *types.Log {
	return &types.Log{
		Address: token,
		Topics: []common.Hash{
			transferSig,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data:        common.LeftPadBytes(value.Bytes(), 32),
		BlockNumber: block,
	}
}

type fakeStore struct {
	mu sync.Mutex

	booking *models.Booking
	getErr  error

	confirmed  []models.PaymentEvidence
	confirmErr error

	failReasons []string
	failErr     error

	expiredList []models.Booking
	listErr     error
	expireErr   map[string]error
	expireCalls []string

	resetErr   error
	resetCalls int
}

func (s *fakeStore) GetByBookingID(ctx context.Context, bookingID string) (*models.Booking, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.booking == nil || s.booking.BookingID != bookingID {
		return nil, models.ErrBookingNotFound
	}
	return s.booking, nil
}

func (s *fakeStore) ConfirmPayment(ctx context.Context, bookingID string, evidence models.PaymentEvidence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.confirmErr != nil {
		return s.confirmErr
	}
	s.confirmed = append(s.confirmed, evidence)
	return nil
}

func (s *fakeStore) MarkPaymentFailed(ctx context.Context, bookingID, txHash string, chainID int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.failReasons = append(s.failReasons, reason)
	return nil
}

func (s *fakeStore) ListExpiredPending(ctx context.Context, now time.Time) ([]models.Booking, error) {
	return s.expiredList, s.listErr
}

func (s *fakeStore) ExpireBooking(ctx context.Context, bookingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireCalls = append(s.expireCalls, bookingID)
	if err, ok := s.expireErr[bookingID]; ok {
		return err
	}
	return nil
}

func (s *fakeStore) ResetForRetry(ctx context.Context, bookingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resetErr != nil {
		return s.resetErr
	}
	s.resetCalls++
	s.booking.Status = models.BookingStatusPending
	return nil
}

func (s *fakeStore) failedWith() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.failReasons...)
}

type fakeReader struct {
	getTxErr error
	receipt  *types.Receipt
	waitErr  error
}

func (r *fakeReader) GetTransaction(ctx context.Context, chainID int64, txHash common.Hash) (*types.Transaction, bool, error) {
	if r.getTxErr != nil {
		return nil, false, r.getTxErr
	}
	return nil, false, nil
}

func (r *fakeReader) WaitForConfirmations(ctx context.Context, chainID int64, txHash common.Hash, depth uint64) (*types.Receipt, error) {
	if r.waitErr != nil {
		return nil, r.waitErr
	}
	return r.receipt, nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	confirmed int
	failed    int
	expired   int
	reasons   []string
}

func (n *fakeNotifier) NotifyPaymentConfirmed(ctx context.Context, booking *models.Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed++
}

func (n *fakeNotifier) NotifyPaymentFailed(ctx context.Context, booking *models.Booking, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed++
	n.reasons = append(n.reasons, reason)
}

func (n *fakeNotifier) NotifyBookingExpired(ctx context.Context, booking *models.Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expired++
}

func (n *fakeNotifier) counts() (int, int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.confirmed, n.failed, n.expired
}

type fakeLocker struct {
	acquired bool
	err      error
	released int
}

func (l *fakeLocker) AcquireVerification(ctx context.Context, bookingID string) (bool, error) {
	return l.acquired, l.err
}

func (l *fakeLocker) ReleaseVerification(ctx context.Context, bookingID string) {
	l.released++
}

func testRegistry(t *testing.T) *chain.Registry {
	t.Helper()
	t.Setenv("TREASURY_ADDRESS", treasuryAddr.Hex())
	registry, err := chain.LoadRegistry()
	require.NoError(t, err)
	return registry
}

func pendingBooking() *models.Booking {
	chainID := int64(1)
	return &models.Booking{
		BookingID:     "bk-123",
		UserID:        7,
		Status:        models.BookingStatusPending,
		PaymentToken:  "USDC",
		PaymentAmount: "300",
		ChainID:       &chainID,
	}
}

func successReceipt(value *big.Int) *types.Receipt {
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(19_000_000),
		Logs: []*types.Log{
			transferLog(usdcMainnet, senderAddr, treasuryAddr, value, 19_000_000),
		},
	}
}

func TestVerifyPaymentConfirms(t *testing.T) {
	store := &fakeStore{booking: pendingBooking()}
	reader := &fakeReader{receipt: successReceipt(big.NewInt(300_000_000))}
	notifier := &fakeNotifier{}
	v := NewVerifier(store, testRegistry(t), reader, notifier, nil)

	err := v.VerifyPayment(context.Background(), "bk-123", validTxHash, 1)
	require.NoError(t, err)

	require.Len(t, store.confirmed, 1)
	evidence := store.confirmed[0]
	assert.Equal(t, validTxHash, evidence.TxHash)
	assert.Equal(t, "Ethereum", evidence.Chain)
	assert.Equal(t, int64(1), evidence.ChainID)
	assert.Equal(t, "300000000", evidence.AmountBaseUnits)
	assert.Equal(t, senderAddr.Hex(), evidence.SenderAddress)
	assert.Equal(t, treasuryAddr.Hex(), evidence.ReceiverAddress)
	assert.Empty(t, store.failedWith())

	require.Eventually(t, func() bool {
		confirmed, _, _ := notifier.counts()
		return confirmed == 1
	}, time.Second, 10*time.Millisecond)
}

func TestVerifyPaymentSkipsResolvedBooking(t *testing.T) {
	booking := pendingBooking()
	booking.Status = models.BookingStatusConfirmed
	store := &fakeStore{booking: booking}
	v := NewVerifier(store, testRegistry(t), &fakeReader{}, &fakeNotifier{}, nil)

	err := v.VerifyPayment(context.Background(), "bk-123", validTxHash, 1)
	require.NoError(t, err)
	assert.Empty(t, store.confirmed)
	assert.Empty(t, store.failedWith())
}

func TestVerifyPaymentAmountMismatch(t *testing.T) {
	store := &fakeStore{booking: pendingBooking()}
	reader := &fakeReader{receipt: successReceipt(big.NewInt(299_000_000))}
	notifier := &fakeNotifier{}
	v := NewVerifier(store, testRegistry(t), reader, notifier, nil)

	err := v.VerifyPayment(context.Background(), "bk-123", validTxHash, 1)
	require.ErrorIs(t, err, ErrAmountMismatch)

	reasons := store.failedWith()
	require.Len(t, reasons, 1)
	assert.Contains(t, reasons[0], "Amount mismatch")
	assert.Contains(t, reasons[0], "300000000")
	assert.Contains(t, reasons[0], "299000000")
	assert.Empty(t, store.confirmed)
}

func TestVerifyPaymentNoMatchingTransfer(t *testing.T) {
	store := &fakeStore{booking: pendingBooking()}
	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(100),
		Logs: []*types.Log{
			transferLog(usdcMainnet, senderAddr, senderAddr, big.NewInt(300_000_000), 100),
		},
	}
	v := NewVerifier(store, testRegistry(t), &fakeReader{receipt: receipt}, &fakeNotifier{}, nil)

	err := v.VerifyPayment(context.Background(), "bk-123", validTxHash, 1)
	require.ErrorIs(t, err, ErrNoMatchingTransfer)
	require.Len(t, store.failedWith(), 1)
}

func TestVerifyPaymentRevertedTx(t *testing.T) {
	store := &fakeStore{booking: pendingBooking()}
	receipt := &types.Receipt{
		Status:      types.ReceiptStatusFailed,
		BlockNumber: big.NewInt(100),
		Logs: []*types.Log{
			transferLog(usdcMainnet, senderAddr, treasuryAddr, big.NewInt(300_000_000), 100),
		},
	}
	v := NewVerifier(store, testRegistry(t), &fakeReader{receipt: receipt}, &fakeNotifier{}, nil)

	err := v.VerifyPayment(context.Background(), "bk-123", validTxHash, 1)
	require.ErrorIs(t, err, ErrTxReverted)
	assert.Empty(t, store.confirmed)
}

func TestVerifyPaymentMalformedHash(t *testing.T) {
	store := &fakeStore{booking: pendingBooking()}
	v := NewVerifier(store, testRegistry(t), &fakeReader{}, &fakeNotifier{}, nil)

	err := v.VerifyPayment(context.Background(), "bk-123", "0x123", 1)
	require.ErrorIs(t, err, ErrMalformedTxHash)
	require.Len(t, store.failedWith(), 1)
}

func TestVerifyPaymentFractionalAmountScalesExactly(t *testing.T) {
	booking := pendingBooking()
	// 10.05 has no exact float64 representation; the decimal-string intent
	// must still scale to exactly 10050000 base units.
	booking.PaymentAmount = "10.05"
	store := &fakeStore{booking: booking}
	reader := &fakeReader{receipt: successReceipt(big.NewInt(10_050_000))}
	v := NewVerifier(store, testRegistry(t), reader, &fakeNotifier{}, nil)

	err := v.VerifyPayment(context.Background(), "bk-123", validTxHash, 1)
	require.NoError(t, err)
	require.Len(t, store.confirmed, 1)
	assert.Equal(t, "10050000", store.confirmed[0].AmountBaseUnits)
}

func TestVerifyPaymentUnparseableAmount(t *testing.T) {
	booking := pendingBooking()
	booking.PaymentAmount = "three hundred"
	store := &fakeStore{booking: booking}
	v := NewVerifier(store, testRegistry(t), &fakeReader{}, &fakeNotifier{}, nil)

	err := v.VerifyPayment(context.Background(), "bk-123", validTxHash, 1)
	require.ErrorIs(t, err, models.ErrMissingPaymentIntent)
	require.Len(t, store.failedWith(), 1)
}

func TestVerifyPaymentMissingIntent(t *testing.T) {
	booking := pendingBooking()
	booking.PaymentToken = ""
	booking.PaymentAmount = ""
	store := &fakeStore{booking: booking}
	v := NewVerifier(store, testRegistry(t), &fakeReader{}, &fakeNotifier{}, nil)

	err := v.VerifyPayment(context.Background(), "bk-123", validTxHash, 1)
	require.ErrorIs(t, err, models.ErrMissingPaymentIntent)
}

func TestVerifyPaymentUnsupportedChain(t *testing.T) {
	store := &fakeStore{booking: pendingBooking()}
	v := NewVerifier(store, testRegistry(t), &fakeReader{}, &fakeNotifier{}, nil)

	err := v.VerifyPayment(context.Background(), "bk-123", validTxHash, 999)
	require.ErrorIs(t, err, chain.ErrUnsupportedChain)
}

func TestVerifyPaymentTxNotFound(t *testing.T) {
	store := &fakeStore{booking: pendingBooking()}
	reader := &fakeReader{getTxErr: chain.ErrTxNotFound}
	notifier := &fakeNotifier{}
	v := NewVerifier(store, testRegistry(t), reader, notifier, nil)

	err := v.VerifyPayment(context.Background(), "bk-123", validTxHash, 1)
	require.ErrorIs(t, err, chain.ErrTxNotFound)
	require.Len(t, store.failedWith(), 1)

	require.Eventually(t, func() bool {
		_, failed, _ := notifier.counts()
		return failed == 1
	}, time.Second, 10*time.Millisecond)
}

func TestVerifyPaymentConfirmationTimeout(t *testing.T) {
	store := &fakeStore{booking: pendingBooking()}
	reader := &fakeReader{waitErr: chain.ErrConfirmationTimeout}
	v := NewVerifier(store, testRegistry(t), reader, &fakeNotifier{}, nil)

	err := v.VerifyPayment(context.Background(), "bk-123", validTxHash, 1)
	require.ErrorIs(t, err, chain.ErrConfirmationTimeout)
	require.Len(t, store.failedWith(), 1)
}

func TestVerifyPaymentLockHeld(t *testing.T) {
	store := &fakeStore{booking: pendingBooking()}
	locker := &fakeLocker{acquired: false}
	v := NewVerifier(store, testRegistry(t), &fakeReader{}, &fakeNotifier{}, locker)

	err := v.VerifyPayment(context.Background(), "bk-123", validTxHash, 1)
	require.ErrorIs(t, err, ErrVerificationRunning)
	assert.Empty(t, store.confirmed)
	assert.Empty(t, store.failedWith())
}

func TestVerifyPaymentLockErrorIsAdvisory(t *testing.T) {
	store := &fakeStore{booking: pendingBooking()}
	locker := &fakeLocker{err: errors.New("redis down")}
	reader := &fakeReader{receipt: successReceipt(big.NewInt(300_000_000))}
	v := NewVerifier(store, testRegistry(t), reader, &fakeNotifier{}, locker)

	err := v.VerifyPayment(context.Background(), "bk-123", validTxHash, 1)
	require.NoError(t, err)
	require.Len(t, store.confirmed, 1)
}

func TestVerifyPaymentConcurrentConfirmIsNoop(t *testing.T) {
	store := &fakeStore{booking: pendingBooking(), confirmErr: models.ErrStatusConflict}
	reader := &fakeReader{receipt: successReceipt(big.NewInt(300_000_000))}
	notifier := &fakeNotifier{}
	v := NewVerifier(store, testRegistry(t), reader, notifier, nil)

	err := v.VerifyPayment(context.Background(), "bk-123", validTxHash, 1)
	require.NoError(t, err)
	assert.Empty(t, store.failedWith())
}

func TestVerifyPaymentStoreFailureDoesNotMaskCause(t *testing.T) {
	store := &fakeStore{booking: pendingBooking(), failErr: errors.New("db down")}
	reader := &fakeReader{getTxErr: chain.ErrTxNotFound}
	v := NewVerifier(store, testRegistry(t), reader, &fakeNotifier{}, nil)

	err := v.VerifyPayment(context.Background(), "bk-123", validTxHash, 1)
	require.ErrorIs(t, err, chain.ErrTxNotFound)
}
