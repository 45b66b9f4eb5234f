package domain_test

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
)

var (
	preimage    = hex.EncodeToString([]byte("the quick brown fox jumps over.."))
	paymentHash = func() string {
		buf, _ := hex.DecodeString(preimage)
		h := sha256.Sum256(buf)
		return hex.EncodeToString(h[:])
	}()
)

func TestVerifyPreimage(t *testing.T) {
	require.True(t, domain.VerifyPreimage(paymentHash, preimage))
	require.False(t, domain.VerifyPreimage(paymentHash, hex.EncodeToString([]byte("wrong"))))
	require.False(t, domain.VerifyPreimage(paymentHash, ""))
	require.False(t, domain.VerifyPreimage("not hex", preimage))

	hash, err := domain.HashPreimage(preimage)
	require.NoError(t, err)
	require.Equal(t, paymentHash, hash)
}

func TestSellTransactionLifecycle(t *testing.T) {
	t.Parallel()

	tx := &domain.SellTransaction{
		Status:             domain.TxStatusInitial,
		SellerFiatAmount:   100,
		SellerCryptoAmount: 1010,
	}

	require.ErrorIs(t, tx.Lock(), domain.ErrInvalidTransition)

	require.NoError(t, tx.Start(101, paymentHash))
	require.Equal(t, domain.TxStatusStarted, tx.Status)
	require.Equal(t, int64(101), tx.SellerFiatAmount)
	require.Equal(t, paymentHash, tx.PaymentHash)

	require.NoError(t, tx.Lock())
	require.Equal(t, domain.TxStatusLocked, tx.Status)

	require.ErrorIs(
		t, tx.ReceivePreimage(hex.EncodeToString([]byte("wrong")), 1005),
		domain.ErrPreimageMismatch,
	)
	require.Equal(t, domain.TxStatusLocked, tx.Status)

	require.NoError(t, tx.ReceivePreimage(preimage, 1005))
	require.Equal(t, domain.TxStatusReceivedPreimage, tx.Status)
	require.Equal(t, int64(1005), tx.SellerCryptoAmount)

	require.ErrorIs(t, tx.Cancel(), domain.ErrInvalidTransition)

	require.NoError(t, tx.Finish())
	require.Equal(t, domain.TxStatusFinished, tx.Status)
	require.True(t, tx.Status.IsTerminal())
}

func TestSellTransactionCancel(t *testing.T) {
	t.Parallel()

	for _, status := range []domain.TransactionStatus{
		domain.TxStatusInitial, domain.TxStatusStarted, domain.TxStatusLocked,
	} {
		tx := &domain.SellTransaction{Status: status}
		require.NoError(t, tx.Cancel())
		require.Equal(t, domain.TxStatusCanceled, tx.Status)
	}

	tx := &domain.SellTransaction{Status: domain.TxStatusFinished}
	require.ErrorIs(t, tx.Cancel(), domain.ErrInvalidTransition)
}

func TestBuyTransactionLifecycle(t *testing.T) {
	t.Parallel()

	tx := &domain.BuyTransaction{
		Status:      domain.TxStatusInitial,
		PaymentHash: paymentHash,
	}
	require.ErrorIs(
		t, tx.Finish(hex.EncodeToString([]byte("wrong"))), domain.ErrPreimageMismatch,
	)
	require.NoError(t, tx.Finish(preimage))
	require.Equal(t, domain.TxStatusFinished, tx.Status)
	require.Equal(t, preimage, tx.PaymentPreimage)
	require.ErrorIs(t, tx.Cancel(), domain.ErrInvalidTransition)

	tx = &domain.BuyTransaction{Status: domain.TxStatusInitial}
	require.NoError(t, tx.Cancel())
	require.Equal(t, domain.TxStatusCanceled, tx.Status)
	require.ErrorIs(t, tx.Finish(preimage), domain.ErrInvalidTransition)
}

func TestSettingsValidate(t *testing.T) {
	s := domain.DefaultSettings()
	require.NoError(t, s.Validate())

	s.RateDivisor = 0
	require.ErrorIs(t, s.Validate(), domain.ErrInvalidSettings)

	s = domain.DefaultSettings()
	s.SellConditions = domain.Conditions{domain.ConditionLockedTimeout: {10, 0}}
	require.ErrorIs(t, s.Validate(), domain.ErrInvalidSettings)
}

func TestDefaultConfig(t *testing.T) {
	cfg := domain.DefaultConfig()
	require.Len(t, cfg, 3)
	cfg[domain.ConfigExchangeURL] = "changed"

	v, ok := domain.DefaultConfigValue(domain.ConfigExchangeURL)
	require.True(t, ok)
	require.NotEqual(t, "changed", v)

	_, ok = domain.DefaultConfigValue("unknown")
	require.False(t, ok)
}
