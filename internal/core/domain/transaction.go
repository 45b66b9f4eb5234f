package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
)

type TransactionStatus int

const (
	TxStatusInitial TransactionStatus = iota
	TxStatusStarted
	TxStatusLocked
	TxStatusReceivedPreimage
	TxStatusFinished
	TxStatusCanceled
)

func (s TransactionStatus) String() string {
	switch s {
	case TxStatusInitial:
		return "initial"
	case TxStatusStarted:
		return "started"
	case TxStatusLocked:
		return "locked"
	case TxStatusReceivedPreimage:
		return "received_preimage"
	case TxStatusFinished:
		return "finished"
	case TxStatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// IsTerminal tells whether no further status change is possible.
func (s TransactionStatus) IsTerminal() bool {
	return s == TxStatusFinished || s == TxStatusCanceled
}

// BuyTransaction is a single fill of a buy order: we receive crypto over
// lightning and send fiat through the exchange. Amounts are in base units,
// hash and preimage are hex encoded.
type BuyTransaction struct {
	ID              int64
	BuyOrderID      int64
	Status          TransactionStatus
	FiatAmount      int64
	CryptoAmount    int64
	PaymentHash     string
	PaymentPreimage string
}

// Finish records the preimage revealed by the exchange for the payment.
func (t *BuyTransaction) Finish(preimage string) error {
	if t.Status != TxStatusInitial {
		return ErrInvalidTransition
	}
	if !VerifyPreimage(t.PaymentHash, preimage) {
		return ErrPreimageMismatch
	}
	t.PaymentPreimage = preimage
	t.Status = TxStatusFinished
	return nil
}

func (t *BuyTransaction) Cancel() error {
	if t.Status != TxStatusInitial {
		return ErrInvalidTransition
	}
	t.Status = TxStatusCanceled
	return nil
}

// SellTransaction is a single fill of a sell order: we pay crypto over
// lightning and receive fiat through the exchange.
//
// SellerFiatAmount is the minimum fiat we accept before the exchange
// reservation is made and the actual amount afterwards. SellerCryptoAmount
// is the maximum we spend before the payment and the actual amount after it.
type SellTransaction struct {
	ID                 int64
	SellOrderID        int64
	CounterOfferID     int64
	Status             TransactionStatus
	BuyerFiatAmount    int64
	SellerFiatAmount   int64
	BuyerCryptoAmount  int64
	SellerCryptoAmount int64
	SenderTimeoutDelta int64
	LockedTimeoutDelta int64
	CltvExpiryDelta    int64
	PaymentHash        string
	PaymentPreimage    string
}

// Start records the outcome of the exchange reservation.
func (t *SellTransaction) Start(sellerFiatAmount int64, paymentHash string) error {
	if t.Status != TxStatusInitial {
		return ErrInvalidTransition
	}
	t.SellerFiatAmount = sellerFiatAmount
	t.PaymentHash = paymentHash
	t.Status = TxStatusStarted
	return nil
}

// Lock marks the exchange funds as locked on the buyer's side.
func (t *SellTransaction) Lock() error {
	if t.Status != TxStatusStarted {
		return ErrInvalidTransition
	}
	t.Status = TxStatusLocked
	return nil
}

// ReceivePreimage records a successful lightning payment.
func (t *SellTransaction) ReceivePreimage(preimage string, sellerCryptoAmount int64) error {
	if t.Status != TxStatusLocked {
		return ErrInvalidTransition
	}
	if !VerifyPreimage(t.PaymentHash, preimage) {
		return ErrPreimageMismatch
	}
	t.PaymentPreimage = preimage
	t.SellerCryptoAmount = sellerCryptoAmount
	t.Status = TxStatusReceivedPreimage
	return nil
}

// Finish marks the fiat funds as received.
func (t *SellTransaction) Finish() error {
	if t.Status != TxStatusReceivedPreimage {
		return ErrInvalidTransition
	}
	t.Status = TxStatusFinished
	return nil
}

// Cancel aborts the transaction. Once the preimage is known the transaction
// can only be finished.
func (t *SellTransaction) Cancel() error {
	switch t.Status {
	case TxStatusInitial, TxStatusStarted, TxStatusLocked:
		t.Status = TxStatusCanceled
		return nil
	default:
		return ErrInvalidTransition
	}
}

// CounterOffer is the snapshot of a remote offer a sell transaction was
// created against.
type CounterOffer struct {
	ID    int64
	Offer Offer
}

// HashPreimage returns the hex encoded sha256 of the hex encoded preimage.
func HashPreimage(preimage string) (string, error) {
	buf, err := hex.DecodeString(preimage)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(buf)
	return hex.EncodeToString(hash[:]), nil
}

// VerifyPreimage tells whether sha256(preimage) equals paymentHash.
func VerifyPreimage(paymentHash, preimage string) bool {
	hash, err := hex.DecodeString(paymentHash)
	if err != nil || len(hash) != sha256.Size {
		return false
	}
	buf, err := hex.DecodeString(preimage)
	if err != nil || len(buf) <= 0 {
		return false
	}
	h := sha256.Sum256(buf)
	return bytes.Equal(h[:], hash)
}
