package xrpl

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"xrpl-bond-tracker/internal/domain"
)

const couponMemoType = "coupon_payment"

// Submitter signs and submits coupon payments over an active session.
type Submitter struct {
	client *Client
	wallet *Wallet
}

// NewSubmitter builds a payment submitter for one signing wallet.
func NewSubmitter(client *Client, wallet *Wallet) *Submitter {
	return &Submitter{client: client, wallet: wallet}
}

// SubmitCouponPayment pays one coupon amount to a holder and returns the
// transaction hash. The amount is in base units of the instrument's asset.
func (s *Submitter) SubmitCouponPayment(ctx context.Context, inst *domain.Instrument, destination string, amount *big.Int) (string, error) {
	if !IsValidAddress(destination) {
		return "", fmt.Errorf("invalid destination address %q", destination)
	}
	if amount == nil || amount.Sign() <= 0 {
		return "", fmt.Errorf("non-positive coupon amount")
	}

	payment := map[string]any{
		"TransactionType": "Payment",
		"Account":         s.wallet.Address,
		"Destination":     destination,
		"Amount": map[string]any{
			"currency": "USD",
			"value":    FormatAmount(amount, inst.AssetScale),
			"issuer":   s.wallet.Address,
		},
		"Memos": []map[string]any{{
			"Memo": map[string]any{
				"MemoType": hexUpper(couponMemoType),
				"MemoData": hexUpper("Bond: " + inst.TokenName),
			},
		}},
	}

	blob, err := s.signedBlob(payment)
	if err != nil {
		return "", fmt.Errorf("sign coupon payment: %w", err)
	}

	result, err := s.client.Submit(ctx, blob)
	if err != nil {
		return "", fmt.Errorf("submit coupon payment: %w", err)
	}
	if !result.Accepted() {
		return "", fmt.Errorf("coupon payment rejected: %s", result.EngineResult)
	}
	return result.TxHash, nil
}

// signedBlob attaches the signature fields and hex-encodes the payload.
func (s *Submitter) signedBlob(payment map[string]any) (string, error) {
	signingPayload, err := json.Marshal(payment)
	if err != nil {
		return "", err
	}

	payment["SigningPubKey"] = s.wallet.PublicKeyHex()
	payment["TxnSignature"] = s.wallet.Sign(signingPayload)

	signed, err := json.Marshal(payment)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(signed)), nil
}

// FormatAmount renders a base-unit amount as a decimal string at the
// given asset scale, with trailing zeros trimmed.
func FormatAmount(amount *big.Int, assetScale int) string {
	if assetScale <= 0 {
		return amount.String()
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(assetScale)), nil)
	whole, frac := new(big.Int).QuoRem(amount, scale, new(big.Int))

	neg := false
	if frac.Sign() < 0 {
		frac.Neg(frac)
		neg = amount.Sign() < 0 && whole.Sign() == 0
	}

	fracStr := frac.String()
	if len(fracStr) < assetScale {
		fracStr = strings.Repeat("0", assetScale-len(fracStr)) + fracStr
	}
	fracStr = strings.TrimRight(fracStr, "0")
	out := whole.String()
	if neg {
		out = "-" + out
	}
	if fracStr != "" {
		out += "." + fracStr
	}
	return out
}

func hexUpper(s string) string {
	return strings.ToUpper(hex.EncodeToString([]byte(s)))
}

// DialingSubmitter opens a short-lived session per payment. The
// distribution schedule is sparse, so paying the dial cost keeps the
// submitter independent of the monitor's session lifecycle.
type DialingSubmitter struct {
	endpoint string
	config   *ClientConfig
	wallet   *Wallet
}

// NewDialingSubmitter builds a submitter that dials on demand.
func NewDialingSubmitter(endpoint string, config *ClientConfig, wallet *Wallet) *DialingSubmitter {
	return &DialingSubmitter{endpoint: endpoint, config: config, wallet: wallet}
}

// SubmitCouponPayment dials, submits one payment, and closes the session.
func (s *DialingSubmitter) SubmitCouponPayment(ctx context.Context, inst *domain.Instrument, destination string, amount *big.Int) (string, error) {
	client, err := Dial(ctx, s.endpoint, s.config)
	if err != nil {
		return "", fmt.Errorf("dial for coupon payment: %w", err)
	}
	defer client.Close()

	return NewSubmitter(client, s.wallet).SubmitCouponPayment(ctx, inst, destination, amount)
}
