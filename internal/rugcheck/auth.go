// internal/rugcheck/auth.go
package rugcheck

import (
	"encoding/json"
	"fmt"
	"time"

	"kothwatch/internal/wallet"
)

// signInMessage is the challenge the auditor expects the wallet to
// sign. Field order matters: the signed bytes are the compact JSON
// encoding in exactly this order.
type signInMessage struct {
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	PublicKey string `json:"publicKey"`
}

type signaturePayload struct {
	Data []int  `json:"data"`
	Type string `json:"type"`
}

type loginRequest struct {
	Signature signaturePayload `json:"signature"`
	Wallet    string           `json:"wallet"`
	Message   signInMessage    `json:"message"`
}

type loginResponse struct {
	Token string `json:"token"`
}

const signInText = "Sign-in to Rugcheck.xyz"

// buildLoginRequest signs the challenge with the wallet key and wraps
// it in the login payload.
func buildLoginRequest(w *wallet.Wallet, now time.Time) (*loginRequest, error) {
	msg := signInMessage{
		Message:   signInText,
		Timestamp: now.UnixMilli(),
		PublicKey: w.PublicKey.String(),
	}
	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode sign-in message: %w", err)
	}

	sig, err := w.SignMessage(msgJSON)
	if err != nil {
		return nil, err
	}
	data := make([]int, len(sig))
	for i, b := range sig {
		data[i] = int(b)
	}

	return &loginRequest{
		Signature: signaturePayload{Data: data, Type: "ed25519"},
		Wallet:    w.PublicKey.String(),
		Message:   msg,
	}, nil
}
