package rpc

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"hivestake/core/types"
)

// tokenParam identifies one staked asset.
type tokenParam struct {
	Collection uint32 `json:"collection"`
	Token      uint32 `json:"token"`
}

func (p tokenParam) key() types.TokenKey {
	return types.NewTokenKey(p.Collection, p.Token)
}

func tokenOf(key types.TokenKey) tokenParam {
	return tokenParam{Collection: key.Collection(), Token: key.Token()}
}

// decodeAddress parses a 20-byte hex address with an optional 0x prefix.
func decodeAddress(raw string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if trimmed == "" {
		return addr, fmt.Errorf("address required")
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil || len(decoded) != 20 {
		return addr, fmt.Errorf("invalid address %q", raw)
	}
	copy(addr[:], decoded)
	return addr, nil
}

func encodeAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

// parseAmount parses a positive decimal amount string.
func parseAmount(amount string) (*big.Int, error) {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return nil, fmt.Errorf("amount is required")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount")
	}
	if value.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return value, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// unmarshalSingle decodes the single expected parameter object.
func unmarshalSingle(params []json.RawMessage, out interface{}) error {
	if len(params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	if err := json.Unmarshal(params[0], out); err != nil {
		return fmt.Errorf("invalid parameter object: %v", err)
	}
	return nil
}
