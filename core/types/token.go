package types

import "fmt"

// TokenKey is the composite identity of a stakeable asset. The upper 32 bits
// carry the collection identifier and the lower 32 bits the token identifier,
// so one flat map per entity can replace nested collection->token lookups.
type TokenKey uint64

// NewTokenKey packs a collection and token identifier into a single key.
func NewTokenKey(collection, token uint32) TokenKey {
	return TokenKey(uint64(collection)<<32 | uint64(token))
}

// Collection returns the collection identifier encoded in the key.
func (k TokenKey) Collection() uint32 { return uint32(uint64(k) >> 32) }

// Token returns the token identifier encoded in the key.
func (k TokenKey) Token() uint32 { return uint32(uint64(k) & 0xffffffff) }

// String renders the key as collection/token for logs and event attributes.
func (k TokenKey) String() string {
	return fmt.Sprintf("%d/%d", k.Collection(), k.Token())
}
