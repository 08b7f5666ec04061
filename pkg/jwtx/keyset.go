package jwtx

import (
	"sync"
)

// KeySet holds verification keys by kid. The current signer's key is always
// present; keys from retired signers can be added so tokens they minted stay
// valid until they expire.
type KeySet struct {
	mu   sync.RWMutex
	keys map[string]entry
}

type entry struct {
	alg string
	key any
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{keys: make(map[string]entry)}
}

// AddSigner registers the verification key of s.
func (k *KeySet) AddSigner(s Signer) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[s.KID()] = entry{alg: s.Alg(), key: s.VerificationKey()}
}

// Get returns the algorithm and key registered for kid.
func (k *KeySet) Get(kid string) (string, any, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, ok := k.keys[kid]
	if !ok {
		return "", nil, ErrUnknownKID
	}
	return e.alg, e.key, nil
}

// Algs lists the distinct algorithms present in the set.
func (k *KeySet) Algs() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	seen := make(map[string]bool, len(k.keys))
	out := make([]string, 0, len(k.keys))
	for _, e := range k.keys {
		if !seen[e.alg] {
			seen[e.alg] = true
			out = append(out, e.alg)
		}
	}
	return out
}
