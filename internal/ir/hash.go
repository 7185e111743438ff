package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
)

// Domain prefixes for content-addressed identity. The version suffix
// allows future algorithm migration without colliding with old hashes.
const (
	DomainInvocation = "weft/invocation/v1"
	DomainBinding    = "weft/binding/v1"
	DomainFiring     = "weft/firing/v1"
)

// hashWithDomain computes SHA-256 with domain separation. The null byte
// separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// InvocationID computes the content-addressed ID for an invocation.
// Stable across replays given the same flow, action, input and seq.
func InvocationID(flow, concept, action string, input Object, seq int64) (string, error) {
	obj := Object{
		"flow":    String(flow),
		"concept": String(concept),
		"action":  String(action),
		"input":   input,
		"seq":     Int(seq),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("invocation id: %w", err)
	}
	return hashWithDomain(DomainInvocation, canonical), nil
}

// BindingHash computes the hash of a binding environment, used in
// firing keys and trace output.
func BindingHash(env Object) (string, error) {
	canonical, err := MarshalCanonical(env)
	if err != nil {
		return "", fmt.Errorf("binding hash: %w", err)
	}
	return hashWithDomain(DomainBinding, canonical), nil
}

// FiringKey identifies one (sync, binding) firing within a flow. The
// binding is keyed by the multiset of completion IDs that satisfied the
// sync's when patterns, so re-evaluating on a later completion cannot
// re-fire a binding already fired.
func FiringKey(syncName string, completionIDs []string) string {
	ids := slices.Clone(completionIDs)
	slices.Sort(ids)
	data := make([]byte, 0, 64)
	data = append(data, syncName...)
	for _, id := range ids {
		data = append(data, 0x00)
		data = append(data, id...)
	}
	return hashWithDomain(DomainFiring, data)
}

// MustInvocationID is InvocationID panicking on error. Test helper.
func MustInvocationID(flow, concept, action string, input Object, seq int64) string {
	id, err := InvocationID(flow, concept, action, input, seq)
	if err != nil {
		panic(err)
	}
	return id
}

// MustBindingHash is BindingHash panicking on error. Test helper.
func MustBindingHash(env Object) string {
	h, err := BindingHash(env)
	if err != nil {
		panic(err)
	}
	return h
}
