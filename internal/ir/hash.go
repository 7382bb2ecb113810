package ir

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainCallsite = "filibuster/callsite/v1"
	DomainChain    = "filibuster/chain/v1"
	DomainPayload  = "filibuster/payload/v1"
	DomainRecord   = "filibuster/record/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SegmentDigest computes the 40-hex-character digest used for one segment
// of an execution index chain value. Segments travel in request headers at
// every depth of the call tree, so the shorter SHA-1 width is used here.
//
// Format: SHA1(domain + 0x00 + part[0] + 0x00 + part[1] ...)
func SegmentDigest(domain string, parts ...string) string {
	h := sha1.New()
	h.Write([]byte(domain))
	for _, p := range parts {
		h.Write([]byte{0x00})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Digest computes a domain-separated SHA-256 over the canonical JSON of v.
// Returns error if v cannot be canonically marshaled.
func Digest(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// ArgumentFingerprint digests argument values into the fingerprint carried
// by a callsite. Arguments are hashed in order.
func ArgumentFingerprint(args ...string) string {
	arr := make(IRArray, len(args))
	for i, a := range args {
		arr[i] = IRString(a)
	}
	// An IRArray of strings always marshals.
	canonical, _ := MarshalCanonical(arr)
	return hashWithDomain(DomainCallsite, canonical)
}

// PayloadDigest computes the content hash of a payload.
func PayloadDigest(p Payload) string {
	canonical, _ := MarshalCanonical(p.toIR())
	return hashWithDomain(DomainPayload, canonical)
}
