package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainSection      = "bpkit/section/v1"
	DomainStatement    = "bpkit/statement/v1"
	DomainConstitution = "bpkit/constitution/v1"
	DomainConfig       = "bpkit/config/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// HashCanonical hashes the canonical JSON form of v under domain.
func HashCanonical(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// SectionHash computes the content hash of a section body.
// Position in the document is excluded so that moving a section does not
// register as a content change; the label is included so that a relabel does.
func SectionHash(label Label, body string) string {
	// Strings and a Label never fail canonical marshaling.
	h, _ := HashCanonical(DomainSection, map[string]any{
		"label": string(label),
		"body":  NormalizeSpace(body),
	})
	return h
}

// StatementHash computes the content hash of a constitution statement.
// Only the reviewable text participates; ids and confidence do not.
func StatementHash(s Statement) string {
	h, _ := HashCanonical(DomainStatement, map[string]any{
		"kind":   string(s.Kind),
		"title":  s.Title,
		"text":   NormalizeSpace(s.Text),
		"source": string(s.Source),
	})
	return h
}

// ConstitutionHash computes the content hash of a rendered constitution.
func ConstitutionHash(c Constitution) (string, error) {
	return HashCanonical(DomainConstitution, c)
}

// MustConstitutionHash is like ConstitutionHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustConstitutionHash(c Constitution) string {
	h, err := ConstitutionHash(c)
	if err != nil {
		panic(err)
	}
	return h
}
