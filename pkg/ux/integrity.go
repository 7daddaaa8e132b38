// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides user experience components for the Solforge CLI.
//
// This file defines integrity verification types for hash chain validation.
// The hash chain provides tamper-evident logging for streamed translation
// runs.
//
// Hash Chain Design:
//
//	Each RunEnvelope has a Hash computed from its hashed fields and a
//	PrevHash linking to the previous envelope. This creates a chain
//	similar to blockchain:
//
//	Envelope[0] → Envelope[1] → Envelope[2] → ... → Envelope[N]
//	   Hash₀        Hash₁         Hash₂              HashN
//	     ↑            ↑             ↑                  ↑
//	     └────────────┴─────────────┴──────────────────┘
//	          Each PrevHash links to previous Hash
//
// If any envelope is modified in transit or at rest, its recomputed hash
// changes, breaking the chain.
package ux

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// secureHashEqual performs constant-time comparison of two hash strings.
// This prevents timing attacks where an attacker could determine how many
// leading characters of a hash are correct by measuring response times.
func secureHashEqual(a, b string) bool {
	// subtle.ConstantTimeCompare returns 1 if equal, 0 if not
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// =============================================================================
// Interfaces
// =============================================================================

// -----------------------------------------------------------------------------
// Enterprise Extension Points
// -----------------------------------------------------------------------------
//
// The following interfaces are designed for enterprise deployments requiring
// enhanced provenance and compliance capabilities. Implementations are NOT
// included in the open-source release.
//
// Extension interfaces:
//   - KeyedHashComputer: HMAC-based attestation with key management
//   - TimestampAuthority: RFC 3161 trusted timestamping of artifacts
//
// To implement enterprise features, create implementations of these
// interfaces and inject them via constructor functions.
// -----------------------------------------------------------------------------

// KeyedHashComputer computes keyed hashes (HMAC) for artifact attestation.
//
// # Description
//
// Enterprise extension for HMAC-based verification. Unlike simple SHA-256,
// HMAC requires a secret key, providing authentication in addition to
// integrity verification of generated contracts and scaffolds.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type KeyedHashComputer interface {
	// ComputeHMAC computes a keyed hash for artifact content.
	//
	// # Inputs
	//
	//   - keyID: Identifier for the key to use (for key rotation)
	//   - content: Artifact content to hash
	//
	// # Outputs
	//
	//   - string: Hex-encoded HMAC
	//   - error: Non-nil if key not found or HSM unavailable
	ComputeHMAC(keyID string, content string) (string, error)

	// VerifyHMAC verifies a keyed hash.
	//
	// # Inputs
	//
	//   - keyID: Identifier for the key used
	//   - content: Original artifact content
	//   - expectedHMAC: HMAC to verify against
	//
	// # Outputs
	//
	//   - bool: True if HMAC matches
	//   - error: Non-nil if verification could not be performed
	VerifyHMAC(keyID string, content string, expectedHMAC string) (bool, error)
}

// TimestampAuthority obtains trusted timestamps for artifact hashes.
//
// # Description
//
// Enterprise extension for RFC 3161 trusted timestamping. A timestamp
// token proves a generated contract existed at a point in time, which
// matters for deployment provenance disputes.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type TimestampAuthority interface {
	// Timestamp obtains a trusted timestamp token for a hash.
	//
	// # Inputs
	//
	//   - hash: Hex-encoded hash to timestamp
	//
	// # Outputs
	//
	//   - *TimestampToken: The issued token
	//   - error: Non-nil if the authority is unreachable
	Timestamp(hash string) (*TimestampToken, error)
}

// TimestampToken is an RFC 3161 timestamp token for an artifact hash.
type TimestampToken struct {
	// Hash is the hex-encoded hash that was timestamped.
	Hash string `json:"hash"`

	// IssuedAt is the authority's timestamp (Unix milliseconds).
	IssuedAt int64 `json:"issued_at"`

	// Authority identifies the issuing timestamp authority.
	Authority string `json:"authority"`

	// Token is the raw DER-encoded token.
	Token []byte `json:"token"`
}

// ChainVerifier verifies the integrity of an envelope chain.
//
// # Description
//
// Abstracts the verification of envelope chains, allowing different
// verification strategies (full recompute vs none for trusted transports).
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type ChainVerifier interface {
	// Verify checks the integrity of a sequence of run envelopes.
	//
	// # Description
	//
	// Verifies that the hash chain is unbroken and valid.
	//
	// # Inputs
	//
	//   - envelopes: Ordered list of envelopes from the stream
	//
	// # Outputs
	//
	//   - *ChainVerificationResult: Detailed verification results
	//
	// # Examples
	//
	//   verifier := NewFullChainVerifier()
	//   result := verifier.Verify(envelopes)
	//   if !result.Valid {
	//       log.Warn("chain broken", "error", result.ErrorMessage)
	//   }
	//
	// # Assumptions
	//
	//   - Envelopes are in arrival order
	//   - First envelope has empty PrevHash
	Verify(envelopes []RunEnvelope) *ChainVerificationResult
}

// HashComputer computes cryptographic hashes.
//
// # Description
//
// Abstracts hash computation for testability and algorithm flexibility.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type HashComputer interface {
	// ComputeEnvelopeHash computes the hash for a run envelope.
	//
	// # Description
	//
	// Computes the hash over the envelope's hashed fields:
	//
	//	SHA256(Id|Type|CreatedAt|PrevHash|RunID|Message|Error|eventJSON)
	//
	// where eventJSON is the canonical JSON of the wrapped event, or
	// empty when the envelope carries none. The format matches the
	// service's computation byte for byte; any divergence makes every
	// received chain appear tampered.
	//
	// # Inputs
	//
	//   - env: The envelope to hash. Hash itself is not an input.
	//
	// # Outputs
	//
	//   - string: 64-character lowercase hex hash
	//
	// # Assumptions
	//
	//   - env is non-nil
	ComputeEnvelopeHash(env *RunEnvelope) string

	// ComputeContentHash computes a simple hash of content.
	//
	// # Description
	//
	// Computes the SHA-256 hash of the provided content string. Used for
	// artifact fingerprints (contract source, scaffold code).
	//
	// # Inputs
	//
	//   - content: The content to hash
	//
	// # Outputs
	//
	//   - string: 64-character lowercase hex hash
	//
	// # Limitations
	//
	//   - Empty content produces a valid hash
	ComputeContentHash(content string) string
}

// =============================================================================
// Structs
// =============================================================================

// IntegrityInfo contains hash chain and integrity verification information.
//
// # Description
//
// Surfaces the cryptographic integrity features to users, showing them
// that the streamed run is protected by a hash chain. This builds trust
// and enables verification of the artifacts a run produced.
//
// The hash chain works like a blockchain:
//   - Each RunEnvelope has a SHA-256 Hash over its hashed fields
//   - Each envelope's PrevHash links to the previous envelope
//   - The ChainHash is the final hash of the entire stream
//   - Any tampering breaks the chain (hash mismatch)
//
// # Fields
//
//   - ChainHash: Final hash of the streamed chain (64-char hex)
//   - ContentHash: SHA-256 of the final contract source, when available
//   - ArtifactHashes: Content hash of each downloaded artifact by name
//   - ChainLength: Number of envelopes in the chain
//   - IntegrityVerified: Whether verification passed
//   - VerificationError: Details if verification failed
//   - VerifiedAt: When verification was performed (Unix ms)
//
// # Privacy
//
// Hashes are safe to display - they cannot be reversed to reveal content.
// They serve as fingerprints that prove content hasn't been modified.
//
// # Thread Safety
//
// IntegrityInfo is NOT thread-safe. Use external synchronization if
// modifying from multiple goroutines.
type IntegrityInfo struct {
	ChainHash         string            `json:"chain_hash"`
	ContentHash       string            `json:"content_hash,omitempty"`
	ArtifactHashes    map[string]string `json:"artifact_hashes,omitempty"`
	ChainLength       int               `json:"chain_length"`
	IntegrityVerified bool              `json:"integrity_verified"`
	VerificationError string            `json:"verification_error,omitempty"`
	VerifiedAt        int64             `json:"verified_at,omitempty"`
}

// ChainVerificationResult contains detailed results from chain verification.
//
// # Description
//
// Returned by ChainVerifier.Verify to provide detailed information about
// the verification process, including where any failures occurred.
//
// # Fields
//
//   - Valid: Whether the entire chain is valid
//   - ChainLength: Number of envelopes verified
//   - FinalHash: The hash of the last envelope in the chain
//   - InvalidEnvelopeIndex: Index of first invalid envelope (-1 if all valid)
//   - ExpectedHash: What the hash should have been (if invalid)
//   - ActualHash: What the hash actually was (if invalid)
//   - ErrorMessage: Human-readable error description
//
// # Thread Safety
//
// Immutable after creation. Safe for concurrent read access.
type ChainVerificationResult struct {
	Valid                bool   `json:"valid"`
	ChainLength          int    `json:"chain_length"`
	FinalHash            string `json:"final_hash,omitempty"`
	InvalidEnvelopeIndex int    `json:"invalid_envelope_index"`
	ExpectedHash         string `json:"expected_hash,omitempty"`
	ActualHash           string `json:"actual_hash,omitempty"`
	ErrorMessage         string `json:"error_message,omitempty"`
}

// fullChainVerifier verifies chains by recomputing all hashes.
//
// # Description
//
// Complete verification that recomputes each envelope's hash from its
// fields and verifies both hash correctness and chain links.
//
// # Thread Safety
//
// Thread-safe if hashComputer is thread-safe.
type fullChainVerifier struct {
	hashComputer HashComputer
}

// noopChainVerifier accepts any chain without inspection.
//
// Used when verification is disabled (--no-verify) or the transport is
// already trusted end to end.
type noopChainVerifier struct{}

// sha256HashComputer computes hashes using SHA-256.
//
// # Description
//
// Production implementation of HashComputer using SHA-256.
//
// # Thread Safety
//
// Thread-safe. No shared state.
type sha256HashComputer struct{}

// =============================================================================
// Constructor Functions
// =============================================================================

// NewIntegrityInfo creates an IntegrityInfo from a consumed stream.
//
// # Description
//
// Extracts hash chain information from a completed stream result. This is
// the primary way to create IntegrityInfo after streaming when the chain
// verdict is already known.
//
// # Inputs
//
//   - result: The completed RunStreamResult containing hash chain data
//   - verified: Whether the chain has been verified
//
// # Outputs
//
//   - *IntegrityInfo: Populated integrity information
//
// # Limitations
//
//   - ArtifactHashes is not populated by this function; callers add
//     entries as artifacts are downloaded
func NewIntegrityInfo(result *RunStreamResult, verified bool) *IntegrityInfo {
	return &IntegrityInfo{
		ChainHash:         result.ChainHash,
		ChainLength:       result.TotalEnvelopes,
		IntegrityVerified: verified,
		VerifiedAt:        time.Now().UnixMilli(),
		ArtifactHashes:    make(map[string]string),
	}
}

// NewIntegrityInfoFromVerification creates IntegrityInfo from a
// verification result.
//
// # Description
//
// Creates an IntegrityInfo with verification results populated. Use after
// calling Verify on a ChainVerifier.
//
// # Inputs
//
//   - verification: Result from ChainVerifier.Verify
//
// # Outputs
//
//   - *IntegrityInfo: Populated with verification results
//
// # Examples
//
//	verifier := NewFullChainVerifier()
//	verification := verifier.Verify(envelopes)
//	info := NewIntegrityInfoFromVerification(verification)
func NewIntegrityInfoFromVerification(verification *ChainVerificationResult) *IntegrityInfo {
	return &IntegrityInfo{
		ChainHash:         verification.FinalHash,
		ChainLength:       verification.ChainLength,
		IntegrityVerified: verification.Valid,
		VerificationError: verification.ErrorMessage,
		VerifiedAt:        time.Now().UnixMilli(),
		ArtifactHashes:    make(map[string]string),
	}
}

// NewFullChainVerifier creates a verifier that recomputes all hashes.
//
// # Description
//
// Creates a comprehensive verifier that recomputes each envelope's hash
// and verifies both hash correctness and chain links.
//
// # Examples
//
//	verifier := NewFullChainVerifier()
//	result := verifier.Verify(envelopes)
//
// # Limitations
//
//   - O(n) hash computations over the full stream
func NewFullChainVerifier() ChainVerifier {
	return &fullChainVerifier{
		hashComputer: NewSHA256HashComputer(),
	}
}

// NewNoopChainVerifier creates a verifier that accepts any chain.
func NewNoopChainVerifier() ChainVerifier {
	return &noopChainVerifier{}
}

// NewSHA256HashComputer creates a hash computer using SHA-256.
func NewSHA256HashComputer() HashComputer {
	return &sha256HashComputer{}
}

// =============================================================================
// IntegrityInfo Methods
// =============================================================================

// AddArtifactHash computes and stores the content hash for a downloaded
// artifact.
//
// # Description
//
// Fingerprints one artifact (contract source, audit report, scaffold) so
// a saved copy can later be checked against what the run produced.
//
// # Inputs
//
//   - name: The artifact name ("contract_final.sol", "audit.json", ...)
//   - content: The artifact content as downloaded
//
// # Limitations
//
//   - Overwrites an existing hash for the same artifact name
//
// # Assumptions
//
//   - ArtifactHashes map is initialized
func (i *IntegrityInfo) AddArtifactHash(name, content string) {
	computer := NewSHA256HashComputer()
	i.ArtifactHashes[name] = computer.ComputeContentHash(content)
}

// GetArtifactHash returns the stored hash for an artifact.
//
// # Inputs
//
//   - name: The artifact name
//
// # Outputs
//
//   - string: The artifact hash, or empty string if not found
//   - bool: True if the artifact hash exists
func (i *IntegrityInfo) GetArtifactHash(name string) (string, bool) {
	hash, ok := i.ArtifactHashes[name]
	return hash, ok
}

// FormatForDisplay returns a formatted string for UI display.
//
// # Description
//
// Creates a human-readable summary of the integrity information suitable
// for display after a streamed run.
//
// # Examples
//
//	info := &IntegrityInfo{ChainLength: 16, IntegrityVerified: true}
//	fmt.Println(info.FormatForDisplay())
//	// "✓ Verified | Chain: 16 envelopes | Hash: a3f2c8d9...a9b0"
//
// # Limitations
//
//   - Hash is truncated for display
func (i *IntegrityInfo) FormatForDisplay() string {
	status := "✓ Verified"
	if !i.IntegrityVerified {
		status = "✗ FAILED"
	}

	hashDisplay := truncateHash(i.ChainHash)
	if i.ChainHash == "" {
		hashDisplay = "N/A"
	}

	return fmt.Sprintf("%s | Chain: %d envelopes | Hash: %s",
		status, i.ChainLength, hashDisplay)
}

// =============================================================================
// fullChainVerifier Methods
// =============================================================================

// Verify fully verifies the chain by recomputing all hashes.
//
// # Description
//
// Performs complete verification by:
//  1. Checking the first envelope has an empty PrevHash
//  2. Verifying each envelope's PrevHash matches the previous Hash
//  3. Recomputing each envelope's hash from its fields
//  4. Verifying the computed hash matches the stored Hash
//
// An empty chain is valid.
//
// # Inputs
//
//   - envelopes: Ordered list of envelopes from the stream
//
// # Outputs
//
//   - *ChainVerificationResult: Detailed verification results
//
// # Examples
//
//	verifier := NewFullChainVerifier()
//	result := verifier.Verify(streamResult.Envelopes)
//	if !result.Valid {
//	    log.Warn("tampering detected", "error", result.ErrorMessage)
//	}
//
// # Limitations
//
//   - Computationally expensive for large streams
//
// # Assumptions
//
//   - Envelopes are in arrival order
func (v *fullChainVerifier) Verify(envelopes []RunEnvelope) *ChainVerificationResult {
	result := &ChainVerificationResult{
		Valid:                true,
		ChainLength:          len(envelopes),
		InvalidEnvelopeIndex: -1,
	}

	if len(envelopes) == 0 {
		return result
	}

	// First envelope should have empty PrevHash
	if envelopes[0].PrevHash != "" {
		result.Valid = false
		result.InvalidEnvelopeIndex = 0
		result.ExpectedHash = ""
		result.ActualHash = envelopes[0].PrevHash
		result.ErrorMessage = "first envelope should have empty PrevHash"
		return result
	}

	// Walk the chain verifying both hash computation and chain links
	prevHash := ""
	for i := range envelopes {
		env := &envelopes[i]

		// Verify PrevHash links correctly (constant-time comparison to
		// prevent timing attacks)
		if !secureHashEqual(env.PrevHash, prevHash) {
			result.Valid = false
			result.InvalidEnvelopeIndex = i
			result.ExpectedHash = prevHash
			result.ActualHash = env.PrevHash
			result.ErrorMessage = fmt.Sprintf(
				"chain broken at envelope %d: expected PrevHash %s, got %s",
				i, truncateHash(prevHash), truncateHash(env.PrevHash),
			)
			return result
		}

		// Recompute hash from the envelope fields
		computedHash := v.hashComputer.ComputeEnvelopeHash(env)
		// Constant-time comparison to prevent timing attacks
		if !secureHashEqual(computedHash, env.Hash) {
			result.Valid = false
			result.InvalidEnvelopeIndex = i
			result.ExpectedHash = computedHash
			result.ActualHash = env.Hash
			result.ErrorMessage = fmt.Sprintf(
				"hash mismatch at envelope %d: computed %s, stored %s (envelope may have been modified)",
				i, truncateHash(computedHash), truncateHash(env.Hash),
			)
			return result
		}

		prevHash = env.Hash
	}

	result.FinalHash = envelopes[len(envelopes)-1].Hash
	return result
}

// =============================================================================
// noopChainVerifier Methods
// =============================================================================

// Verify reports every chain as valid without inspection.
func (v *noopChainVerifier) Verify(envelopes []RunEnvelope) *ChainVerificationResult {
	result := &ChainVerificationResult{
		Valid:                true,
		ChainLength:          len(envelopes),
		InvalidEnvelopeIndex: -1,
	}
	if len(envelopes) > 0 {
		result.FinalHash = envelopes[len(envelopes)-1].Hash
	}
	return result
}

// =============================================================================
// sha256HashComputer Methods
// =============================================================================

// ComputeEnvelopeHash computes the SHA-256 hash for a run envelope.
//
// # Description
//
// Computes the hash over the pipe-joined hashed fields:
//
//	SHA256(Id|Type|CreatedAt|PrevHash|RunID|Message|Error|eventJSON)
//
// eventJSON is the JSON encoding of the wrapped event, empty when the
// envelope carries none. This matches the hash computation performed
// server-side; the event JSON round-trips byte-identically because the
// event tree contains no maps.
//
// # Inputs
//
//   - env: The envelope to hash
//
// # Outputs
//
//   - string: 64-character lowercase hexadecimal hash
//
// # Limitations
//
//   - Format must match server-side computation exactly
func (c *sha256HashComputer) ComputeEnvelopeHash(env *RunEnvelope) string {
	eventJSON := ""
	if env.Event != nil {
		if data, err := json.Marshal(env.Event); err == nil {
			eventJSON = string(data)
		}
	}

	hashInput := fmt.Sprintf("%s|%s|%d|%s|%s|%s|%s|%s",
		env.Id,
		env.Type,
		env.CreatedAt,
		env.PrevHash,
		env.RunID,
		env.Message,
		env.Error,
		eventJSON)

	hash := sha256.Sum256([]byte(hashInput))
	return hex.EncodeToString(hash[:])
}

// ComputeContentHash computes the SHA-256 hash of content.
//
// # Description
//
// Simple SHA-256 hash of the provided content string. Used for artifact
// integrity fingerprints.
//
// # Inputs
//
//   - content: The content to hash
//
// # Outputs
//
//   - string: 64-character lowercase hexadecimal hash
//
// # Limitations
//
//   - Empty content produces a valid hash (not an error)
func (c *sha256HashComputer) ComputeContentHash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// =============================================================================
// Helper Functions
// =============================================================================

// truncateHash returns a truncated hash for display in error messages.
//
// # Description
//
// Shows first 8 and last 4 characters with "..." in between. Full 64-char
// hashes are unwieldy in error messages.
//
// # Examples
//
//	short := truncateHash("abc123def456abc123def456abc123def456abc123def456abc123def456abc1")
//	// Returns: "abc123de...abc1"
//
// # Limitations
//
//   - Returns original string if <= 16 characters
func truncateHash(hash string) string {
	if len(hash) <= 16 {
		return hash
	}
	return hash[:8] + "..." + hash[len(hash)-4:]
}

// =============================================================================
// Compile-time Interface Checks
// =============================================================================

var (
	_ ChainVerifier = (*fullChainVerifier)(nil)
	_ ChainVerifier = (*noopChainVerifier)(nil)
	_ HashComputer  = (*sha256HashComputer)(nil)
)
