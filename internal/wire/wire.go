// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wire implements the §6 pub/sub wire format: two JSON record
// kinds prefixed by a version byte, bound to their publisher with a BLS
// signature, and packed length-delimited the way the teacher's
// utils/wrappers.Packer frames binary fields.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/luxfi/crypto/bls"
)

// Version is the single byte every wire record is prefixed with.
type Version byte

const CurrentVersion Version = 1

const (
	// MaxMessageBytes is the §6 cap on a single work/result record.
	MaxMessageBytes = 64 * 1024
	// MaxPromptContextBytes bounds WorkRequest.PromptContext.
	MaxPromptContextBytes = 8 * 1024
	// MaxDraftTokensBytes bounds the total size of WorkResult.DraftTokens.
	MaxDraftTokensBytes = 32 * 1024
	// MaxDraftTokenCount bounds the number of tokens in a WorkResult.
	MaxDraftTokenCount = 32

	TopicWork       = "shard-work"
	TopicWorkResult = "shard-work-result"
)

var (
	ErrOverSized        = errors.New("wire: message exceeds size cap")
	ErrMalformed        = errors.New("wire: malformed message")
	ErrUnauthenticated  = errors.New("wire: signature verification failed")
	ErrUnsupportedKind  = errors.New("wire: unsupported record kind")
	ErrUnsupportedVersion = errors.New("wire: unsupported wire version")
)

// WorkRequest is published on TopicWork by a verifier's auction driver.
type WorkRequest struct {
	RequestID     string `json:"request_id"`
	SequenceID    uint32 `json:"sequence_id"`
	PromptContext string `json:"prompt_context"`
	MinTokens     uint8  `json:"min_tokens"`
	PublisherID   string `json:"publisher_id"`
}

// WorkResult is published on TopicWorkResult by a drafter worker.
type WorkResult struct {
	RequestID             string   `json:"request_id"`
	SequenceID            uint32   `json:"sequence_id"`
	PeerID                string   `json:"peer_id"`
	DraftTokens           []string `json:"draft_tokens"`
	LatencyMS             float64  `json:"latency_ms"`
	IsVerificationAnswer  bool     `json:"is_verification_answer"`
}

func (r WorkRequest) validate() error {
	if r.RequestID == "" {
		return fmt.Errorf("%w: empty request_id", ErrMalformed)
	}
	if len(r.PromptContext) > MaxPromptContextBytes {
		return fmt.Errorf("%w: prompt_context %d bytes > cap %d", ErrOverSized, len(r.PromptContext), MaxPromptContextBytes)
	}
	if r.MinTokens < 1 || r.MinTokens > 32 {
		return fmt.Errorf("%w: min_tokens %d out of [1,32]", ErrMalformed, r.MinTokens)
	}
	if r.PublisherID == "" {
		return fmt.Errorf("%w: empty publisher_id", ErrMalformed)
	}
	return nil
}

func (r WorkResult) validate() error {
	if r.RequestID == "" {
		return fmt.Errorf("%w: empty request_id", ErrMalformed)
	}
	if r.PeerID == "" {
		return fmt.Errorf("%w: empty peer_id", ErrMalformed)
	}
	if len(r.DraftTokens) > MaxDraftTokenCount {
		return fmt.Errorf("%w: draft_tokens length %d > cap %d", ErrOverSized, len(r.DraftTokens), MaxDraftTokenCount)
	}
	total := 0
	for _, tok := range r.DraftTokens {
		total += len(tok)
	}
	if total > MaxDraftTokensBytes {
		return fmt.Errorf("%w: draft_tokens %d bytes > cap %d", ErrOverSized, total, MaxDraftTokensBytes)
	}
	if r.LatencyMS < 0 {
		return fmt.Errorf("%w: negative latency_ms", ErrMalformed)
	}
	return nil
}

// Signer binds a mesh node's peer id to the messages it publishes.
type Signer struct {
	secretKey *bls.SecretKey
	publicKey *bls.PublicKey
}

// NewSigner generates a fresh BLS keypair for one node.
func NewSigner() (*Signer, error) {
	sk, err := bls.NewSecretKey()
	if err != nil {
		return nil, fmt.Errorf("generate bls key: %w", err)
	}
	return &Signer{secretKey: sk, publicKey: sk.PublicKey()}, nil
}

// PublicKeyBytes returns the compressed public key, used as the peer id
// exchanged during handshake.
func (s *Signer) PublicKeyBytes() []byte {
	return bls.PublicKeyToBytes(s.publicKey)
}

// Sign signs an encoded record body.
func (s *Signer) Sign(body []byte) ([]byte, error) {
	sig, err := s.secretKey.Sign(body)
	if err != nil {
		return nil, fmt.Errorf("sign record: %w", err)
	}
	return bls.SignatureToBytes(sig), nil
}

// EncodeWorkRequest validates, signs, and frames a WorkRequest for
// publication on TopicWork.
func EncodeWorkRequest(signer *Signer, r WorkRequest) ([]byte, error) {
	r.PublisherID = encodeID(signer.PublicKeyBytes())
	if err := r.validate(); err != nil {
		return nil, err
	}
	return encode(recordWorkRequest, r, signer)
}

// EncodeWorkResult validates, signs, and frames a WorkResult for
// publication on TopicWorkResult.
func EncodeWorkResult(signer *Signer, r WorkResult) ([]byte, error) {
	r.PeerID = encodeID(signer.PublicKeyBytes())
	if err := r.validate(); err != nil {
		return nil, err
	}
	return encode(recordWorkResult, r, signer)
}

// DecodeWorkRequest parses and authenticates a TopicWork message.
func DecodeWorkRequest(data []byte) (WorkRequest, error) {
	var r WorkRequest
	if err := decode(recordWorkRequest, data, &r); err != nil {
		return WorkRequest{}, err
	}
	if err := r.validate(); err != nil {
		return WorkRequest{}, err
	}
	return r, nil
}

// DecodeWorkResult parses and authenticates a TopicWorkResult message.
func DecodeWorkResult(data []byte) (WorkResult, error) {
	var r WorkResult
	if err := decode(recordWorkResult, data, &r); err != nil {
		return WorkResult{}, err
	}
	if err := r.validate(); err != nil {
		return WorkResult{}, err
	}
	return r, nil
}

type recordKind byte

const (
	recordWorkRequest recordKind = 1
	recordWorkResult  recordKind = 2
)

// encode builds: [version byte][kind byte][4-byte body length][body]
// [4-byte signature length][signature]. The signature covers the
// version, kind, body-length, and body bytes -- the
// "verifiable binding between message and publisher id" §9 asks for.
func encode(kind recordKind, v interface{}, signer *Signer) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	p := newPacker()
	p.packByte(byte(CurrentVersion))
	p.packByte(byte(kind))
	p.packUint32(uint32(len(body)))
	p.packBytes(body)

	sig, err := signer.Sign(p.bytes)
	if err != nil {
		return nil, err
	}
	p.packUint32(uint32(len(sig)))
	p.packBytes(sig)

	if len(p.bytes) > MaxMessageBytes {
		return nil, fmt.Errorf("%w: %d bytes > cap %d", ErrOverSized, len(p.bytes), MaxMessageBytes)
	}
	return p.bytes, nil
}

// decode reverses encode, verifying the version, kind, and signature.
// Verification requires the public key, which is recoverable from the
// signed publisher/peer id field embedded in the body -- so decode first
// parses the body, then checks the signature against the id it claims.
func decode(want recordKind, data []byte, v interface{}) error {
	if len(data) > MaxMessageBytes {
		return fmt.Errorf("%w: %d bytes > cap %d", ErrOverSized, len(data), MaxMessageBytes)
	}

	u := newUnpacker(data)
	version := u.unpackByte()
	kind := u.unpackByte()
	bodyLen := u.unpackUint32()
	body := u.unpackBytes(int(bodyLen))
	sigLen := u.unpackUint32()
	sig := u.unpackBytes(int(sigLen))
	if u.err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, u.err)
	}

	if Version(version) != CurrentVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	if recordKind(kind) != want {
		return fmt.Errorf("%w: got %d want %d", ErrUnsupportedKind, kind, want)
	}

	signed := data[:len(data)-4-len(sig)]

	idHolder := struct {
		PublisherID string `json:"publisher_id"`
		PeerID      string `json:"peer_id"`
	}{}
	if err := json.Unmarshal(body, &idHolder); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	id := idHolder.PublisherID
	if id == "" {
		id = idHolder.PeerID
	}
	pkBytes, err := decodeID(id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	pk, err := bls.PublicKeyFromBytes(pkBytes)
	if err != nil {
		return fmt.Errorf("%w: bad public key: %v", ErrUnauthenticated, err)
	}
	blsSig, err := bls.SignatureFromBytes(sig)
	if err != nil {
		return fmt.Errorf("%w: bad signature: %v", ErrUnauthenticated, err)
	}
	if !bls.Verify(pk, blsSig, signed) {
		return ErrUnauthenticated
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
