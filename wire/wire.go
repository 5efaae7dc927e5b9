// Package wire implements the length-tag-value codec for the
// handshake messages named in the external-interfaces surface:
// ProfileMessage, AgreementPublicKey, AuthenticationMessage, and
// VerificationMessage. Each record is a sequence of fields, each
// `u16_be field_id || u32_be length || bytes`, terminated by a
// field id of 0. This is a small fixed-schema codec written directly
// against the documented wire shape rather than a generic serializer.
package wire

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// ErrMalformed is returned when a record cannot be parsed.
var ErrMalformed = errors.New("wire: malformed record")

// AuthenticationType enumerates the handshake's authentication modes.
type AuthenticationType uint8

// nolint: golint
const (
	AuthNone AuthenticationType = iota
	AuthPassword
)

// ProfileMessage is exchanged first in the handshake.
type ProfileMessage struct {
	SessionID               [32]byte
	AuthenticationType       AuthenticationType
	KeyExchangeAlgorithms   []uint64
	KeyDerivationAlgorithms []uint64
	CryptoAlgorithms        []uint64
	HashAlgorithms          []uint64
}

// AgreementPublicKey carries one side's ephemeral key-agreement public key.
type AgreementPublicKey struct {
	CreationTime  int64
	AlgorithmType uint64
	PublicKey     []byte
}

// AuthenticationMessage carries a shuffled list of password-proof hashes.
type AuthenticationMessage struct {
	Hashes [][]byte
}

// VerificationMessage binds a profile to a public key for password
// proof hash computation.
type VerificationMessage struct {
	Profile   ProfileMessage
	PublicKey AgreementPublicKey
}

const (
	fieldProfileSessionID    = 1
	fieldProfileAuthType     = 2
	fieldProfileKexAlgs      = 3
	fieldProfileKdfAlgs      = 4
	fieldProfileCryptoAlgs   = 5
	fieldProfileHashAlgs     = 6

	fieldPubKeyCreationTime = 1
	fieldPubKeyAlgType      = 2
	fieldPubKeyBytes        = 3

	fieldAuthHash = 1

	fieldVerifyProfile   = 1
	fieldVerifyPublicKey = 2
)

func writeField(buf *bytes.Buffer, id uint16, payload []byte) {
	var hdr [6]byte
	binary.BigEndian.PutUint16(hdr[0:2], id)
	binary.BigEndian.PutUint32(hdr[2:6], uint32(len(payload)))
	buf.Write(hdr[:])
	buf.Write(payload)
}

func writeTerminator(buf *bytes.Buffer) {
	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], 0)
	buf.Write(hdr[:])
}

func writeUint64Slice(buf *bytes.Buffer, id uint16, values []uint64) {
	payload := make([]byte, 8*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint64(payload[i*8:i*8+8], v)
	}
	writeField(buf, id, payload)
}

func readField(r *bytes.Reader) (id uint16, payload []byte, terminated bool, err error) {
	var idBuf [2]byte
	if _, err = io.ReadFull(r, idBuf[:]); err != nil {
		return 0, nil, false, err
	}
	id = binary.BigEndian.Uint16(idBuf[:])
	if id == 0 {
		return 0, nil, true, nil
	}
	var lenBuf [4]byte
	if _, err = io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, nil, false, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	payload = make([]byte, length)
	if _, err = io.ReadFull(r, payload); err != nil {
		return 0, nil, false, err
	}
	return id, payload, false, nil
}

func readUint64Slice(payload []byte) ([]uint64, error) {
	if len(payload)%8 != 0 {
		return nil, ErrMalformed
	}
	out := make([]uint64, len(payload)/8)
	for i := range out {
		out[i] = binary.BigEndian.Uint64(payload[i*8 : i*8+8])
	}
	return out, nil
}

// EncodeProfile serializes a ProfileMessage as an LTV record.
func EncodeProfile(m ProfileMessage) []byte {
	var buf bytes.Buffer
	writeField(&buf, fieldProfileSessionID, m.SessionID[:])
	writeField(&buf, fieldProfileAuthType, []byte{byte(m.AuthenticationType)})
	writeUint64Slice(&buf, fieldProfileKexAlgs, m.KeyExchangeAlgorithms)
	writeUint64Slice(&buf, fieldProfileKdfAlgs, m.KeyDerivationAlgorithms)
	writeUint64Slice(&buf, fieldProfileCryptoAlgs, m.CryptoAlgorithms)
	writeUint64Slice(&buf, fieldProfileHashAlgs, m.HashAlgorithms)
	writeTerminator(&buf)
	return buf.Bytes()
}

// DecodeProfile parses an LTV-encoded ProfileMessage.
func DecodeProfile(data []byte) (ProfileMessage, error) {
	var m ProfileMessage
	r := bytes.NewReader(data)
	for {
		id, payload, done, err := readField(r)
		if err != nil {
			return m, errors.Wrap(err, "wire: decode profile")
		}
		if done {
			return m, nil
		}
		switch id {
		case fieldProfileSessionID:
			if len(payload) != 32 {
				return m, ErrMalformed
			}
			copy(m.SessionID[:], payload)
		case fieldProfileAuthType:
			if len(payload) != 1 {
				return m, ErrMalformed
			}
			m.AuthenticationType = AuthenticationType(payload[0])
		case fieldProfileKexAlgs:
			if m.KeyExchangeAlgorithms, err = readUint64Slice(payload); err != nil {
				return m, err
			}
		case fieldProfileKdfAlgs:
			if m.KeyDerivationAlgorithms, err = readUint64Slice(payload); err != nil {
				return m, err
			}
		case fieldProfileCryptoAlgs:
			if m.CryptoAlgorithms, err = readUint64Slice(payload); err != nil {
				return m, err
			}
		case fieldProfileHashAlgs:
			if m.HashAlgorithms, err = readUint64Slice(payload); err != nil {
				return m, err
			}
		}
	}
}

// EncodePublicKey serializes an AgreementPublicKey as an LTV record.
func EncodePublicKey(k AgreementPublicKey) []byte {
	var buf bytes.Buffer
	var ct [8]byte
	binary.BigEndian.PutUint64(ct[:], uint64(k.CreationTime))
	writeField(&buf, fieldPubKeyCreationTime, ct[:])
	var at [8]byte
	binary.BigEndian.PutUint64(at[:], k.AlgorithmType)
	writeField(&buf, fieldPubKeyAlgType, at[:])
	writeField(&buf, fieldPubKeyBytes, k.PublicKey)
	writeTerminator(&buf)
	return buf.Bytes()
}

// DecodePublicKey parses an LTV-encoded AgreementPublicKey.
func DecodePublicKey(data []byte) (AgreementPublicKey, error) {
	var k AgreementPublicKey
	r := bytes.NewReader(data)
	for {
		id, payload, done, err := readField(r)
		if err != nil {
			return k, errors.Wrap(err, "wire: decode public key")
		}
		if done {
			return k, nil
		}
		switch id {
		case fieldPubKeyCreationTime:
			if len(payload) != 8 {
				return k, ErrMalformed
			}
			k.CreationTime = int64(binary.BigEndian.Uint64(payload))
		case fieldPubKeyAlgType:
			if len(payload) != 8 {
				return k, ErrMalformed
			}
			k.AlgorithmType = binary.BigEndian.Uint64(payload)
		case fieldPubKeyBytes:
			k.PublicKey = payload
		}
	}
}

// EncodeAuthentication serializes an AuthenticationMessage as an LTV record.
func EncodeAuthentication(m AuthenticationMessage) []byte {
	var buf bytes.Buffer
	for _, h := range m.Hashes {
		writeField(&buf, fieldAuthHash, h)
	}
	writeTerminator(&buf)
	return buf.Bytes()
}

// DecodeAuthentication parses an LTV-encoded AuthenticationMessage.
func DecodeAuthentication(data []byte) (AuthenticationMessage, error) {
	var m AuthenticationMessage
	r := bytes.NewReader(data)
	for {
		id, payload, done, err := readField(r)
		if err != nil {
			return m, errors.Wrap(err, "wire: decode authentication")
		}
		if done {
			return m, nil
		}
		if id == fieldAuthHash {
			m.Hashes = append(m.Hashes, payload)
		}
	}
}

// EncodeVerification serializes a VerificationMessage as an LTV record.
func EncodeVerification(m VerificationMessage) []byte {
	var buf bytes.Buffer
	writeField(&buf, fieldVerifyProfile, EncodeProfile(m.Profile))
	writeField(&buf, fieldVerifyPublicKey, EncodePublicKey(m.PublicKey))
	writeTerminator(&buf)
	return buf.Bytes()
}

// DecodeVerification parses an LTV-encoded VerificationMessage.
func DecodeVerification(data []byte) (VerificationMessage, error) {
	var m VerificationMessage
	r := bytes.NewReader(data)
	for {
		id, payload, done, err := readField(r)
		if err != nil {
			return m, errors.Wrap(err, "wire: decode verification")
		}
		if done {
			return m, nil
		}
		switch id {
		case fieldVerifyProfile:
			if m.Profile, err = DecodeProfile(payload); err != nil {
				return m, err
			}
		case fieldVerifyPublicKey:
			if m.PublicKey, err = DecodePublicKey(payload); err != nil {
				return m, err
			}
		}
	}
}
