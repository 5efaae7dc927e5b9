package wire

import (
	"bytes"
	"testing"
)

func TestProfileRoundTrip(t *testing.T) {
	var sid [32]byte
	copy(sid[:], []byte("0123456789abcdef0123456789abcdef"))

	in := ProfileMessage{
		SessionID:               sid,
		AuthenticationType:      AuthPassword,
		KeyExchangeAlgorithms:   []uint64{1, 2, 3},
		KeyDerivationAlgorithms: []uint64{1},
		CryptoAlgorithms:        []uint64{1, 9},
		HashAlgorithms:          []uint64{1},
	}
	out, err := DecodeProfile(EncodeProfile(in))
	if err != nil {
		t.Fatalf("DecodeProfile: %v", err)
	}
	if out.SessionID != in.SessionID {
		t.Fatal("session id mismatch")
	}
	if out.AuthenticationType != in.AuthenticationType {
		t.Fatal("authentication type mismatch")
	}
	if len(out.KeyExchangeAlgorithms) != 3 || out.KeyExchangeAlgorithms[2] != 3 {
		t.Fatalf("key exchange algorithms mismatch: %v", out.KeyExchangeAlgorithms)
	}
}

func TestPublicKeyRoundTrip(t *testing.T) {
	in := AgreementPublicKey{CreationTime: 1234567890, AlgorithmType: 7, PublicKey: []byte{1, 2, 3, 4, 5}}
	out, err := DecodePublicKey(EncodePublicKey(in))
	if err != nil {
		t.Fatalf("DecodePublicKey: %v", err)
	}
	if out.CreationTime != in.CreationTime || out.AlgorithmType != in.AlgorithmType {
		t.Fatalf("got %+v, want %+v", out, in)
	}
	if !bytes.Equal(out.PublicKey, in.PublicKey) {
		t.Fatalf("public key mismatch: %v vs %v", out.PublicKey, in.PublicKey)
	}
}

func TestAuthenticationRoundTrip(t *testing.T) {
	in := AuthenticationMessage{Hashes: [][]byte{{1, 2}, {3, 4, 5}, {}}}
	out, err := DecodeAuthentication(EncodeAuthentication(in))
	if err != nil {
		t.Fatalf("DecodeAuthentication: %v", err)
	}
	if len(out.Hashes) != len(in.Hashes) {
		t.Fatalf("got %d hashes, want %d", len(out.Hashes), len(in.Hashes))
	}
	for i := range in.Hashes {
		if !bytes.Equal(out.Hashes[i], in.Hashes[i]) {
			t.Fatalf("hash %d mismatch: %v vs %v", i, out.Hashes[i], in.Hashes[i])
		}
	}
}

func TestVerificationRoundTrip(t *testing.T) {
	var sid [32]byte
	in := VerificationMessage{
		Profile:   ProfileMessage{SessionID: sid, AuthenticationType: AuthNone, KeyExchangeAlgorithms: []uint64{1}},
		PublicKey: AgreementPublicKey{CreationTime: 99, AlgorithmType: 1, PublicKey: []byte{9, 9, 9}},
	}
	out, err := DecodeVerification(EncodeVerification(in))
	if err != nil {
		t.Fatalf("DecodeVerification: %v", err)
	}
	if out.PublicKey.CreationTime != in.PublicKey.CreationTime {
		t.Fatalf("nested public key mismatch: %+v", out.PublicKey)
	}
}
