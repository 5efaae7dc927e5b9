package secureconn

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"sync"
	"sync/atomic"

	"blitter.com/go/corenet/pool"
	"blitter.com/go/corenet/xkex"
)

const (
	recordHeaderLen = 8
	recordIVLen     = 16
	recordMacLen    = 32
	minRecordLen    = recordHeaderLen + recordIVLen + recordIVLen + recordMacLen
)

// sendMu/recvMu serialize frame construction independently of
// baseconn's own send/receive locks, mirroring the split between
// send-side and receive-side state the base connection uses.
type codecLocks struct {
	sendMu sync.Mutex
	recvMu sync.Mutex
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	if padLen == 0 {
		padLen = blockSize
	}
	out := make([]byte, len(data)+padLen)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(padLen)
	}
	return out
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, newError(KindMalformedFrame, nil)
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) || padLen > 16 {
		return nil, newError(KindMalformedFrame, nil)
	}
	for i := len(data) - padLen; i < len(data); i++ {
		if data[i] != byte(padLen) {
			return nil, newError(KindMalformedFrame, nil)
		}
	}
	return data[:len(data)-padLen], nil
}

// Send runs action against a scratch plaintext hub, encrypts the
// result under this side's own key (my_crypto_key/my_hmac_key, the
// keys that mirror the peer's peer_crypto_key/peer_hmac_key), and
// enqueues the resulting record as one base connection frame.
func (c *Conn) Send(ctx context.Context, action func(h *pool.Hub)) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	c.locks.sendMu.Lock()
	defer c.locks.sendMu.Unlock()

	scratch := pool.NewHub(c.cfg.pool(), 0)
	defer scratch.Reset()
	action(scratch)
	scratch.Complete()

	var plain []byte
	for _, chunk := range scratch.GetSequence() {
		plain = append(plain, chunk...)
	}
	padded := pkcs7Pad(plain, 16)

	encryptedLen := recordIVLen + len(padded)
	newTotal := atomic.AddUint64(&c.status.totalSentSize, uint64(encryptedLen))

	iv, err := xkex.RandomBytes(recordIVLen)
	if err != nil {
		return c.fail(wrap(err))
	}
	block, err := aes.NewCipher(c.status.myCryptoKey[:])
	if err != nil {
		return c.fail(wrap(err))
	}
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	mac := hmac.New(sha256.New, c.status.myHmacKey[:])
	mac.Write(iv)
	mac.Write(ciphertext)
	tag := mac.Sum(nil)

	var header [recordHeaderLen]byte
	binary.BigEndian.PutUint64(header[:], newTotal)

	err = c.base.Enqueue(ctx, func(h *pool.Hub) {
		writeBytes(h, header[:])
		writeBytes(h, iv)
		writeBytes(h, ciphertext)
		writeBytes(h, tag)
	})
	if err != nil {
		return c.fail(wrap(err))
	}
	return nil
}

// Receive dequeues the next base connection frame, verifies and
// decrypts it under this side's view of the peer's key (peer_crypto_key
// /peer_hmac_key), and passes the plaintext to action.
func (c *Conn) Receive(ctx context.Context, action func(seq [][]byte)) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	c.locks.recvMu.Lock()
	defer c.locks.recvMu.Unlock()

	var frame []byte
	err := c.base.Dequeue(ctx, func(seq [][]byte) {
		for _, chunk := range seq {
			frame = append(frame, chunk...)
		}
	})
	if err != nil {
		return c.fail(wrap(err))
	}
	if len(frame) < minRecordLen {
		return c.fail(newError(KindMalformedFrame, nil))
	}

	declaredTotal := binary.BigEndian.Uint64(frame[:recordHeaderLen])
	ivCiphertextLen := len(frame) - recordHeaderLen - recordMacLen
	newTotal := atomic.AddUint64(&c.status.totalReceivedSize, uint64(ivCiphertextLen))
	if declaredTotal != newTotal {
		return c.fail(newError(KindSequenceMismatch, nil))
	}

	macCovered := frame[recordHeaderLen : len(frame)-recordMacLen]
	macTag := frame[len(frame)-recordMacLen:]
	mac := hmac.New(sha256.New, c.status.peerHmacKey[:])
	mac.Write(macCovered)
	if !hmac.Equal(mac.Sum(nil), macTag) {
		return c.fail(newError(KindMacInvalid, nil))
	}

	iv := frame[recordHeaderLen : recordHeaderLen+recordIVLen]
	ciphertext := frame[recordHeaderLen+recordIVLen : len(frame)-recordMacLen]
	if len(ciphertext)%16 != 0 {
		return c.fail(newError(KindMalformedFrame, nil))
	}
	block, err := aes.NewCipher(c.status.peerCryptoKey[:])
	if err != nil {
		return c.fail(wrap(err))
	}
	plainPadded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plainPadded, ciphertext)
	plain, err := pkcs7Unpad(plainPadded)
	if err != nil {
		return c.fail(err)
	}

	action([][]byte{plain})
	return nil
}
