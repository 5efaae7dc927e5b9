package secureconn

import (
	"blitter.com/go/corenet/logger"
	"blitter.com/go/corenet/pool"
)

// Config carries a secure connection's construction-time parameters.
type Config struct {
	Type Type

	// Passwords is the list of UTF-8 password candidates this side
	// holds for the authenticated-handshake path. May be empty, in
	// which case the handshake advertises AuthNone.
	Passwords []string

	BufferPool pool.Pool
	Logger     logger.Logger

	// Advertised algorithm sets; nil defaults to the one implemented
	// value for each enumeration.
	KeyExchangeAlgorithms   []uint64
	KeyDerivationAlgorithms []uint64
	CryptoAlgorithms        []uint64
	HashAlgorithms          []uint64
}

func (c Config) pool() pool.Pool {
	if c.BufferPool != nil {
		return c.BufferPool
	}
	return pool.Secure{}
}

func (c Config) logger() logger.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logger.Discard{}
}

func (c Config) kexAlgorithms() []uint64 {
	if c.KeyExchangeAlgorithms != nil {
		return c.KeyExchangeAlgorithms
	}
	return []uint64{uint64(KexEcDhP521Sha2256)}
}

func (c Config) kdfAlgorithms() []uint64 {
	if c.KeyDerivationAlgorithms != nil {
		return c.KeyDerivationAlgorithms
	}
	return []uint64{uint64(KdfPbkdf2)}
}

func (c Config) cryptoAlgorithms() []uint64 {
	if c.CryptoAlgorithms != nil {
		return c.CryptoAlgorithms
	}
	return []uint64{uint64(CryptoAes256)}
}

func (c Config) hashAlgorithms() []uint64 {
	if c.HashAlgorithms != nil {
		return c.HashAlgorithms
	}
	return []uint64{uint64(HashSha2256)}
}
