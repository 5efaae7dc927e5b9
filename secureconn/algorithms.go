package secureconn

// The four algorithm enumerations are kept extensible in the style of
// the teacher's CAlgAES256/CAlgTwofish128/... and HmacSHA256/HmacSHA512
// constant blocks: each carries reserved-but-unimplemented values.
// Selecting a reserved value aborts the handshake with Unsupported.

// KeyExchangeAlgorithm identifies a key-agreement algorithm.
type KeyExchangeAlgorithm uint64

// nolint: golint
const (
	KexEcDhP521Sha2256 KeyExchangeAlgorithm = 1
	// kexReservedX25519 would slot in here if a second KEx were ever
	// implemented; today only EcDhP521Sha2256 is wired up.
	kexReservedX25519 KeyExchangeAlgorithm = 2
)

// KeyDerivationAlgorithm identifies a key-schedule algorithm.
type KeyDerivationAlgorithm uint64

// nolint: golint
const (
	KdfPbkdf2 KeyDerivationAlgorithm = 1
	kdfReservedScrypt KeyDerivationAlgorithm = 2
)

// CryptoAlgorithm identifies a record-layer symmetric cipher.
type CryptoAlgorithm uint64

// nolint: golint
const (
	CryptoAes256 CryptoAlgorithm = 1
	cryptoReservedChaCha20Poly1305 CryptoAlgorithm = 2
)

// HashAlgorithm identifies a handshake hash/HMAC algorithm.
type HashAlgorithm uint64

// nolint: golint
const (
	HashSha2256 HashAlgorithm = 1
	hashReservedSha2512 HashAlgorithm = 2
)

func selectGreatestCommon(mine, peer []uint64) (uint64, bool) {
	peerSet := make(map[uint64]bool, len(peer))
	for _, v := range peer {
		peerSet[v] = true
	}
	best := uint64(0)
	found := false
	for _, v := range mine {
		if peerSet[v] && (!found || v > best) {
			best = v
			found = true
		}
	}
	return best, found
}
