package secureconn

import (
	"context"
	"sort"
	"sync"
	"time"

	"blitter.com/go/corenet/pool"
	"blitter.com/go/corenet/wire"
	"blitter.com/go/corenet/xkex"
)

const pbkdf2Iterations = 1024
const pbkdf2OutputLen = 2 * (32 + 32) // my/peer crypto + my/peer hmac, 32 bytes each
const freshnessWindow = 30 * time.Minute

func writeBytes(h *pool.Hub, data []byte) {
	remaining := data
	for len(remaining) > 0 {
		span, _ := h.GetSpan(len(remaining))
		n := copy(span, remaining)
		_ = h.Advance(n)
		remaining = remaining[n:]
	}
}

// exchange concurrently sends out over the base connection and
// receives the peer's next frame, joining both. Modeled as
// join(send_future, receive_future): the handshake is symmetric and
// must not serialize send before receive, or two peers both waiting
// to receive first would deadlock.
func (c *Conn) exchange(ctx context.Context, out []byte) ([]byte, error) {
	var wg sync.WaitGroup
	var sendErr, recvErr error
	var in []byte

	wg.Add(2)
	go func() {
		defer wg.Done()
		sendErr = c.base.Enqueue(ctx, func(h *pool.Hub) {
			writeBytes(h, out)
		})
	}()
	go func() {
		defer wg.Done()
		recvErr = c.base.Dequeue(ctx, func(seq [][]byte) {
			for _, chunk := range seq {
				in = append(in, chunk...)
			}
		})
	}()
	wg.Wait()

	if sendErr != nil {
		return nil, wrap(sendErr)
	}
	if recvErr != nil {
		return nil, wrap(recvErr)
	}
	return in, nil
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func shuffleByteSlices(s [][]byte) {
	for i := len(s) - 1; i > 0; i-- {
		j := randIntn(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}

// randIntn returns a uniform random int in [0, n) using the crypto RNG.
func randIntn(n int) int {
	if n <= 1 {
		return 0
	}
	b, err := xkex.RandomBytes(8)
	if err != nil {
		return 0
	}
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return int(v % uint64(n))
}

// Handshake runs the full handshake: profile exchange, algorithm
// selection, ECDH key agreement, optional password authentication,
// and the PBKDF2 key schedule. Both sides run this symmetrically;
// neither side needs to know which one dialed.
func (c *Conn) Handshake(ctx context.Context) error {
	if !c.transition(StateNew, StateHandshaking) {
		return newError(KindNotHandshaked, nil)
	}

	var sessionID [32]byte
	if b, err := xkex.RandomBytes(32); err == nil {
		copy(sessionID[:], b)
	} else {
		c.fail(newError(KindInternal, err))
		return c.terminalErr
	}

	authType := wire.AuthNone
	dedupedPasswords := dedupeStrings(c.cfg.Passwords)
	if len(dedupedPasswords) > 0 {
		authType = wire.AuthPassword
	}

	myProfile := wire.ProfileMessage{
		SessionID:               sessionID,
		AuthenticationType:      authType,
		KeyExchangeAlgorithms:   c.cfg.kexAlgorithms(),
		KeyDerivationAlgorithms: c.cfg.kdfAlgorithms(),
		CryptoAlgorithms:        c.cfg.cryptoAlgorithms(),
		HashAlgorithms:          c.cfg.hashAlgorithms(),
	}

	// Step 1: profile exchange.
	peerProfileBytes, err := c.exchange(ctx, wire.EncodeProfile(myProfile))
	if err != nil {
		return c.fail(err)
	}
	peerProfile, err := wire.DecodeProfile(peerProfileBytes)
	if err != nil {
		return c.fail(wrap(err))
	}
	if myProfile.AuthenticationType != peerProfile.AuthenticationType {
		return c.fail(newError(KindAuthTypeMismatch, nil))
	}

	// Step 2: algorithm selection.
	kex, ok := selectGreatestCommon(myProfile.KeyExchangeAlgorithms, peerProfile.KeyExchangeAlgorithms)
	if !ok {
		return c.fail(newError(KindNoCommonAlgorithm, nil))
	}
	kdf, ok := selectGreatestCommon(myProfile.KeyDerivationAlgorithms, peerProfile.KeyDerivationAlgorithms)
	if !ok {
		return c.fail(newError(KindNoCommonAlgorithm, nil))
	}
	crypt, ok := selectGreatestCommon(myProfile.CryptoAlgorithms, peerProfile.CryptoAlgorithms)
	if !ok {
		return c.fail(newError(KindNoCommonAlgorithm, nil))
	}
	hsh, ok := selectGreatestCommon(myProfile.HashAlgorithms, peerProfile.HashAlgorithms)
	if !ok {
		return c.fail(newError(KindNoCommonAlgorithm, nil))
	}
	if KeyExchangeAlgorithm(kex) != KexEcDhP521Sha2256 ||
		KeyDerivationAlgorithm(kdf) != KdfPbkdf2 ||
		CryptoAlgorithm(crypt) != CryptoAes256 ||
		HashAlgorithm(hsh) != HashSha2256 {
		return c.fail(newError(KindUnsupported, nil))
	}

	// Step 3: key agreement.
	keypair, err := xkex.GenerateP521()
	if err != nil {
		return c.fail(wrap(err))
	}
	myPub := wire.AgreementPublicKey{
		CreationTime:  time.Now().Unix(),
		AlgorithmType: kex,
		PublicKey:     keypair.Public,
	}
	peerPubBytes, err := c.exchange(ctx, wire.EncodePublicKey(myPub))
	if err != nil {
		return c.fail(err)
	}
	peerPub, err := wire.DecodePublicKey(peerPubBytes)
	if err != nil {
		return c.fail(wrap(err))
	}
	now := time.Now().Unix()
	window := int64(freshnessWindow / time.Second)
	if peerPub.CreationTime < now-window || peerPub.CreationTime > now+window {
		return c.fail(newError(KindStalePublicKey, nil))
	}
	sharedSecret, err := xkex.P521SharedSecret(keypair.Private, peerPub.PublicKey)
	if err != nil {
		return c.fail(wrap(err))
	}

	// Step 4: optional password authentication.
	var matched []string
	if authType == wire.AuthPassword {
		matched, err = c.authenticatePasswords(ctx, dedupedPasswords, myProfile, myPub, peerProfile, peerPub)
		if err != nil {
			return c.fail(err)
		}
	}

	// Step 5: key schedule.
	xorSessionID := xorSessionIDs(myProfile.SessionID, peerProfile.SessionID)
	keyMaterial := xkex.Pbkdf2Sha256(sharedSecret, xorSessionID, pbkdf2Iterations, pbkdf2OutputLen)

	var myCrypto, peerCrypto, myHmac, peerHmac [32]byte
	switch c.cfg.Type {
	case TypeConnected:
		copy(myCrypto[:], keyMaterial[0:32])
		copy(peerCrypto[:], keyMaterial[32:64])
		copy(myHmac[:], keyMaterial[64:96])
		copy(peerHmac[:], keyMaterial[96:128])
	case TypeAccepted:
		copy(peerCrypto[:], keyMaterial[0:32])
		copy(myCrypto[:], keyMaterial[32:64])
		copy(peerHmac[:], keyMaterial[64:96])
		copy(myHmac[:], keyMaterial[96:128])
	}

	c.status.Crypto = CryptoAlgorithm(crypt)
	c.status.Hash = HashAlgorithm(hsh)
	c.status.myCryptoKey = myCrypto
	c.status.peerCryptoKey = peerCrypto
	c.status.myHmacKey = myHmac
	c.status.peerHmacKey = peerHmac
	c.status.Type = c.cfg.Type
	c.status.MatchedPasswords = matched

	if !c.transition(StateHandshaking, StateReady) {
		return newError(KindInternal, nil)
	}
	return nil
}

// authenticatePasswords runs handshake step 4. Each side computes, for
// every password it holds, an HMAC over the hash of its *own*
// verification message, exchanges shuffled hash lists, and intersects
// the peer's list against the hashes it expects over the peer's
// verification message.
func (c *Conn) authenticatePasswords(
	ctx context.Context,
	passwords []string,
	myProfile wire.ProfileMessage,
	myPub wire.AgreementPublicKey,
	peerProfile wire.ProfileMessage,
	peerPub wire.AgreementPublicKey,
) ([]string, error) {
	myVerifyHash := xkex.Sha256(wire.EncodeVerification(wire.VerificationMessage{
		Profile:   myProfile,
		PublicKey: myPub,
	}))
	hashes := make([][]byte, len(passwords))
	for i, p := range passwords {
		hashes[i] = xkex.HmacSha256(xkex.Sha256([]byte(p)), myVerifyHash)
	}
	shuffleByteSlices(hashes)

	peerAuthBytes, err := c.exchange(ctx, wire.EncodeAuthentication(wire.AuthenticationMessage{Hashes: hashes}))
	if err != nil {
		return nil, err
	}
	peerAuth, err := wire.DecodeAuthentication(peerAuthBytes)
	if err != nil {
		return nil, wrap(err)
	}

	peerVerifyHash := xkex.Sha256(wire.EncodeVerification(wire.VerificationMessage{
		Profile:   peerProfile,
		PublicKey: peerPub,
	}))
	expected := make(map[string]string, len(passwords))
	for _, p := range passwords {
		h := xkex.HmacSha256(xkex.Sha256([]byte(p)), peerVerifyHash)
		expected[string(h)] = p
	}

	matchedSet := make(map[string]bool)
	for _, h := range peerAuth.Hashes {
		if p, ok := expected[string(h)]; ok {
			matchedSet[p] = true
		}
	}
	if len(matchedSet) == 0 {
		return nil, newError(KindPasswordMismatch, nil)
	}
	matched := make([]string, 0, len(matchedSet))
	for p := range matchedSet {
		matched = append(matched, p)
	}
	sort.Strings(matched)
	return matched, nil
}

// xorSessionIDs XORs two fixed 32-byte session ids. Both sides of the
// handshake always produce exactly 32-byte ids, so the "pad the
// shorter one" branch the original design calls for is unreachable
// here; the fixed-size arrays make that invariant structural rather
// than a runtime check.
func xorSessionIDs(a, b [32]byte) []byte {
	out := make([]byte, 32)
	for i := range out {
		out[i] = a[i] ^ b[i]
	}
	return out
}
