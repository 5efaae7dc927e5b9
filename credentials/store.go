// Package credentials loads the principal/password material that
// feeds a secureconn handshake's optional mutual authentication step.
//
// It keeps two distinct stores, mirroring two distinct jobs the
// teacher's xs kept separate: a bcrypt-hashed login store used to
// verify a single candidate password at login time (you cannot get a
// plaintext list back out of it, that's the point of hashing), and a
// plaintext secrets store that *does* hand back candidate passwords,
// because secureconn's HMAC-based proof exchange needs both peers to
// already hold the same plaintext secret.
package credentials

import (
	"encoding/csv"
	"io"

	"github.com/jameskeane/bcrypt"
)

// noSuchUserRecord is the dummy record looked up when a username isn't
// found, so a failed lookup costs the same bcrypt work as a real
// mismatch and doesn't leak user existence via timing.
var noSuchUserRecord = []string{
	"$nosuchuser$",
	"$2a$12$l0coBlRDNEJeQVl6GdEPbU",
	"$2a$12$l0coBlRDNEJeQVl6GdEPbUC/xmuOANvqgmrMVum6S4i.EXPgnTXy6",
}

// Store holds bcrypt-hashed login credentials in the exact
// `user:salt:hash` colon-CSV format the teacher's xspasswd tool
// writes and auth.go's AuthUserByPasswd reads.
type Store struct {
	records [][]string
}

// LoadStore parses colon-delimited credential records from r.
// '#'-prefixed lines are comments, as in the teacher's format.
func LoadStore(r io.Reader) (*Store, error) {
	cr := csv.NewReader(r)
	cr.Comma = ':'
	cr.Comment = '#'
	cr.FieldsPerRecord = 3

	records, err := cr.ReadAll()
	if err != nil {
		return nil, newError(KindMalformed, err)
	}
	return &Store{records: records}, nil
}

// Verify checks candidate against the stored hash for user. A
// not-found user is compared against a dummy record so the bcrypt
// work, and thus the timing, is identical to a genuine mismatch.
func (s *Store) Verify(user, candidate string) (bool, error) {
	record := noSuchUserRecord
	found := false
	for _, rec := range s.records {
		if rec[0] == user {
			record = rec
			found = true
			break
		}
	}

	hash, err := bcrypt.Hash(candidate, record[1])
	if err != nil {
		return false, newError(KindMalformed, err)
	}
	if hash == record[2] && found {
		return true, nil
	}
	return false, nil
}

// Scrub zeroes a byte slice in place. Callers that read a credentials
// file into memory before passing it to LoadStore should scrub it
// afterward, matching the teacher's auth.go security-scrub step.
func Scrub(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
