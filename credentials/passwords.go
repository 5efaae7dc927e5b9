package credentials

import (
	"bufio"
	"io"
	"strings"
)

// PasswordList holds, per principal, the plaintext secrets a server
// is willing to offer as `secureconn.Config.Passwords` candidates
// during the handshake's authenticatePasswords step. This is
// deliberately separate from Store: a bcrypt hash cannot be turned
// back into the plaintext secureconn's HMAC proof exchange needs, so
// this list has to come from somewhere else (an operator-provisioned
// secrets file, a vault lookup, etc). Demo tooling only.
type PasswordList struct {
	byUser map[string][]string
}

// LoadPasswordList parses a file of "user:secret1,secret2,..." lines.
// Blank lines and '#'-prefixed lines are ignored.
func LoadPasswordList(r io.Reader) (*PasswordList, error) {
	pl := &PasswordList{byUser: make(map[string][]string)}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return nil, newError(KindMalformed, nil)
		}
		user := line[:idx]
		secrets := strings.Split(line[idx+1:], ",")
		pl.byUser[user] = secrets
	}
	if err := sc.Err(); err != nil {
		return nil, newError(KindMalformed, err)
	}
	return pl, nil
}

// Passwords returns the plaintext candidate secrets provisioned for
// user, suitable for secureconn.Config.Passwords.
func (pl *PasswordList) Passwords(user string) ([]string, error) {
	secrets, ok := pl.byUser[user]
	if !ok {
		return nil, newError(KindNotFound, nil)
	}
	out := make([]string, len(secrets))
	copy(out, secrets)
	return out, nil
}
