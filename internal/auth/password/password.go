// Package password hashes and verifies account passwords. New hashes use
// bcrypt; Argon2id hashes written by older releases still verify.
package password

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// MinLength is the shortest password accepted by Hash.
const MinLength = 8

var ErrTooShort = errors.New("password_too_short")

var cost = bcrypt.DefaultCost

func Hash(password string) (string, error) {
	if len(password) < MinLength {
		return "", ErrTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func Verify(password, encoded string) bool {
	switch {
	case strings.HasPrefix(encoded, "$2"):
		return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil
	case strings.HasPrefix(encoded, "$argon2id$"):
		return verifyArgon2id(password, encoded)
	default:
		return false
	}
}

// NeedsRehash reports whether encoded should be replaced by a fresh Hash.
func NeedsRehash(encoded string) bool {
	c, err := bcrypt.Cost([]byte(encoded))
	if err != nil {
		return true
	}
	return c < cost
}

// $argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
func verifyArgon2id(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[2] != "v=19" {
		return false
	}

	params := strings.Split(parts[3], ",")
	if len(params) != 3 {
		return false
	}
	values := make([]uint64, 0, 3)
	for i, prefix := range []string{"m=", "t=", "p="} {
		raw, ok := strings.CutPrefix(params[i], prefix)
		if !ok {
			return false
		}
		bits := 32
		if prefix == "p=" {
			bits = 8
		}
		v, err := strconv.ParseUint(raw, 10, bits)
		if err != nil {
			return false
		}
		values = append(values, v)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	check := argon2.IDKey([]byte(password), salt, uint32(values[1]), uint32(values[0]), uint8(values[2]), uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, check) == 1
}
