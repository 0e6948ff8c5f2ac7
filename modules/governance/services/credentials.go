package services

import (
	"crypto/rand"
	"math/big"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/bcrypt"
)

// CredentialIssuer mints an initial credential for a provisioned user.
// Implementations return the clear-text password for one-time delivery and
// its hash for storage.
type CredentialIssuer interface {
	Issue() (clear string, hash string, err error)
}

const (
	tempPasswordLength   = 16
	tempPasswordAlphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

type randomCredentialIssuer struct{}

func NewCredentialIssuer() CredentialIssuer {
	return &randomCredentialIssuer{}
}

func (randomCredentialIssuer) Issue() (string, string, error) {
	buf := make([]byte, tempPasswordLength)
	max := big.NewInt(int64(len(tempPasswordAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", "", errors.Wrap(err, "generate password")
		}
		buf[i] = tempPasswordAlphabet[n.Int64()]
	}
	clear := string(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(clear), bcrypt.DefaultCost)
	if err != nil {
		return "", "", errors.Wrap(err, "hash password")
	}
	return clear, string(hash), nil
}
