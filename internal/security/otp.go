package security

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// otpRange covers the 6-digit codes 100000..999999 so every code has a
// leading nonzero digit and uniform probability.
var otpRange = big.NewInt(900000)

// GenerateOTP returns a uniformly random 6-digit code as a string.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpRange)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
