// Package codegen produces referral codes and withdrawal references.
package codegen

import (
	"fmt"
	"time"

	nanoid "github.com/jaevor/go-nanoid"
)

const (
	ReferralCodeAlphabet = "0123456789ABCDEF"
	ReferralCodeLength   = 6

	ReferencePrefix   = "IB-W-"
	referenceAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	referenceRandLen  = 4
)

// NewReferralCodeGenerator returns a generator of 6-character uppercase hex
// codes (16^6 combinations). Uniqueness is enforced by the store.
func NewReferralCodeGenerator() (func() string, error) {
	return nanoid.CustomASCII(ReferralCodeAlphabet, ReferralCodeLength)
}

// NewReferenceGenerator returns a generator of withdrawal references in the
// form IB-W-<last 6 digits of unix millis><4 random chars>.
func NewReferenceGenerator(now func() time.Time) (func() string, error) {
	random, err := nanoid.CustomASCII(referenceAlphabet, referenceRandLen)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return func() string {
		return fmt.Sprintf("%s%06d%s", ReferencePrefix, now().UnixMilli()%1_000_000, random())
	}, nil
}
