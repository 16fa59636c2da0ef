package totp

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// GenerateTOTPSecret generates a new TOTP secret key.
// It returns the key and the otpauth:// URI for QR code generation.
func GenerateTOTPSecret(issuer, accountName string) (*otp.Key, string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		Period:      30,
		SecretSize:  20,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate TOTP key: %w", err)
	}
	return key, key.URL(), nil
}

// GenerateTOTPQRCodeBytes renders the otpauth:// URI as a PNG QR code.
func GenerateTOTPQRCodeBytes(otpAuthURI string) ([]byte, error) {
	key, err := otp.NewKeyFromURL(otpAuthURI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse otpauth uri for QR code: %w", err)
	}
	img, err := key.Image(256, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code image: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode QR code image to PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// Validator checks six digit SHA1 codes with one period of clock skew either way.
type Validator struct {
	Skew uint
	Now  func() time.Time
}

func NewValidator() *Validator {
	return &Validator{Skew: 1, Now: time.Now}
}

// Validate reports whether passcode matches the base32 secret. A malformed
// secret is an error, a wrong code is not.
func (v *Validator) Validate(secret, passcode string) (bool, error) {
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	ok, err := totp.ValidateCustom(strings.TrimSpace(passcode), strings.TrimSpace(secret), now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      v.Skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil && !errors.Is(err, otp.ErrValidateInputInvalidLength) {
		return false, fmt.Errorf("totp validation failed: %w", err)
	}
	return ok, nil
}
