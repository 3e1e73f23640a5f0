package goGuard

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const totpSecretBytes = 20

var (
	errEmptyTOTPSecret   = errors.New("empty totp secret")
	errUnknownTOTPDigest = errors.New("unsupported totp algorithm")
)

var totpSecretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// totpDigest maps an otpauth algorithm name to its hash. Empty means SHA1.
func totpDigest(name string) (func() hash.Hash, error) {
	switch strings.ToUpper(name) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	}
	return nil, fmt.Errorf("%w: %q", errUnknownTOTPDigest, name)
}

// totpManager derives RFC 6238 codes. The emailed login code and an
// authenticator app read the same secret, so both produce the same code.
type totpManager struct {
	config TOTPConfig
	digest func() hash.Hash
	modulo uint32
}

func newTOTPManager(cfg TOTPConfig) *totpManager {
	if cfg.Algorithm == "" {
		cfg.Algorithm = "SHA1"
	}
	if cfg.Digits == 0 {
		cfg.Digits = 6
	}
	if cfg.Period == 0 {
		cfg.Period = 30
	}
	digest, err := totpDigest(cfg.Algorithm)
	if err != nil {
		// Config.Validate rejects unknown names before we get here.
		digest = sha1.New
	}
	modulo := uint32(1)
	for range cfg.Digits {
		modulo *= 10
	}
	return &totpManager{config: cfg, digest: digest, modulo: modulo}
}

// GenerateSecret returns a fresh random secret and its unpadded base32 form.
func (m *totpManager) GenerateSecret() ([]byte, string, error) {
	if m == nil {
		return nil, "", ErrEngineNotReady
	}
	raw := make([]byte, totpSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", fmt.Errorf("totp secret: %w", err)
	}
	return raw, totpSecretEncoding.EncodeToString(raw), nil
}

// ProvisionURI is the otpauth:// link an authenticator app scans.
func (m *totpManager) ProvisionURI(secretBase32, account string) string {
	q := url.Values{
		"secret":    {secretBase32},
		"issuer":    {m.config.Issuer},
		"period":    {strconv.Itoa(m.config.Period)},
		"digits":    {strconv.Itoa(m.config.Digits)},
		"algorithm": {strings.ToUpper(m.config.Algorithm)},
	}
	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + m.config.Issuer + ":" + account,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// CurrentCode returns the code for the period containing now.
func (m *totpManager) CurrentCode(secret []byte, now time.Time) (string, error) {
	if m == nil {
		return "", ErrEngineNotReady
	}
	if len(secret) == 0 {
		return "", errEmptyTOTPSecret
	}
	return m.code(secret, m.step(now)), nil
}

// VerifyCode accepts a code from any period within ToleranceSteps of now.
// A code of the wrong length or with non-digits is a plain mismatch.
func (m *totpManager) VerifyCode(secret []byte, code string, now time.Time) (bool, error) {
	if m == nil {
		return false, ErrEngineNotReady
	}
	code = strings.TrimSpace(code)
	if len(code) != m.config.Digits || !allDigits(code) {
		return false, nil
	}
	if len(secret) == 0 {
		return false, errEmptyTOTPSecret
	}

	center, tol := m.step(now), uint64(m.config.ToleranceSteps)
	from := uint64(0)
	if center > tol {
		from = center - tol
	}
	// Every step in the window is compared so timing does not reveal which
	// step matched.
	hit := 0
	for s := from; s <= center+tol; s++ {
		hit |= subtle.ConstantTimeCompare([]byte(m.code(secret, s)), []byte(code))
	}
	return hit == 1, nil
}

func (m *totpManager) step(now time.Time) uint64 {
	unix := now.Unix()
	if unix < 0 {
		return 0
	}
	return uint64(unix) / uint64(m.config.Period)
}

// code is HOTP (RFC 4226) for counter, truncated to the configured digits.
func (m *totpManager) code(secret []byte, counter uint64) string {
	mac := hmac.New(m.digest, secret)
	_ = binary.Write(mac, binary.BigEndian, counter)
	sum := mac.Sum(nil)

	off := int(sum[len(sum)-1] & 0x0f)
	value := binary.BigEndian.Uint32(sum[off:off+4]) & 0x7fffffff
	return fmt.Sprintf("%0*d", m.config.Digits, value%m.modulo)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) < 0
}
