package consent

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

const (
	tokenIssuer = "payguard"
	hkdfInfo    = "payguard consent token v1"
)

// claims is the JWS payload. Registered claims carry iss/sub/aud/exp/iat/jti.
type claims struct {
	IntentID   string `json:"intent_id"`
	IntentHash string `json:"intent_hash"`
	SessionID  string `json:"sid"`
	SingleUse  bool   `json:"single_use"`
	jwt.RegisteredClaims
}

// Signer signs and parses consent tokens with HS256. Keys are derived from
// master secrets with HKDF-SHA256; the first secret signs, all verify.
type Signer struct {
	current string
	keys    map[string][]byte
}

// NewSigner derives keys from secrets. Older secrets stay valid for
// verification during rotation.
func NewSigner(secrets ...[]byte) (*Signer, error) {
	if len(secrets) == 0 {
		return nil, errors.New("consent signer requires a secret")
	}
	s := &Signer{keys: make(map[string][]byte, len(secrets))}
	for i, secret := range secrets {
		if len(secret) < 16 {
			return nil, fmt.Errorf("consent secret %d shorter than 16 bytes", i)
		}
		key := make([]byte, 32)
		if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(hkdfInfo)), key); err != nil {
			return nil, fmt.Errorf("derive consent key: %w", err)
		}
		kid := keyID(key)
		s.keys[kid] = key
		if i == 0 {
			s.current = kid
		}
	}
	return s, nil
}

func keyID(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:4])
}

func (s *Signer) sign(c claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	tok.Header["kid"] = s.current
	signed, err := tok.SignedString(s.keys[s.current])
	if err != nil {
		return "", fmt.Errorf("sign consent token: %w", err)
	}
	return signed, nil
}

// parse checks the signature only. Expiry and audience are checked by the
// manager so failures are reported in a fixed order.
func (s *Signer) parse(signed string) (*claims, error) {
	parsed, err := jwt.ParseWithClaims(signed, &claims{}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		key, ok := s.keys[kid]
		if !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, err
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || c.ID == "" || c.ExpiresAt == nil || c.Issuer != tokenIssuer {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return c, nil
}
