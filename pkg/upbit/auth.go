package upbit

import (
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrMissingCredentials is returned by private endpoints when the client was built without keys.
var ErrMissingCredentials = errors.New("upbit: access and secret key required")

// Credentials are the Upbit Open API key pair.
type Credentials struct {
	AccessKey string
	SecretKey string
}

func (c Credentials) valid() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}

// Token builds the HS256 bearer token Upbit expects. A fresh nonce is used per request.
// rawQuery, when not empty, is bound to the token through query_hash.
func (c Credentials) Token(rawQuery string) (string, error) {
	if !c.valid() {
		return "", ErrMissingCredentials
	}

	claims := jwt.MapClaims{
		"access_key": c.AccessKey,
		"nonce":      uuid.NewString(),
	}
	if rawQuery != "" {
		sum := sha512.Sum512([]byte(rawQuery))
		claims["query_hash"] = hex.EncodeToString(sum[:])
		claims["query_hash_alg"] = "SHA512"
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.SecretKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}
