package signeddownload

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultExpireAfter = 24 * time.Hour

const issuer = "fileconv"

type Client struct {
	jwtSecret []byte
}

type DownloadTokenClaims struct {
	HandleID string `json:"handle"`
	jwt.RegisteredClaims
}

func NewClient(secret []byte) *Client {
	return &Client{
		jwtSecret: secret,
	}
}

// GenerateDownloadToken signs a token for handleID that expires at exp.
// The token id is unique per call so every issued link can be revoked on its own.
func (s *Client) GenerateDownloadToken(handleID, tokenID string, exp time.Time) (string, error) {
	claims := DownloadTokenClaims{
		HandleID: handleID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *Client) ParseDownloadToken(tokenString string) (*DownloadTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &DownloadTokenClaims{}, func(token *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*DownloadTokenClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}
