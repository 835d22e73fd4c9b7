package utils

import (
	"fmt"
	"os"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
)

type JwtCustomClaim struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.StandardClaims
}

func getJwtSecret() []byte {
	secret := os.Getenv("API_SECRET")
	if secret == "" {
		return []byte("Bookkeeping-Secret")
	}
	return []byte(secret)
}

// JwtGenerate signs a session token. The returned session id is the jti claim,
// which is also the redis key used for revocation.
func JwtGenerate(userID int, email string, role string, lifespan time.Duration) (token string, sessionId string, err error) {
	now := time.Now()
	sessionId = uuid.NewString()

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, &JwtCustomClaim{
		ID:    userID,
		Email: email,
		Role:  role,
		StandardClaims: jwt.StandardClaims{
			Id:        sessionId,
			ExpiresAt: now.Add(lifespan).Unix(),
			IssuedAt:  now.Unix(),
		},
	})

	token, err = t.SignedString(getJwtSecret())
	if err != nil {
		return "", "", err
	}
	return token, sessionId, nil
}

func JwtValidate(token string) (*jwt.Token, error) {
	return jwt.ParseWithClaims(token, &JwtCustomClaim{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("there's a problem with the signing method")
		}
		return getJwtSecret(), nil
	})
}

// ParseSessionToken validates token and returns its claims.
func ParseSessionToken(token string) (*JwtCustomClaim, error) {
	parsed, err := JwtValidate(token)
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*JwtCustomClaim)
	if !ok || !parsed.Valid || claims.ID <= 0 {
		return nil, ErrorUnauthorized
	}
	return claims, nil
}
