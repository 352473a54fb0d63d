package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// signingKey is the secret used to sign tokens. The default is only for
// local development; main overrides it from JWT_SECRET.
var signingKey = []byte("my_strong_and_long_secret_key_2026")

// SetSigningKey replaces the token signing secret. Must be called before
// any token is issued or validated.
func SetSigningKey(secret string) {
	signingKey = []byte(secret)
}

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed JWT for a specific user.
func GenerateToken(userID, username string, tokenDuration time.Duration) (string, error) {
	expirationTime := time.Now().Add(tokenDuration)

	claims := &CustomClaims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "chat-relay",
		},
	}

	// HMAC with SHA256; the token carries no sensitive data beyond the ids.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingKey)
}

// ValidateToken parses a JWT string and validates its signature and
// expiration. It returns the embedded claims on success.
func ValidateToken(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return signingKey, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
