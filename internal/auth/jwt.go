package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	once          sync.Once
	jwtSecret     []byte
	refreshSecret []byte

	accessTokenMinutes = 15
	refreshTokenDays   = 7
	rememberDays       = 30
)

// CookieSecure controls the Secure flag on the refresh cookie. Disable via
// COOKIE_SECURE=false for local HTTP development.
var CookieSecure = true

func loadSecrets() {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		// Ephemeral secret: tokens survive only for the lifetime of the
		// process. Fine for development and tests, useless in production.
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			panic(err)
		}
		secret = hex.EncodeToString(buf)
		log.Println("WARNING: JWT_SECRET not set, using ephemeral secret")
	}
	jwtSecret = []byte(secret)

	refresh := os.Getenv("JWT_REFRESH_SECRET")
	if refresh == "" {
		refresh = secret + "-refresh"
	}
	refreshSecret = []byte(refresh)

	if os.Getenv("COOKIE_SECURE") == "false" {
		CookieSecure = false
	}
	if v := os.Getenv("ACCESS_TOKEN_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			accessTokenMinutes = n
		}
	}
	if v := os.Getenv("REFRESH_TOKEN_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			refreshTokenDays = n
		}
	}
	if v := os.Getenv("REMEMBER_REFRESH_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			rememberDays = n
		}
	}
}

type Claims struct {
	UserID    int    `json:"user_id"`
	Username  string `json:"username"`
	TokenType string `json:"token_type,omitempty"` // "access" or "refresh"
	jwt.RegisteredClaims
}

// GenerateToken creates a short-lived access token.
func GenerateToken(userID int, username string) (string, error) {
	once.Do(loadSecrets)
	claims := Claims{
		UserID:    userID,
		Username:  username,
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(accessTokenMinutes) * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// GenerateRefreshToken creates a refresh token valid for the given number of
// days (falls back to the configured default when days <= 0).
func GenerateRefreshToken(userID int, username string, days int) (string, error) {
	once.Do(loadSecrets)
	if days <= 0 {
		days = refreshTokenDays
	}
	claims := Claims{
		UserID:    userID,
		Username:  username,
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(days) * 24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(refreshSecret)
}

func parseClaims(tokenString string, secret []byte, wantType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.TokenType != wantType {
		return nil, errors.New("invalid token type")
	}
	return claims, nil
}

func ValidateToken(tokenString string) (*Claims, error) {
	once.Do(loadSecrets)
	return parseClaims(tokenString, jwtSecret, "access")
}

func ValidateRefreshToken(tokenString string) (*Claims, error) {
	once.Do(loadSecrets)
	return parseClaims(tokenString, refreshSecret, "refresh")
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

func CheckPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// RefreshDays returns the refresh token TTL in days for the remember flag.
func RefreshDays(remember bool) int {
	once.Do(loadSecrets)
	if remember {
		return rememberDays
	}
	return refreshTokenDays
}
