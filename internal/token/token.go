package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/iurnickita/foodorder/internal/token/config"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims - утверждения токена, выданного сервисом идентификации
type Claims struct {
	jwt.RegisteredClaims
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

type Token struct {
	cfg config.Config
}

func NewToken(cfg config.Config) *Token {
	return &Token{cfg: cfg}
}

// BuildJWTString подписывает токен для пользователя.
// В проде токены выдает сервис идентификации, здесь это нужно для foodorderctl и тестов.
func (t *Token) BuildJWTString(userID int64, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  strconv.FormatInt(userID, 10),
			IssuedAt: jwt.NewNumericDate(now),
		},
		UserID: userID,
		Role:   role,
	}
	if t.cfg.TokenExp > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(t.cfg.TokenExp))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(t.cfg.SecretKey))
}

// GetClaims проверяет подпись и срок действия токена
func (t *Token) GetClaims(tokenString string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(t.cfg.SecretKey), nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID <= 0 {
		return Claims{}, ErrInvalidToken
	}
	if claims.Role == "" {
		claims.Role = RoleUser
	}
	return claims, nil
}
