package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL – срок жизни токена сессии
const DefaultTokenTTL = 24 * time.Hour

// ErrInvalidToken – токен не прошёл проверку
var ErrInvalidToken = errors.New("недействительный токен")

// JWTService отвечает за создание и валидацию JWT токенов
type JWTService struct {
	secretKey string
	ttl       time.Duration
	now       func() time.Time
}

// NewJWTService создаёт новый экземпляр JWTService
func NewJWTService(secretKey string) *JWTService {
	return &JWTService{secretKey: secretKey, ttl: DefaultTokenTTL, now: time.Now}
}

// GenerateToken создаёт JWT токен с uid пользователя
func (s *JWTService) GenerateToken(uid string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": uid,
		"iat":     s.now().Unix(),
		"exp":     s.now().Add(s.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secretKey))
}

// ValidateToken проверяет подпись и срок действия JWT токена
func (s *JWTService) ValidateToken(tokenString string) (*jwt.Token, error) {
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.secretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
}

// ExtractUserID проверяет токен и достаёт из него uid
func (s *JWTService) ExtractUserID(tokenString string) (string, error) {
	token, err := s.ValidateToken(tokenString)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	uid, ok := claims["user_id"].(string)
	if !ok || uid == "" {
		return "", fmt.Errorf("%w: нет user_id", ErrInvalidToken)
	}
	return uid, nil
}
