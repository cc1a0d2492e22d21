package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Ошибки проверки токена.
var (
	// ErrTokenExpired — срок действия токена истёк
	ErrTokenExpired = errors.New("срок действия токена истёк")
	// ErrTokenInvalid — токен не прошёл проверку (подпись, формат, алгоритм)
	ErrTokenInvalid = errors.New("недействительный токен")
)

// Claims — полезная нагрузка сессионного токена.
// Subject регистрируемых claims содержит UUID пользователя.
// Email и роль — снимок на момент выпуска; действующие значения
// перечитываются из БД на каждом запросе.
type Claims struct {
	jwt.RegisteredClaims
	// Email — почта пользователя на момент выпуска
	Email string `json:"email"`
	// Role — роль пользователя на момент выпуска
	Role string `json:"role"`
}

// TokenService выпускает и проверяет JWT, подписанные HS256
// симметричным секретом сервера.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService создаёт TokenService с секретом и временем жизни токена.
func NewTokenService(secret []byte, ttl time.Duration) *TokenService {
	return &TokenService{secret: secret, ttl: ttl}
}

// TTL возвращает время жизни выпускаемых токенов.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue выпускает токен для пользователя.
func (s *TokenService) Issue(userID, email, role string) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Email: email,
		Role:  role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("ошибка подписи токена: %w", err)
	}
	return signed, nil
}

// Verify проверяет подпись и срок действия токена, возвращает claims.
// Различает истёкший токен (ErrTokenExpired) и недействительный
// (ErrTokenInvalid) — обе ситуации клиент видит как 401.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
