// Пакет auth — учётные данные и сессионные токены:
// bcrypt-хэширование паролей, генерация временных паролей,
// выпуск и проверка JWT (HS256).
package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost — стоимость bcrypt по умолчанию.
const DefaultBcryptCost = 12

// Алфавиты временного пароля. Визуально неоднозначные символы
// (0/O, 1/l/I) исключены.
const (
	tempUpper   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	tempLower   = "abcdefghjkmnpqrstuvwxyz"
	tempDigits  = "23456789"
	tempSymbols = "!@#$%"
)

// HashPassword возвращает bcrypt-хэш пароля с указанной стоимостью.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return "", fmt.Errorf("недопустимая стоимость bcrypt: %d", cost)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("ошибка хэширования пароля: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword сверяет пароль с bcrypt-хэшем.
// Возвращает false и при некорректном хэше.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateTempPassword генерирует временный пароль длиной length
// на криптографическом источнике случайности. Гарантируется хотя бы
// один символ каждого класса (верхний/нижний регистр, цифра,
// спецсимвол), позиции перемешиваются.
func GenerateTempPassword(length int) (string, error) {
	if length < 4 {
		return "", fmt.Errorf("длина временного пароля %d меньше минимальной 4", length)
	}

	full := tempUpper + tempLower + tempDigits + tempSymbols

	chars := make([]byte, 0, length)

	// По одному символу из каждого класса
	for _, alphabet := range []string{tempUpper, tempLower, tempDigits, tempSymbols} {
		c, err := randomChar(alphabet)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}

	// Остаток — из полного алфавита
	for len(chars) < length {
		c, err := randomChar(full)
		if err != nil {
			return "", err
		}
		chars = append(chars, c)
	}

	// Перемешивание Фишера-Йетса, чтобы обязательные классы
	// не стояли на фиксированных позициях
	for i := len(chars) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", fmt.Errorf("ошибка генератора случайности: %w", err)
		}
		j := n.Int64()
		chars[i], chars[j] = chars[j], chars[i]
	}

	return string(chars), nil
}

// randomChar возвращает случайный символ алфавита.
func randomChar(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, fmt.Errorf("ошибка генератора случайности: %w", err)
	}
	return alphabet[n.Int64()], nil
}
