package auth

import (
	"strings"
	"testing"
)

func TestHashPassword_Roundtrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple", 4)
	if err != nil {
		t.Fatalf("HashPassword() вернул ошибку: %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("хэш %q не похож на bcrypt", hash)
	}

	if !VerifyPassword("correct horse battery staple", hash) {
		t.Error("VerifyPassword() не принял правильный пароль")
	}
	if VerifyPassword("wrong password", hash) {
		t.Error("VerifyPassword() принял неправильный пароль")
	}
}

func TestHashPassword_InvalidCost(t *testing.T) {
	tests := []struct {
		name string
		cost int
	}{
		{"ниже минимума", 2},
		{"выше максимума", 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := HashPassword("secret", tt.cost); err == nil {
				t.Errorf("HashPassword(cost=%d) не вернул ошибку", tt.cost)
			}
		})
	}
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	if VerifyPassword("secret", "не-bcrypt-хэш") {
		t.Error("VerifyPassword() принял некорректный хэш")
	}
	if VerifyPassword("secret", "") {
		t.Error("VerifyPassword() принял пустой хэш")
	}
}

func TestGenerateTempPassword(t *testing.T) {
	full := tempUpper + tempLower + tempDigits + tempSymbols

	// Генерация случайна — проверяем свойства на серии паролей
	for i := 0; i < 100; i++ {
		pw, err := GenerateTempPassword(16)
		if err != nil {
			t.Fatalf("GenerateTempPassword() вернул ошибку: %v", err)
		}
		if len(pw) != 16 {
			t.Fatalf("длина = %d, ожидается 16", len(pw))
		}

		var hasUpper, hasLower, hasDigit, hasSymbol bool
		for _, c := range []byte(pw) {
			switch {
			case strings.IndexByte(tempUpper, c) >= 0:
				hasUpper = true
			case strings.IndexByte(tempLower, c) >= 0:
				hasLower = true
			case strings.IndexByte(tempDigits, c) >= 0:
				hasDigit = true
			case strings.IndexByte(tempSymbols, c) >= 0:
				hasSymbol = true
			default:
				t.Fatalf("символ %q вне алфавита", c)
			}
		}
		if !hasUpper || !hasLower || !hasDigit || !hasSymbol {
			t.Fatalf("пароль %q не содержит все классы символов", pw)
		}

		// Неоднозначные символы исключены из алфавита
		for _, bad := range []byte("0O1lIio") {
			if strings.IndexByte(pw, bad) >= 0 && strings.IndexByte(full, bad) < 0 {
				t.Fatalf("пароль %q содержит неоднозначный символ %q", pw, bad)
			}
		}
	}
}

func TestGenerateTempPassword_TooShort(t *testing.T) {
	if _, err := GenerateTempPassword(3); err == nil {
		t.Error("GenerateTempPassword(3) не вернул ошибку")
	}
}
