// Package validation содержит функции валидации входных данных.
package validation

import "strings"

const cnpjLength = 14

// NormalizeCNPJ удаляет из строки все символы, кроме цифр.
func NormalizeCNPJ(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if ch := raw[i]; ch >= '0' && ch <= '9' {
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// IsValidCNPJ проверяет CNPJ: 14 цифр после очистки, не все цифры одинаковы,
// обе контрольные цифры совпадают с вычисленными по модулю 11.
func IsValidCNPJ(raw string) bool {
	digits := NormalizeCNPJ(raw)
	if len(digits) != cnpjLength {
		return false
	}

	if allSame(digits) {
		return false
	}

	if checkDigit(digits[:12]) != int(digits[12]-'0') {
		return false
	}

	return checkDigit(digits[:13]) == int(digits[13]-'0')
}

// checkDigit вычисляет контрольную цифру: веса 2..9 справа налево с повтором.
func checkDigit(segment string) int {
	sum := 0
	weight := 2

	for i := len(segment) - 1; i >= 0; i-- {
		sum += int(segment[i]-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}

	remainder := sum % 11
	if remainder < 2 {
		return 0
	}
	return 11 - remainder
}

func allSame(digits string) bool {
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			return false
		}
	}
	return true
}

// FormatCNPJ возвращает CNPJ в виде NN.NNN.NNN/NNNN-NN.
// Строки, в которых после очистки не 14 цифр, возвращаются без изменений.
func FormatCNPJ(raw string) string {
	d := NormalizeCNPJ(raw)
	if len(d) != cnpjLength {
		return raw
	}
	return d[0:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:14]
}
