package importer

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// decodeToUTF8 приводит входные байты к UTF-8. Валидный UTF-8 с
// кириллицей возвращается как есть; иначе перебираются однобайтовые
// кириллические кодировки, Windows-1251 первой — именно в ней 1С
// обычно сохраняет выгрузки.
func decodeToUTF8(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	if utf8.Valid(data) && cyrillicCount(string(data)) > 0 {
		return data, nil
	}

	candidates := []struct {
		name string
		enc  encoding.Encoding
	}{
		{"Windows-1251", charmap.Windows1251},
		{"KOI8-R", charmap.KOI8R},
		{"ISO-8859-5", charmap.ISO8859_5},
	}

	var (
		best      []byte
		bestScore int
	)
	for _, c := range candidates {
		decoded, _, err := transform.Bytes(c.enc.NewDecoder(), data)
		if err != nil || !utf8.Valid(decoded) {
			continue
		}
		if score := cyrillicScore(string(decoded)); score > bestScore {
			best = decoded
			bestScore = score
		}
	}

	if bestScore > 0 {
		return best, nil
	}
	if utf8.Valid(data) {
		// Файл без кириллицы вообще (например, только артикулы)
		return data, nil
	}
	return nil, fmt.Errorf("не удалось подобрать кодировку")
}

func cyrillicCount(s string) int {
	count := 0
	for _, r := range s {
		if unicode.Is(unicode.Cyrillic, r) {
			count++
		}
	}
	return count
}

// cyrillicScore оценивает правдоподобие декодирования. Строчные буквы
// весят вдвое больше прописных: при неверной однобайтовой кодировке
// регистр кириллицы переворачивается, и обычный текст каталога
// (в основном строчный) получает низкую оценку.
func cyrillicScore(s string) int {
	score := 0
	for _, r := range s {
		switch {
		case unicode.Is(unicode.Cyrillic, r) && unicode.IsLower(r):
			score += 2
		case unicode.Is(unicode.Cyrillic, r):
			score++
		}
	}
	return score
}
