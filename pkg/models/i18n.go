package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
)

// Language is a storefront language code
type Language string

const (
	LangKa Language = "ka"
	LangEn Language = "en"
	LangRu Language = "ru"

	DefaultLanguage = LangKa
)

// SupportedLanguages lists languages in fallback order
var SupportedLanguages = []Language{LangKa, LangEn, LangRu}

// ParseLanguage normalizes a language tag ("en-US", "RU", "ka_GE") to a supported
// language, falling back to Georgian.
func ParseLanguage(raw string) Language {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if i := strings.IndexAny(raw, "-_"); i > 0 {
		raw = raw[:i]
	}
	switch Language(raw) {
	case LangKa, LangEn, LangRu:
		return Language(raw)
	}
	return DefaultLanguage
}

// LocalizedText holds one string per supported language, stored as jsonb
type LocalizedText struct {
	Ka string `json:"ka"`
	En string `json:"en"`
	Ru string `json:"ru"`
}

// In returns the raw value for a language without fallback
func (t LocalizedText) In(lang Language) string {
	switch lang {
	case LangEn:
		return t.En
	case LangRu:
		return t.Ru
	default:
		return t.Ka
	}
}

// Get returns the value for lang, falling back through ka, en, ru
func (t LocalizedText) Get(lang Language) string {
	if v := t.In(lang); v != "" {
		return v
	}
	for _, l := range SupportedLanguages {
		if v := t.In(l); v != "" {
			return v
		}
	}
	return ""
}

// Set assigns the value for a language
func (t *LocalizedText) Set(lang Language, value string) {
	switch lang {
	case LangEn:
		t.En = value
	case LangRu:
		t.Ru = value
	default:
		t.Ka = value
	}
}

// Missing returns the languages that have no value
func (t LocalizedText) Missing() []Language {
	var missing []Language
	for _, l := range SupportedLanguages {
		if strings.TrimSpace(t.In(l)) == "" {
			missing = append(missing, l)
		}
	}
	return missing
}

// IsEmpty reports whether no language has a value
func (t LocalizedText) IsEmpty() bool {
	return len(t.Missing()) == len(SupportedLanguages)
}

// Value implements driver.Valuer
func (t LocalizedText) Value() (driver.Value, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (t *LocalizedText) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*t = LocalizedText{}
		return nil
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	}
	return errors.New("unsupported type for LocalizedText")
}

// GormDataType tells GORM to use jsonb
func (LocalizedText) GormDataType() string {
	return "jsonb"
}

// JSONMap is a free-form jsonb object
type JSONMap map[string]interface{}

// Value implements driver.Valuer
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (m *JSONMap) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*m = JSONMap{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	}
	return errors.New("unsupported type for JSONMap")
}

// GormDataType tells GORM to use jsonb
func (JSONMap) GormDataType() string {
	return "jsonb"
}

// StringList is a jsonb array of strings
type StringList []string

// Value implements driver.Valuer
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (l *StringList) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*l = StringList{}
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	}
	return errors.New("unsupported type for StringList")
}

// GormDataType tells GORM to use jsonb
func (StringList) GormDataType() string {
	return "jsonb"
}
