package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed lang/*.yaml
var bundledLocales embed.FS

type Locale struct {
	translations map[string]string
	locale       string
}

var globalLocale *Locale

// InitLocale initializes the global locale system
func InitLocale() error {
	locale := DetectSystemLocale()

	l, err := LoadLocale(locale)
	if err != nil {
		l, err = LoadLocale("en_US")
		if err != nil {
			return fmt.Errorf("failed to load fallback locale en_US: %w", err)
		}
	}

	globalLocale = l
	return nil
}

// DetectSystemLocale reads LANG, LC_ALL and LC_MESSAGES in that order.
func DetectSystemLocale() string {
	for _, key := range []string{"LANG", "LC_ALL", "LC_MESSAGES"} {
		if locale := os.Getenv(key); locale != "" {
			// Typically "en_US.UTF-8"
			parts := strings.Split(locale, ".")
			if parts[0] != "" && parts[0] != "C" && parts[0] != "POSIX" {
				return parts[0]
			}
		}
	}
	return "en_US"
}

// LoadLocale prefers a lang/ directory next to the executable, so operators
// can drop in translations, and falls back to the catalogues built into the
// binary.
func LoadLocale(locale string) (*Locale, error) {
	var data []byte
	var err error

	if exePath, exeErr := os.Executable(); exeErr == nil {
		data, err = os.ReadFile(filepath.Join(filepath.Dir(exePath), "lang", locale+".yaml"))
	}
	if data == nil {
		data, err = bundledLocales.ReadFile("lang/" + locale + ".yaml")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read locale %s: %w", locale, err)
	}

	return parseLocale(locale, data)
}

func parseLocale(locale string, data []byte) (*Locale, error) {
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("failed to parse locale %s: %w", locale, err)
	}

	return &Locale{
		translations: translations,
		locale:       locale,
	}, nil
}

// T translates a key with optional parameters
// Usage: T("greeting", "name", "John") => "Hello, John!"
func T(key string, params ...interface{}) string {
	if globalLocale == nil {
		return key
	}

	translation, ok := globalLocale.translations[key]
	if !ok {
		return key
	}

	if len(params) > 0 {
		return fmt.Sprintf(translation, params...)
	}

	return translation
}

// GetLocale returns the current locale code (e.g., "en_US")
func GetLocale() string {
	if globalLocale == nil {
		return "en_US"
	}
	return globalLocale.locale
}
