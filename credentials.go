package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Credentials are the account, address and card values the checkout types
// into the store. They only ever come from the environment.
type Credentials struct {
	Username   string
	Password   string
	Phone      string
	Postcode   string
	Street1    string
	Street2    string
	CardNumber string
	CardExpiry string
	CardCVC    string
}

var requiredEnv = []string{
	"USERNAME", "PASS", "PHONE", "POSTCODE",
	"STREET1", "STREET2", "CARD_NUMBER",
	"CARD_EXPIRY", "CARD_CVC",
}

// LoadCredentials reads envFile (if it exists) into the environment without
// overriding variables already set, then requires every credential.
func LoadCredentials(envFile string) (*Credentials, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	return credentialsFromEnv(os.Getenv)
}

func credentialsFromEnv(getenv func(string) string) (*Credentials, error) {
	var missing []string
	for _, key := range requiredEnv {
		if getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingConfigError{Keys: missing}
	}

	return &Credentials{
		Username:   getenv("USERNAME"),
		Password:   getenv("PASS"),
		Phone:      getenv("PHONE"),
		Postcode:   getenv("POSTCODE"),
		Street1:    getenv("STREET1"),
		Street2:    getenv("STREET2"),
		CardNumber: getenv("CARD_NUMBER"),
		CardExpiry: getenv("CARD_EXPIRY"),
		CardCVC:    getenv("CARD_CVC"),
	}, nil
}
