package staff

import (
	_ "embed"
	"errors"
	"strings"
	"unicode"
)

const (
	minPasswordLength = 8
	// bcrypt only accepts this many bytes
	maxPasswordBytes = 72
)

//go:embed common_passwords.txt
var commonPasswordList string

var commonPasswords = func() map[string]struct{} {
	set := make(map[string]struct{})
	for _, line := range strings.Split(commonPasswordList, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			set[strings.ToLower(line)] = struct{}{}
		}
	}
	return set
}()

// passwordRule returns an ozzo rule enforcing the password policy
func passwordRule(username string) func(value interface{}) error {
	return func(value interface{}) error {
		var password string
		switch v := value.(type) {
		case string:
			password = v
		case *string:
			if v == nil {
				return nil
			}
			password = *v
		default:
			return nil
		}
		return checkPassword(password, username)
	}
}

// checkPassword reports every failed rule in one message
func checkPassword(password, username string) error {
	var problems []string

	if len(password) < minPasswordLength {
		problems = append(problems, "This password is too short. It must contain at least 8 characters.")
	}
	if len(password) > maxPasswordBytes {
		problems = append(problems, "This password is too long. It must contain at most 72 bytes.")
	}
	if password != "" && strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) == -1 {
		problems = append(problems, "This password is entirely numeric.")
	}
	if _, common := commonPasswords[strings.ToLower(password)]; common {
		problems = append(problems, "This password is too common.")
	}
	if username != "" && strings.EqualFold(password, username) {
		problems = append(problems, "The password is too similar to the username.")
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New(strings.Join(problems, " "))
}
