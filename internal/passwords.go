package internal

import (
	"bufio"
	"fmt"
	"os"
	"slices"
	"strings"
)

// DefaultPasswords returns the passwords tried on every encrypted container
// before any user-supplied ones. The empty string covers unencrypted PKCS#12.
func DefaultPasswords() []string {
	return []string{"", "password", "changeit", "keypassword"}
}

// LoadPasswordsFromFile reads one password per line. Blank lines and lines
// starting with "#" are ignored; surrounding whitespace is trimmed.
func LoadPasswordsFromFile(filename string) ([]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var passwords []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		passwords = append(passwords, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	return passwords, nil
}

// ProcessPasswords merges the defaults, the command line list and the
// optional password file. Duplicates are dropped, first occurrence wins.
func ProcessPasswords(passwordList []string, passwordFile string) ([]string, error) {
	candidates := slices.Concat(DefaultPasswords(), passwordList)
	if passwordFile != "" {
		filePasswords, err := LoadPasswordsFromFile(passwordFile)
		if err != nil {
			return nil, fmt.Errorf("loading passwords from file: %w", err)
		}
		candidates = append(candidates, filePasswords...)
	}

	passwords := candidates[:0]
	seen := make(map[string]struct{}, len(candidates))
	for _, pw := range candidates {
		if _, dup := seen[pw]; dup {
			continue
		}
		seen[pw] = struct{}{}
		passwords = append(passwords, pw)
	}
	return passwords, nil
}
