package config

import (
	"bufio"
	"os"
	"strings"
)

// LoadDotEnv reads a .env file into the process environment so the env
// layer of Load picks it up. Variables already set are left untouched.
func LoadDotEnv(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err // caller decides whether a missing file matters
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}

	return scanner.Err()
}
