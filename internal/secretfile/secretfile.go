// Package secretfile loads Vault-Agent-rendered secrets into the process
// environment. The injector sidecar writes a shell-sourceable file of
// `export KEY="value"` lines; the container used to source it before exec,
// this package reads it directly so no shell is involved.
package secretfile

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Load reads the secrets file at path and sets each exported key into the
// process environment. Keys already present in the environment win, so
// explicit overrides in the deployment keep working.
func Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening secrets file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		key, value, ok, err := parseLine(scanner.Text())
		if err != nil {
			return fmt.Errorf("secrets file %s line %d: %w", path, lineNo, err)
		}
		if !ok {
			continue
		}
		if os.Getenv(key) != "" {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("setting %s: %w", key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading secrets file: %w", err)
	}
	return nil
}

// parseLine parses a single line of the rendered file. Blank lines and
// comments yield ok=false. Values may be double-quoted, single-quoted or
// bare; double-quoted values honor \" and \\ escapes.
func parseLine(line string) (key, value string, ok bool, err error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", "", false, nil
	}

	rest, found := strings.CutPrefix(trimmed, "export ")
	if !found {
		// Vault templates sometimes emit plain KEY=value assignments.
		rest = trimmed
	}

	key, value, found = strings.Cut(strings.TrimSpace(rest), "=")
	if !found {
		return "", "", false, fmt.Errorf("no assignment in %q", line)
	}
	key = strings.TrimSpace(key)
	if !validKey(key) {
		return "", "", false, fmt.Errorf("invalid key %q", key)
	}

	value, err = unquote(strings.TrimSpace(value))
	if err != nil {
		return "", "", false, err
	}
	return key, value, true, nil
}

func validKey(key string) bool {
	if key == "" {
		return false
	}
	for i, c := range key {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func unquote(v string) (string, error) {
	if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		return v[1 : len(v)-1], nil
	}
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		inner := v[1 : len(v)-1]
		var b strings.Builder
		escaped := false
		for _, c := range inner {
			if escaped {
				b.WriteRune(c)
				escaped = false
				continue
			}
			if c == '\\' {
				escaped = true
				continue
			}
			b.WriteRune(c)
		}
		if escaped {
			return "", fmt.Errorf("dangling escape in %q", v)
		}
		return b.String(), nil
	}
	if strings.HasPrefix(v, "\"") || strings.HasPrefix(v, "'") {
		return "", fmt.Errorf("unterminated quote in %q", v)
	}
	return v, nil
}
