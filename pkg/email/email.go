// Package email normalizes administrator addresses that receive registration codes.
package email

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
)

// Normalize trims, lowercases and dedupes addresses, rejecting malformed ones.
func Normalize(addresses []string) ([]string, error) {
	out := make([]string, 0, len(addresses))
	seen := make(map[string]struct{}, len(addresses))
	for _, raw := range addresses {
		addr := strings.ToLower(strings.TrimSpace(raw))
		if addr == "" {
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	for _, addr := range out {
		parsed, err := mail.ParseAddress(addr)
		if err != nil || parsed.Address != addr {
			return nil, fmt.Errorf("invalid email address %q", addr)
		}
	}
	return out, nil
}

// GreetingName derives a first name from the local part, e.g.
// "jane.doe@example.com" yields "Jane". Unparseable input yields "Admin".
func GreetingName(address string) string {
	localPart := address
	if at := strings.IndexByte(address, '@'); at >= 0 {
		localPart = address[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return "Admin"
	}
	return capitalize(parts[0])
}

func capitalize(s string) string {
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
