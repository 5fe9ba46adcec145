package push

import (
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// NormalizePEM turns private key material delivered through environment
// variables into well-formed PEM. Deployment tooling tends to mangle keys in
// two ways: real newlines become literal \n escapes, and sometimes the PEM
// armor is stripped entirely, leaving bare base64. Both APNs and FCM keys go
// through this same path.
func NormalizePEM(raw, blockType string) ([]byte, error) {
	s := strings.ReplaceAll(raw, `\n`, "\n")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty private key")
	}

	if strings.Contains(s, "-----BEGIN") {
		if block, _ := pem.Decode([]byte(s + "\n")); block == nil {
			return nil, errors.New("malformed PEM block in private key")
		}
		return []byte(s + "\n"), nil
	}

	// Armor-stripped: the remaining text must be the base64 body.
	compact := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)

	der, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("decode private key base64: %w", err)
	}

	return pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der}), nil
}
