// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package kodik

import (
	"encoding/base64"
	"errors"
	"strings"
	"unicode/utf8"

	xglog "github.com/ManuGH/kodikplay/internal/log"
)

const (
	cipherShift = 18
	hlsSuffix   = ".m3u8"
)

var (
	errEmptyDecode   = errors.New("decoded url is empty")
	errInvalidBase64 = errors.New("malformed base64")
	errInvalidUTF8   = errors.New("decoded url is not valid utf-8")
)

// Rotate shifts ASCII letters by n positions, wrapping A-Z and a-z independently.
// Every other byte passes through.
func Rotate(s string, n int) string {
	n = ((n % 26) + 26) % 26
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
			c = 'A' + (c-'A'+byte(n))%26
		case c >= 'a' && c <= 'z':
			c = 'a' + (c-'a'+byte(n))%26
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Decode turns an obfuscated source fragment into a playable https URL.
// It returns "" when the fragment cannot be decoded.
func Decode(raw string) string {
	out, err := decodeSource(raw)
	if err != nil {
		logger := xglog.WithComponent("extract.kodik")
		logger.Warn().Err(err).Str(xglog.FieldEvent, "kodik.decode_failed").Msg("error decoding url")
		return ""
	}
	return out
}

// Encode is the inverse of Decode for fragments that are obfuscated.
func Encode(plain string) string {
	return Rotate(base64.StdEncoding.EncodeToString([]byte(plain)), 26-cipherShift)
}

func decodeSource(raw string) (string, error) {
	if strings.HasSuffix(raw, hlsSuffix) {
		return withScheme(raw), nil
	}

	data, err := decodeBase64(Rotate(raw, cipherShift))
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errEmptyDecode
	}
	if !utf8.Valid(data) {
		return "", errInvalidUTF8
	}
	return withScheme(string(data)), nil
}

func withScheme(u string) string {
	if strings.HasPrefix(u, "https") {
		return u
	}
	return "https:" + u
}

// decodeBase64 accepts padded or unpadded, standard or url-safe alphabets.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if data, err := enc.DecodeString(s); err == nil {
			return data, nil
		}
	}
	return nil, errInvalidBase64
}
