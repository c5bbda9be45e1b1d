package library

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// FetchKey is the deterministic identity of one fetched audio file:
// a digest of the source kind and the track input, rendered URL-safe
// so it doubles as a cache file name.
//
// Source and track names are deliberately excluded so renames never
// invalidate a cache entry; any change to the command template or the
// input yields a different key.
type FetchKey string

// KeyFor computes the fetch key for a (source, input) pair.
func KeyFor(src *Source, input string) FetchKey {
	h := sha256.New()
	switch {
	case src.Kind.Shell != nil:
		sh := src.Kind.Shell
		fmt.Fprintf(h, "shell\x00%s\x00", sh.Cmd)
		for _, arg := range sh.Args {
			fmt.Fprintf(h, "%s\x00", arg)
		}
	}
	fmt.Fprintf(h, "\x00%s", input)
	return FetchKey(base64.RawURLEncoding.EncodeToString(h.Sum(nil)))
}

// ParseKey validates that s decodes to a full digest.
func ParseKey(s string) (FetchKey, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("invalid fetch key %q: %w", s, err)
	}
	if len(raw) != sha256.Size {
		return "", fmt.Errorf("invalid fetch key %q: not enough bytes", s)
	}
	return FetchKey(s), nil
}

func (k FetchKey) String() string { return string(k) }
