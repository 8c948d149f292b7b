// Package room names the scope that signaling messages are broadcast in.
package room

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalid is returned for room ids that cannot be carried in a URL
// fragment or would clash with the "<room>:<type>" message namespace.
var ErrInvalid = errors.New("invalid room id")

// maxLen bounds the id so it stays readable in a URL.
const maxLen = 128

var valid = regexp.MustCompile(`^[a-z0-9-]+$`)

// ID identifies a room. It is immutable for the lifetime of a session.
type ID string

func (id ID) String() string { return string(id) }

// Fragment returns the id as a URL fragment, e.g. "#grate-label-load".
func (id ID) Fragment() string { return "#" + string(id) }

// Generate returns a new three-word id such as "grate-label-load". The words
// come from a small public list, so two independently generated rooms may
// collide.
func Generate() ID {
	return ID(strings.Join([]string{pick(), pick(), pick()}, "-"))
}

func pick() string {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(words))))
	if err != nil {
		panic(fmt.Sprintf("room: read random index: %v", err))
	}
	return words[n.Int64()]
}

// Parse validates s as a room id.
func Parse(s string) (ID, error) {
	if s == "" || len(s) > maxLen || !valid.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	return ID(s), nil
}

// Resolve extracts the room from raw, which may be a full URL carrying the id
// in its fragment, a bare "#id", or the id itself. When no id is present a new
// one is generated, as a browser does for a URL without a fragment.
func Resolve(raw string) (ID, error) {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		frag, err := url.PathUnescape(raw[i+1:])
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		raw = frag
	} else if strings.Contains(raw, "://") {
		raw = ""
	}
	if raw == "" {
		return Generate(), nil
	}
	return Parse(raw)
}
