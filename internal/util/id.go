package util

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// Entity id prefixes.
const (
	PrefixWorkspace = "ws"
	PrefixBoard     = "brd"
	PrefixList      = "lst"
	PrefixCard      = "crd"
	PrefixChecklist = "chk"
	PrefixUser      = "usr"
	PrefixActivity  = "act"
)

func NewID(prefix string) string {
	id := strings.ToLower(ulid.Make().String())
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}

// ValidID reports whether id has the shape "<prefix>_<ulid>".
func ValidID(prefix, id string) bool {
	rest, ok := strings.CutPrefix(id, prefix+"_")
	if !ok || rest == "" {
		return false
	}
	_, err := ulid.ParseStrict(strings.ToUpper(rest))
	return err == nil
}
