// Package utils provides helpers shared by the readalong commands.
package utils

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// ExpandPath expands tilde and all environment variables from the given
// path.
func ExpandPath(path string) string {
	s, err := homedir.Expand(path)
	if err == nil {
		return os.ExpandEnv(s)
	}
	return os.ExpandEnv(path)
}

var schemeRE = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

// ResolveBook turns a command line argument into a bundle location: URLs
// are passed through, everything else becomes an absolute directory.
func ResolveBook(arg string) (string, error) {
	if schemeRE.MatchString(arg) {
		return arg, nil
	}
	if strings.TrimSpace(arg) == "" {
		arg = "."
	}
	return filepath.Abs(ExpandPath(arg))
}
