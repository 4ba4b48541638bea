package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// DigitsOnly drops every non-digit rune of `s`.
func DigitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// Underscored collapses whitespace runs of `s` into single underscores.
func Underscored(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), "_")
}

// Getwd finds the project root (the closest parent holding go.mod).
// go-test changes the working directory to the package being tested, config & assets are looked up from the root.
// Falls back to the working directory when running outside of the source tree.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}
