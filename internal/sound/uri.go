package sound

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

var (
	errRemoteHost = errors.New("sound file uri: remote host")
	errNUL        = errors.New("sound file uri: NUL byte")
	errNotAbs     = errors.New("sound file uri: path is not absolute")
	errNotUTF8    = errors.New("sound file uri: path is not valid UTF-8")
)

// resolveSoundFile turns a sound-file hint into a local path. file:// URIs
// are decoded strictly; anything else is used as a path after trimming.
func resolveSoundFile(value string) (string, error) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "file://") {
		return value, nil
	}
	return decodeFileURI(value)
}

// decodeFileURI accepts only local file URIs (empty host or localhost).
func decodeFileURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("sound file uri: %w", err)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", errRemoteHost
	}
	switch {
	case strings.ContainsRune(u.Path, 0):
		return "", errNUL
	case !strings.HasPrefix(u.Path, "/"):
		return "", errNotAbs
	case !utf8.ValidString(u.Path):
		return "", errNotUTF8
	}
	return u.Path, nil
}
