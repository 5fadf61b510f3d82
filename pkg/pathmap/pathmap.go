// Package pathmap translates between local filesystem paths and namespaced
// remote keys of the form "{namespace}/{relative/path}".
//
// Keys always use "/" as separator whatever the local OS. The mapping is a
// pure function of its inputs and is bijective for paths whose segments do
// not contain a literal "/".
//
// Namespaces isolate users by prefix convention only: nothing prevents a
// client holding the bucket credentials from writing under another user's
// prefix. Deletion scope is enforced by the transfer engine, not here.
package pathmap

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"unicode"
)

// Separator is the segment separator of remote keys.
const Separator = "/"

// ReservedNamespace holds application data (share codes) and cannot be used as a username.
const ReservedNamespace = "_system"

var (
	// ErrInvalidNamespace is returned for an empty or unsafe namespace.
	ErrInvalidNamespace = errors.New("invalid namespace")
	// ErrInvalidPath is returned when a local path is not contained in its root.
	ErrInvalidPath = errors.New("invalid local path")
	// ErrInvalidKey is returned when a remote key does not belong to the namespace
	// or cannot be mapped safely under a local root.
	ErrInvalidKey = errors.New("invalid remote key")
)

// SanitizeNamespace trims the username and checks it can be used as a key prefix.
func SanitizeNamespace(name string) (string, error) {
	ns := strings.TrimSpace(name)
	switch {
	case ns == "":
		return "", fmt.Errorf("%w: empty", ErrInvalidNamespace)
	case ns == "." || ns == "..":
		return "", fmt.Errorf("%w: %q", ErrInvalidNamespace, ns)
	case ns == ReservedNamespace:
		return "", fmt.Errorf("%w: %q is reserved", ErrInvalidNamespace, ns)
	}
	for _, r := range ns {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return "", fmt.Errorf("%w: %q contains %q", ErrInvalidNamespace, ns, r)
		}
	}
	return ns, nil
}

// Prefix returns the key prefix owned by the namespace, with its trailing separator.
func Prefix(namespace string) string {
	return namespace + Separator
}

// ToRemoteKey maps localPath, which must live under localRoot, to its key.
func ToRemoteKey(namespace, localRoot, localPath string) (string, error) {
	rel, err := filepath.Rel(filepath.Clean(localRoot), filepath.Clean(localPath))
	if err != nil {
		return "", fmt.Errorf("%w: %s is not under %s: %w", ErrInvalidPath, localPath, localRoot, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is not under %s", ErrInvalidPath, localPath, localRoot)
	}
	return Prefix(namespace) + filepath.ToSlash(rel), nil
}

// ToLocalPath maps a key of the namespace to its location under localRoot.
func ToLocalPath(namespace, remoteKey, localRoot string) (string, error) {
	rel, err := relativeKey(namespace, remoteKey)
	if err != nil {
		return "", err
	}
	return filepath.Join(localRoot, filepath.FromSlash(rel)), nil
}

// RelativeKey returns the part of key after "{namespace}/".
func RelativeKey(namespace, key string) (string, error) {
	return relativeKey(namespace, key)
}

func relativeKey(namespace, key string) (string, error) {
	prefix := Prefix(namespace)
	if namespace == "" || !strings.HasPrefix(key, prefix) {
		return "", fmt.Errorf("%w: %q is outside %q", ErrInvalidKey, key, prefix)
	}
	rel := strings.TrimPrefix(key, prefix)
	if rel == "" {
		return "", fmt.Errorf("%w: %q has no object name", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(rel, Separator) {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: %q has an empty or relative segment", ErrInvalidKey, key)
		}
	}
	return rel, nil
}

// InNamespace reports whether key is an object or folder key owned by namespace.
// Keys with relative segments are rejected even when they start with the prefix.
func InNamespace(namespace, key string) bool {
	if namespace == "" {
		return false
	}
	_, err := relativeKey(namespace, strings.TrimSuffix(key, Separator))
	return err == nil
}

// JoinKey builds the key of a path given relative to the namespace root,
// e.g. "docs/a.txt" → "alice/docs/a.txt". A trailing "/" is kept so folder
// keys stay folder keys. The result is validated with InNamespace.
func JoinKey(namespace, rel string) (string, error) {
	rel = strings.TrimLeft(filepath.ToSlash(strings.TrimSpace(rel)), Separator)
	if rel == "" {
		return Prefix(namespace), nil
	}
	folder := strings.HasSuffix(rel, Separator)
	key := Prefix(namespace) + strings.TrimSuffix(rel, Separator)
	if !InNamespace(namespace, key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, rel)
	}
	if folder {
		key += Separator
	}
	return key, nil
}

// BaseName returns the last segment of a key, ignoring a trailing separator.
func BaseName(key string) string {
	return path.Base(strings.TrimSuffix(key, Separator))
}

// Parent returns the folder key containing key, with its trailing separator,
// or "" for a top level key.
func Parent(key string) string {
	dir := path.Dir(strings.TrimSuffix(key, Separator))
	if dir == "." || dir == Separator {
		return ""
	}
	return dir + Separator
}
