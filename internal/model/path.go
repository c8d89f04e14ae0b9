package model

import (
	"fmt"
	"path"
	"strings"
)

// ValidatePath enforces the grammar from spec.md §3: a UTF-8 absolute,
// "/"-separated path, no empty components except the root "/", no
// trailing slash except the root. Paths are case-sensitive.
func ValidatePath(p string) error {
	if p == "" || p[0] != '/' {
		return fmt.Errorf("%w: path %q must be absolute", ErrInvalidArgument, p)
	}
	if p == "/" {
		return nil
	}
	if strings.HasSuffix(p, "/") {
		return fmt.Errorf("%w: path %q has a trailing slash", ErrInvalidArgument, p)
	}
	for _, segment := range strings.Split(p[1:], "/") {
		if segment == "" {
			return fmt.Errorf("%w: path %q has an empty component", ErrInvalidArgument, p)
		}
	}
	return nil
}

// ParentPath returns the parent directory path of p. ParentPath("/") is
// undefined and must not be called on the root.
func ParentPath(p string) string {
	dir := path.Dir(p)
	return dir
}

// BaseName returns the final path component.
func BaseName(p string) string {
	return path.Base(p)
}
