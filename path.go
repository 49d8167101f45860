package clientele

import (
	"net/url"
	"strings"

	cerrors "github.com/phalt/clientele/errors"
)

// pathKeys returns placeholder names from a path template, in template
// order. A placeholder is written {name} and may occupy any part of a
// segment, e.g. "/files/{name}.json".
func pathKeys(mask string) []string {
	result := make([]string, 0, strings.Count(mask, "{"))
	for {
		open := strings.IndexByte(mask, '{')
		if open < 0 {
			return result
		}
		closing := strings.IndexByte(mask[open:], '}')
		if closing < 0 {
			return result
		}
		result = append(result, mask[open+1:open+closing])
		mask = mask[open+closing+1:]
	}
}

// validPathTemplate reports whether every brace in mask belongs to a
// well-formed, non-empty {name} placeholder.
func validPathTemplate(mask string) bool {
	for {
		open := strings.IndexByte(mask, '{')
		closing := strings.IndexByte(mask, '}')
		if open < 0 && closing < 0 {
			return true
		}
		if open < 0 || closing < open+2 {
			return false
		}
		if strings.IndexByte(mask[open+1:closing], '{') >= 0 {
			return false
		}
		mask = mask[closing+1:]
	}
}

// buildPath substitutes placeholder values into the template. The string
// form of each value is percent-encoded. A placeholder without a value
// resolves to a BindingError; the caller must not have started any I/O.
func buildPath(mask string, key2value map[string]string) (string, error) {
	var b strings.Builder
	b.Grow(len(mask))
	rest := mask
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		key := rest[open+1 : open+closing]
		value, has := key2value[key]
		if !has {
			return "", &cerrors.BindingError{Placeholder: key, Path: mask}
		}
		b.WriteString(rest[:open])
		b.WriteString(url.PathEscape(value))
		rest = rest[open+closing+1:]
	}
}
