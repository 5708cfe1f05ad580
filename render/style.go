package render

import (
	"regexp"
	"strings"
)

var backgroundImagePattern = regexp.MustCompile(`background-image:\s*url\(['"]?(.*?)['"]?\)`)

// rewriteStyle replaces every local background-image URL in a CSS block with
// a cid: reference. Declarations are split on ';', trimmed and re-joined with
// "; ". Text around a matched declaration, such as a selector, is kept.
func rewriteStyle(css string, stageRef func(ref string) (string, error)) (string, error) {
	decls := strings.Split(css, ";")
	out := make([]string, 0, len(decls))

	for _, decl := range decls {
		if strings.Contains(decl, "background-image") {
			if loc := backgroundImagePattern.FindStringSubmatchIndex(decl); loc != nil {
				ref := decl[loc[2]:loc[3]]
				if isLocalRef(ref) {
					id, err := stageRef(ref)
					if err != nil {
						return "", err
					}
					decl = decl[:loc[0]] + "background-image: url(cid:" + id + ")" + decl[loc[1]:]
				}
			}
		}
		out = append(out, strings.TrimSpace(decl))
	}

	return strings.Join(out, "; "), nil
}

// isLocalRef reports whether ref names a file rather than a remote,
// inline or already-rewritten resource.
func isLocalRef(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return false
	}
	lower := strings.ToLower(ref)
	for _, prefix := range []string{"http:", "https:", "//", "data:", "cid:"} {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	return true
}
