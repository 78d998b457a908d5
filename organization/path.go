package organization

import "strings"

// Separator delimits qualified name segments.
const Separator = "/"

// QualifiedName joins a parent qualified name and a leaf name. An empty
// parent yields the bare name.
func QualifiedName(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + Separator + name
}

// Parent returns the qualified name without its last segment, or "" for a
// root.
func Parent(qualifiedName string) string {
	i := strings.LastIndex(qualifiedName, Separator)
	if i < 0 {
		return ""
	}
	return qualifiedName[:i]
}

// Leaf returns the last segment of a qualified name.
func Leaf(qualifiedName string) string {
	i := strings.LastIndex(qualifiedName, Separator)
	if i < 0 {
		return qualifiedName
	}
	return qualifiedName[i+1:]
}

// Rename replaces the last segment of qualifiedName with name.
func Rename(qualifiedName, name string) string {
	return QualifiedName(Parent(qualifiedName), name)
}

// Rebase moves qualifiedName from under oldPrefix to under newPrefix. It
// matches whole segments only, so "a/bc" is not under "a/b". The second
// result is false when qualifiedName is not a descendant of oldPrefix.
func Rebase(qualifiedName, oldPrefix, newPrefix string) (string, bool) {
	rest, ok := strings.CutPrefix(qualifiedName, oldPrefix+Separator)
	if !ok || rest == "" {
		return qualifiedName, false
	}
	return newPrefix + Separator + rest, true
}

// IsDescendant reports whether qualifiedName lies strictly below ancestor.
func IsDescendant(qualifiedName, ancestor string) bool {
	_, ok := Rebase(qualifiedName, ancestor, ancestor)
	return ok
}
