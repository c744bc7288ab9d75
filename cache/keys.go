package cache

import "strings"

const distributedSegment = "distributed"

// Namespacer builds the fully-qualified keys stored in the backend.
// Separator characters inside a logical key are not escaped.
type Namespacer struct {
	prefix string
}

// NewNamespacer returns a Namespacer for the given prefix.
func NewNamespacer(prefix string) Namespacer {
	return Namespacer{prefix: prefix}
}

// Prefix returns the configured key prefix.
func (n Namespacer) Prefix() string {
	return n.prefix
}

// FullKey returns "{prefix}:distributed:{key}".
func (n Namespacer) FullKey(key string) string {
	return n.namespace() + key
}

// Pattern returns the backend glob for a logical pattern. Glob characters in the
// logical pattern are passed through.
func (n Namespacer) Pattern(pattern string) string {
	return n.FullKey(pattern)
}

// LogicalKey strips the namespace from a full key. Keys outside the namespace are
// returned unchanged.
func (n Namespacer) LogicalKey(full string) string {
	return strings.TrimPrefix(full, n.namespace())
}

func (n Namespacer) namespace() string {
	return n.prefix + ":" + distributedSegment + ":"
}
