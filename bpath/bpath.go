// Package bpath interprets Blender's path strings: raw, possibly
// non-UTF-8 bytes that may carry the "//" blend-file-relative prefix
// Blender uses throughout its own path handling.
package bpath

import (
	"path"
	"path/filepath"
	"strings"
)

// BlendPath wraps raw path bytes as Blender stored them. Predicates
// and conversions are defined in terms of POSIX-style forward slashes
// plus the Windows drive-letter convention, independent of the host
// OS's own path package, since a .blend file may have been saved on a
// different OS than the one reading it.
type BlendPath struct {
	raw []byte
}

// New wraps raw path bytes.
func New(raw []byte) BlendPath {
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return BlendPath{raw: cp}
}

// NewString wraps a path given as a string.
func NewString(s string) BlendPath { return New([]byte(s)) }

// String renders the path assuming UTF-8 (the presentation assumption
// for outputs; not required on input).
func (p BlendPath) String() string { return string(p.raw) }

// Bytes returns the raw, unvalidated path bytes.
func (p BlendPath) Bytes() []byte { return p.raw }

// IsBlendfileRelative reports a leading "//", Blender's shorthand for
// "relative to the containing blend file's directory".
func (p BlendPath) IsBlendfileRelative() bool {
	return strings.HasPrefix(p.String(), "//")
}

// IsAbsolute reports a POSIX leading '/' or a Windows "X:"-style drive
// prefix. A blendfile-relative "//" path is not absolute.
func (p BlendPath) IsAbsolute() bool {
	if p.IsBlendfileRelative() {
		return false
	}
	s := p.String()
	if strings.HasPrefix(s, "/") {
		return true
	}
	return hasWindowsDrivePrefix(s)
}

func hasWindowsDrivePrefix(s string) bool {
	if len(s) < 2 {
		return false
	}
	c := s[0]
	isLetter := (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
	return isLetter && s[1] == ':'
}

// Absolute converts a blendfile-relative path to an absolute one given
// the host .blend file's path. If the path is already absolute it is
// returned unchanged (as a BlendPath over the same bytes). Non-relative,
// non-absolute paths (rare, but Blender does not always normalize) are
// returned unchanged as well.
func (p BlendPath) Absolute(hostBlendPath string) BlendPath {
	if !p.IsBlendfileRelative() {
		return p
	}
	rel := strings.TrimPrefix(p.String(), "//")
	dir := filepath.Dir(hostBlendPath)
	joined := path.Join(filepath.ToSlash(dir), filepath.ToSlash(rel))
	return NewString(joined)
}

// ToPathBuf returns the path as a host path, unmodified (no "//"
// stripping) — use when the caller already knows the path is absolute.
func (p BlendPath) ToPathBuf() string {
	return filepath.FromSlash(p.String())
}

// ToPathBufStripped strips the "//" prefix (if present) and returns
// the remainder as a host path, the form external_refs are collected
// in by the tracer's expanders.
func (p BlendPath) ToPathBufStripped() string {
	s := p.String()
	s = strings.TrimPrefix(s, "//")
	return filepath.FromSlash(s)
}

// MkRelative produces a blendfile-relative BlendPath ("//" + relative
// segment) when asset and host share a root (same drive letter on
// Windows-style paths; any common prefix on POSIX-style paths);
// otherwise it returns asset unchanged.
func MkRelative(asset, host string) BlendPath {
	assetSlash := filepath.ToSlash(asset)
	hostSlash := filepath.ToSlash(host)

	if hasWindowsDrivePrefix(assetSlash) || hasWindowsDrivePrefix(hostSlash) {
		if !hasWindowsDrivePrefix(assetSlash) || !hasWindowsDrivePrefix(hostSlash) {
			return NewString(asset)
		}
		if strings.ToUpper(assetSlash[:1]) != strings.ToUpper(hostSlash[:1]) {
			return NewString(asset)
		}
	}

	hostDir := path.Dir(hostSlash)
	rel, err := filepath.Rel(hostDir, assetSlash)
	if err != nil {
		return NewString(asset)
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "..") {
		return NewString(asset)
	}
	return NewString("//" + rel)
}
