package mirror

import "bytes"

// ZipMagic is the ZIP local-file-header signature that every .osz/.osz2
// archive must begin with.
var ZipMagic = []byte{0x50, 0x4B, 0x03, 0x04}

// ValidationConfig controls the body-shape checks applied to archive
// resources before they are handed back to the caller. A mirror that
// serves a body failing validation is treated the same as a transport
// failure (the mirror served garbage): the breaker is penalized and the
// orchestrator tries the next mirror.
type ValidationConfig struct {
	// ZipMagic is the required prefix for OSZ_FILE/OSZ2_FILE bodies.
	ZipMagic []byte
	// MinimumArchiveBytes is an optional lower bound on archive size,
	// in addition to the magic-prefix check. Zero disables it. One
	// historical deployment of this system enforced 20,000 bytes; the
	// bound is left deployer-configurable rather than hardcoded.
	MinimumArchiveBytes int
}

// DefaultValidationConfig matches the canonical, magic-only form
// described by the spec: no minimum size bound.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{ZipMagic: ZipMagic}
}

// ValidateBody reports whether data is an acceptable body for
// resource. Non-archive resources have no body-shape check.
func (c ValidationConfig) ValidateBody(resource Resource, data []byte) bool {
	if !resource.IsArchive() {
		return true
	}
	magic := c.ZipMagic
	if len(magic) == 0 {
		magic = ZipMagic
	}
	if !bytes.HasPrefix(data, magic) {
		return false
	}
	return c.MinimumArchiveBytes <= 0 || len(data) >= c.MinimumArchiveBytes
}
