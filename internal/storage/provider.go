// Package storage defines the vault file-system abstraction.
package storage

// Provider is the interface for vault file operations. All paths are
// relative to the vault root.
type Provider interface {
	// List returns every note file path under the root, in walk order.
	List() ([]string, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Exists reports whether a file exists at path.
	Exists(path string) bool
	// Abs resolves path against the vault root, rejecting traversal.
	Abs(path string) (string, error)
}
