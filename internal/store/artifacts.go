// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/pdiddy/pii-masker/internal/maskerr"
)

// MaskedPrefix is prepended to the name of every masked artifact.
const MaskedPrefix = "masked_"

// ErrUnsafeName rejects names that would escape the artifact directory.
var ErrUnsafeName = errors.New("unsafe file name")

// Artifacts is the directory holding uploaded originals and their masked
// copies. Every name handed to it must be a plain file name.
type Artifacts struct {
	Dir string
}

// NewArtifacts creates dir if needed.
func NewArtifacts(dir string) (*Artifacts, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating artifact directory")
	}
	return &Artifacts{Dir: dir}, nil
}

// MaskedName returns the artifact name for an original.
func MaskedName(name string) string {
	return MaskedPrefix + name
}

func (a *Artifacts) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name || !filepath.IsLocal(name) {
		return "", errors.Wrapf(ErrUnsafeName, "%q", name)
	}
	return filepath.Join(a.Dir, name), nil
}

// Source resolves an original. A missing file is marked maskerr.ErrNotFound.
func (a *Artifacts) Source(name string) (string, error) {
	p, err := a.path(name)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return "", maskerr.NotFound(name)
	}
	return p, nil
}

// Output returns where the masked copy of name is written.
func (a *Artifacts) Output(name string) (string, error) {
	if _, err := a.path(name); err != nil {
		return "", err
	}
	return a.path(MaskedName(name))
}

// Masked returns the path of the masked copy of name when it exists.
func (a *Artifacts) Masked(name string) (string, bool) {
	p, err := a.Output(name)
	if err != nil {
		return "", false
	}
	if info, err := os.Stat(p); err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return p, true
}
