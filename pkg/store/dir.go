package store

import (
	"os"
	"path/filepath"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var _ Store = &Dir{}

// Dir stores every key as a JSON file below a root directory. The key
// "/tank/level/curve" maps to "<root>/tank/level/curve.json".
type Dir struct {
	root string
}

func NewDir(root string) (*Dir, error) {
	if root == "" {
		return nil, pkgerrors.New("store directory is empty")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to create store directory %s", root)
	}
	return &Dir{root: root}, nil
}

func (d *Dir) Root() string {
	return d.root
}

func (d *Dir) filename(key string) (string, error) {
	cleaned := filepath.Clean("/" + strings.TrimSpace(key))
	if cleaned == "/" {
		return "", pkgerrors.Errorf("invalid key %q", key)
	}
	return filepath.Join(d.root, filepath.FromSlash(cleaned)+".json"), nil
}

func (d *Dir) Get(key string) ([]byte, error) {
	name, err := d.filename(key)
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, pkgerrors.Wrapf(err, "failed to read file %s", name)
	}
	if strings.TrimSpace(string(b)) == "" {
		return nil, ErrNotFound
	}

	return b, nil
}

// Put writes to a temporary file first and renames it, so a power loss in
// the middle of a write leaves the previous value intact.
func (d *Dir) Put(key string, value []byte) error {
	name, err := d.filename(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return pkgerrors.Wrapf(err, "failed to create directory for %s", name)
	}

	fp, err := os.CreateTemp(filepath.Dir(name), filepath.Base(name)+".tmp*")
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to create temporary file for %s", name)
	}
	tmp := fp.Name()

	if _, err := fp.Write(value); err != nil {
		_ = fp.Close()
		_ = os.Remove(tmp)
		return pkgerrors.Wrapf(err, "failed to write file %s", tmp)
	}
	if err := fp.Close(); err != nil {
		_ = os.Remove(tmp)
		return pkgerrors.Wrapf(err, "failed to close file %s", tmp)
	}
	if err := os.Rename(tmp, name); err != nil {
		_ = os.Remove(tmp)
		return pkgerrors.Wrapf(err, "failed to move %s to %s", tmp, name)
	}

	logrus.WithFields(logrus.Fields{
		"key":  key,
		"file": name,
	}).Trace("stored value")

	return nil
}
