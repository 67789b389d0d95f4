// Package workspace wipes the CI workspace root when it fills up.
//
// Jenkins agents accumulate one directory per job under the workspace
// root and rarely delete them. Wiping the whole root is safe only while
// the node is offline and idle; the monitor loop guarantees that before
// calling Clean.
//
// The root itself is never removed. It is commonly a bind mount or a
// dedicated volume, and removing a mount point fails (EBUSY) or, worse,
// unmounts nothing and leaves the path missing for the next build.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Cleaner removes the contents of a workspace root.
type Cleaner struct {
	log logrus.FieldLogger

	// removeAll is os.RemoveAll; tests inject failures through it.
	removeAll func(path string) error
}

// NewCleaner creates a Cleaner that logs through log.
func NewCleaner(log logrus.FieldLogger) *Cleaner {
	return &Cleaner{log: log, removeAll: os.RemoveAll}
}

// Clean removes every entry under root and returns how many top-level
// entries were removed.
//
// Failures to remove individual entries are logged and skipped, matching
// a best-effort recursive delete: whatever can be freed is freed. After
// the sweep root is guaranteed to exist as a directory; failing to
// (re)create it is the only error returned, since the next build would
// fail without it.
func (c *Cleaner) Clean(root string) (int, error) {
	if err := checkRoot(root); err != nil {
		return 0, err
	}

	c.log.Infof("starting workspace cleanup at '%s'", root)

	entries, err := os.ReadDir(root)
	if err != nil && !os.IsNotExist(err) {
		// Unreadable root: still try to make sure it exists below.
		c.log.WithError(err).Warnf("cannot list workspace root %s", root)
	}

	removed := 0
	for _, e := range entries {
		p := filepath.Join(root, e.Name())
		if err := c.removeAll(p); err != nil {
			c.log.WithError(err).WithField("path", p).Warn("failed to remove workspace entry")
			continue
		}
		removed++
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return removed, fmt.Errorf("failed to recreate workspace root %s: %w", root, err)
	}

	c.log.WithField("removed_entries", removed).Info("finished workspace cleanup")
	return removed, nil
}

// checkRoot refuses paths that must never be wiped.
func checkRoot(root string) error {
	if root == "" || !filepath.IsAbs(root) {
		return fmt.Errorf("workspace root must be an absolute path, got %q", root)
	}
	if filepath.Clean(root) == "/" {
		return fmt.Errorf("refusing to clean the filesystem root")
	}
	return nil
}
