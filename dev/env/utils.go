package devenv

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const moduleName = "inventory-scrapers"

// StatePrefix marks paths that live in the workspace's dev/.state directory.
const StatePrefix = "<dev_state>"

var modName = regexp.MustCompile(`(?m)^module +([\w\-_./]+)\s*$`)

func isWorkspaceRoot(currentdir string) bool {
	mod, err := os.ReadFile(filepath.Join(currentdir, "go.mod"))
	if err != nil {
		return false
	}
	matches := modName.FindSubmatch(mod)
	return len(matches) >= 2 && string(matches[1]) == moduleName
}

func GetWorkspaceRoot() (string, error) {
	currentdir, err := filepath.Abs(".")
	if err != nil {
		return "", err
	}

	for {
		if isWorkspaceRoot(currentdir) {
			return currentdir, nil
		}
		parent := filepath.Dir(currentdir)
		if parent == currentdir {
			return "", os.ErrNotExist
		}
		currentdir = parent
	}
}

// StateDir returns dev/.state under the workspace root, creating it.
func StateDir() (string, error) {
	root, err := GetWorkspaceRoot()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(root, "dev", ".state")
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return "", err
	}
	return dir, nil
}

// ResolvePath expands a leading `<dev_state>` segment, other paths are
// returned unchanged.
func ResolvePath(path string) (string, error) {
	if !strings.HasPrefix(path, StatePrefix) {
		return path, nil
	}
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	subpath := strings.TrimLeft(strings.TrimPrefix(path, StatePrefix), `/\`)
	return filepath.Join(dir, filepath.FromSlash(subpath)), nil
}
