package artifact

import (
	"archive/zip"
	"io"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	worker "github.com/fluxcd/artifactory-worker"
)

// Expander unpacks downloaded artifacts into workspaces of their
// own.
type Expander struct {
	// TempDir is where workspaces are created; the system default if
	// empty.
	TempDir string
}

// Expand extracts the zip archive at filename into a new workspace,
// distinct from the one it was downloaded into. Once that has
// succeeded, the download workspace at priorRoot is removed. If it
// fails, the new workspace is removed and priorRoot is left alone.
func (e *Expander) Expand(filename, priorRoot string) (worker.Workspace, error) {
	root, err := ioutil.TempDir(e.TempDir, expandPrefix)
	if err != nil {
		return worker.Workspace{}, worker.ExtractError(errors.Wrap(err, "creating expansion workspace"))
	}
	entries, err := unzip(filename, root)
	if err != nil {
		os.RemoveAll(root)
		return worker.Workspace{}, worker.ExtractError(errors.Wrapf(err, "extracting %s", filepath.Base(filename)))
	}
	if priorRoot != "" && priorRoot != root {
		if err := os.RemoveAll(priorRoot); err != nil {
			os.RemoveAll(root)
			return worker.Workspace{}, worker.ExtractError(errors.Wrap(err, "removing download workspace"))
		}
	}
	return worker.Workspace{Root: root, Entries: entries}, nil
}

// a link target is never longer than this
const maxLinkTarget = 4096

func unzip(filename, root string) ([]string, error) {
	r, err := zip.OpenReader(filename)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	// Links are made once everything else is on disk, so no file or
	// directory is ever written through one.
	var links []*zip.File
	for _, f := range r.File {
		if f.Mode()&os.ModeSymlink != 0 {
			links = append(links, f)
			continue
		}
		if err := extractFile(f, root); err != nil {
			return nil, err
		}
	}
	if len(links) > 0 {
		realRoot, err := filepath.EvalSymlinks(root)
		if err != nil {
			return nil, err
		}
		for _, f := range links {
			if err := extractLink(f, root, realRoot); err != nil {
				return nil, err
			}
		}
	}
	return listEntries(root)
}

// entryPath gives where an archive entry goes under root. Entries
// naming the root itself, like "./", give root.
func entryPath(root, name string) (string, error) {
	if path.Clean(name) == "." {
		return root, nil
	}
	return within(root, name)
}

func extractFile(f *zip.File, root string) error {
	target, err := entryPath(root, f.Name)
	if err != nil {
		return err
	}
	mode := f.Mode()
	if mode.IsDir() {
		return os.MkdirAll(target, 0755)
	}
	if !mode.IsRegular() {
		return errors.Errorf("unsupported entry %q (%s)", f.Name, mode)
	}
	if target == root {
		return errors.Errorf("entry %q is not a directory", f.Name)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	// archives made on some platforms carry no permission bits
	perm := mode.Perm() | 0600

	in, err := f.Open()
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrapf(err, "writing %s", f.Name)
	}
	return out.Close()
}

// extractLink makes the symlink an entry describes, provided it
// resolves to somewhere inside the workspace. The target must be
// relative, and may only climb ("..") before descending, so that
// where it points can be worked out from the real directory it is
// in, whatever links it passes through.
func extractLink(f *zip.File, root, realRoot string) error {
	target, err := entryPath(root, f.Name)
	if err != nil {
		return err
	}
	if target == root {
		return errors.Errorf("link %q replaces the workspace", f.Name)
	}

	in, err := f.Open()
	if err != nil {
		return err
	}
	body, err := ioutil.ReadAll(io.LimitReader(in, maxLinkTarget))
	in.Close()
	if err != nil {
		return errors.Wrapf(err, "reading link %s", f.Name)
	}
	dest := path.Clean(string(body))
	if len(body) == 0 || path.IsAbs(dest) || !climbsThenDescends(string(body)) {
		return errors.Errorf("link %q -> %q escapes the workspace", f.Name, string(body))
	}

	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	realDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return err
	}
	if !inside(realRoot, realDir) || !inside(realRoot, filepath.Join(realDir, filepath.FromSlash(dest))) {
		return errors.Errorf("link %q -> %q escapes the workspace", f.Name, string(body))
	}
	return os.Symlink(filepath.FromSlash(dest), target)
}

// climbsThenDescends says whether a relative path has ".." elements
// only at its start. It looks at the path as given, since cleaning it
// would fold away a ".." that follows a link.
func climbsThenDescends(p string) bool {
	descending := false
	for _, part := range strings.Split(p, "/") {
		switch part {
		case "", ".":
		case "..":
			if descending {
				return false
			}
		default:
			descending = true
		}
	}
	return true
}

// inside says whether p is root or below it.
func inside(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func listEntries(root string) ([]string, error) {
	infos, err := ioutil.ReadDir(root)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	sort.Strings(names)
	return names, nil
}
