// Package walker builds the project Folder/FileRecord tree by walking a
// root directory, classifying files by extension into languages, and
// excluding paths per a gitignore-style glob policy.
package walker

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"docweave/internal/model"
)

// IgnorePolicy decides whether a project-relative path should be skipped.
// Directory matches prune the whole subtree.
type IgnorePolicy struct {
	DirNames    map[string]struct{}
	Globs       []string
	ExtBlocklist map[string]struct{}
}

// Matches reports whether relPath (slash-separated) should be excluded.
func (p IgnorePolicy) Matches(relPath string, isDir bool) bool {
	base := filepath.Base(relPath)
	if isDir {
		if _, ok := p.DirNames[base]; ok {
			return true
		}
	} else if ext := filepath.Ext(base); ext != "" {
		if _, ok := p.ExtBlocklist[ext]; ok {
			return true
		}
	}
	for _, g := range p.Globs {
		if g == "" {
			continue
		}
		if ok, err := doublestar.Match(g, relPath); err == nil && ok {
			return true
		}
	}
	return false
}

// LanguageOf maps a file extension to a LanguageTag using the table
// supplied by internal/config; files with unmapped extensions are
// reported with the empty LanguageTag and are still walked (they may
// still be documentation-relevant) but are never handed to an extractor.
type LanguageOf func(ext string) model.LanguageTag

// Walk builds the Folder tree rooted at root, applying policy and
// classifying files with languageOf. Symlinked directories are never
// followed; symlinked files are included once.
func Walk(root string, policy IgnorePolicy, languageOf LanguageOf) (*model.Folder, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	rootFolder := &model.Folder{
		Name:      filepath.Base(absRoot),
		AbsPath:   absRoot,
		RelPath:   "",
		Languages: map[model.LanguageTag]struct{}{},
	}
	folders := map[string]*model.Folder{"": rootFolder}

	entries, err := collectEntries(absRoot, absRoot, policy)
	if err != nil {
		return nil, err
	}

	// Folders must exist before files are attached; process directories
	// first in path order so a file's parent folder is always present.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].isDir != entries[j].isDir {
			return entries[i].isDir
		}
		return entries[i].relPath < entries[j].relPath
	})

	for _, e := range entries {
		if e.isDir {
			parentRel := filepath.ToSlash(filepath.Dir(e.relPath))
			if parentRel == "." {
				parentRel = ""
			}
			parent := folders[parentRel]
			f := &model.Folder{
				Name:      filepath.Base(e.relPath),
				AbsPath:   e.absPath,
				RelPath:   e.relPath,
				Parent:    parent,
				Languages: map[model.LanguageTag]struct{}{},
			}
			parent.Subfolders = append(parent.Subfolders, f)
			folders[e.relPath] = f
			continue
		}

		parentRel := filepath.ToSlash(filepath.Dir(e.relPath))
		if parentRel == "." {
			parentRel = ""
		}
		parent := folders[parentRel]
		lang := languageOf(filepath.Ext(e.relPath))
		rec := &model.FileRecord{
			RelPath:     e.relPath,
			AbsPath:     e.absPath,
			Language:    lang,
			ProjectRoot: absRoot,
			Folder:      parent,
		}
		parent.Files = append(parent.Files, rec)
		if lang != "" {
			for f := parent; f != nil; f = f.Parent {
				f.Languages[lang] = struct{}{}
			}
		}
	}

	return rootFolder, nil
}

type entry struct {
	relPath string
	absPath string
	isDir   bool
}

func collectEntries(root, current string, policy IgnorePolicy) ([]entry, error) {
	var out []entry
	err := filepath.WalkDir(current, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return err
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.Type()&os.ModeSymlink != 0 {
			target, statErr := os.Stat(path)
			if statErr != nil {
				return nil
			}
			if target.IsDir() {
				return filepath.SkipDir
			}
			if policy.Matches(rel, false) {
				return nil
			}
			out = append(out, entry{relPath: rel, absPath: path, isDir: false})
			return nil
		}

		if d.IsDir() {
			if policy.Matches(rel, true) {
				return filepath.SkipDir
			}
			out = append(out, entry{relPath: rel, absPath: path, isDir: true})
			return nil
		}

		if policy.Matches(rel, false) {
			return nil
		}
		out = append(out, entry{relPath: rel, absPath: path, isDir: false})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FlattenFiles returns every FileRecord in the tree, depth-first.
func FlattenFiles(root *model.Folder) []*model.FileRecord {
	var out []*model.FileRecord
	var walk func(f *model.Folder)
	walk = func(f *model.Folder) {
		out = append(out, f.Files...)
		for _, sub := range f.Subfolders {
			walk(sub)
		}
	}
	walk(root)
	return out
}
