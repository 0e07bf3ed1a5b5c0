// Package uri reconciles file paths across three coordinate systems: the
// host filesystem, the project-relative paths stored in the symbol graph,
// and (in container mode) the /workspace path seen inside the LSP server's
// container.
package uri

import (
	"net/url"
	"path/filepath"
	"strings"
)

const containerWorkspace = "/workspace"

// Reconciler converts between a project root on the host and whatever root
// the LSP server actually sees (the same root in local mode, or
// /workspace when the server runs inside a container).
type Reconciler struct {
	hostRoot    string
	container   bool
	serverRoot  string // what the server calls its root: hostRoot or /workspace
}

// New builds a Reconciler for a project rooted at hostRoot. When container
// is true, paths are rebased against /workspace to match the bind mount the
// LSP client uses when launching the server inside a container (see
// containerCommand in package lspclient).
func New(hostRoot string, container bool) *Reconciler {
	abs, err := filepath.Abs(hostRoot)
	if err != nil {
		abs = hostRoot
	}
	r := &Reconciler{hostRoot: filepath.ToSlash(abs), container: container}
	if container {
		r.serverRoot = containerWorkspace
	} else {
		r.serverRoot = r.hostRoot
	}
	return r
}

// ToURI converts a project-relative path into the file:// URI the LSP
// server should receive.
func (r *Reconciler) ToURI(relPath string) string {
	rel := filepath.ToSlash(relPath)
	abs := r.serverRoot + "/" + strings.TrimPrefix(rel, "/")
	return "file://" + abs
}

// RootURI is the rootUri sent in the initialize request.
func (r *Reconciler) RootURI() string {
	return "file://" + r.serverRoot
}

// FromURI converts a URI received from the LSP server (e.g. in a
// references or definition response) back into a path relative to the
// project root. It strips the server's root prefix, whichever coordinate
// system it is in.
func (r *Reconciler) FromURI(rawURI string) (relPath string, ok bool) {
	path := strings.TrimPrefix(rawURI, "file://")
	if decoded, err := url.PathUnescape(path); err == nil {
		path = decoded
	}
	path = filepath.ToSlash(path)

	// Windows drive-letter URIs carry a leading slash before the drive
	// (file:///C:/...); strip it so the remaining path lines up with the
	// server/host root prefixes below.
	if len(path) >= 3 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}

	switch {
	case r.container && strings.HasPrefix(path, containerWorkspace+"/"):
		return strings.TrimPrefix(path, containerWorkspace+"/"), true
	case r.container && path == containerWorkspace:
		return "", true
	case !r.container && strings.HasPrefix(path, r.hostRoot+"/"):
		return strings.TrimPrefix(path, r.hostRoot+"/"), true
	case !r.container && path == r.hostRoot:
		return "", true
	default:
		return "", false
	}
}

// HostPath turns a project-relative path into an absolute host filesystem
// path.
func (r *Reconciler) HostPath(relPath string) string {
	return filepath.Join(filepath.FromSlash(r.hostRoot), filepath.FromSlash(relPath))
}
