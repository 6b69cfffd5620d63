// Package project resolves the project root a turbogrep invocation
// operates on and derives the remote namespace it syncs/searches
// against.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// markers lists project root indicators in priority order: version
// control directories first, then language package manifests, static
// site generators, build systems, and editor project files — ported
// from highest-priority VCS markers down to editor project files.
var markers = []string{
	".git", ".hg", ".svn", "_darcs", ".bzr",

	"Cargo.toml", "package.json", "tsconfig.json", "deno.json", "deno.jsonc",
	"pyproject.toml", "setup.py", "requirements.txt", "Pipfile", "poetry.lock",
	"environment.yml", "go.mod", "Gemfile", "composer.json",

	"mkdocs.yml", "_config.yml", "gatsby-config.js", "next.config.js",
	"nuxt.config.js", "docusaurus.config.js", "hugo.toml", "hugo.yaml",

	"stack.yaml", "cabal.project", "Gemfile.lock", "yarn.lock", "pnpm-lock.yaml",
	"bun.lockb", "pubspec.yaml", "mix.exs", "rebar.config", "deps.edn",
	"project.clj", "build.sbt", "Package.swift", "Podfile", "Cartfile",

	"pom.xml", "build.gradle", "build.gradle.kts", "build.xml", "CMakeLists.txt",
	"Makefile", "meson.build", "configure.ac", "configure.in", "Dockerfile",
	"docker-compose.yml", "Vagrantfile",

	".editorconfig", ".vscode", ".idea",
}

// ValidateDirectory confirms path exists and is a directory.
func ValidateDirectory(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("directory %q does not exist", path)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%q exists but is not a directory", path)
	}
	return path, nil
}

// FindProjectRoot canonicalizes startPath and walks upward looking for
// the first directory containing any marker, checked in marker
// priority order at each level. If no marker is ever found, it returns
// the canonicalized startPath unchanged.
func FindProjectRoot(startPath string) (string, error) {
	current, err := filepath.Abs(startPath)
	if err != nil {
		return "", err
	}
	current, err = filepath.EvalSymlinks(current)
	if err != nil {
		return "", err
	}

	for {
		for _, marker := range markers {
			if _, err := os.Lstat(filepath.Join(current, marker)); err == nil {
				return current, nil
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	abs, err := filepath.Abs(startPath)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// NamespaceAndDir finds directory's project root and derives the
// namespace turbogrep syncs/searches it under: tg_{provider}_{hash},
// where hash is the 64-bit xxhash of the canonical root path as 16
// zero-padded hex digits. provider
// defaults to "voyage" when empty.
func NamespaceAndDir(directory, provider string) (namespace string, root string, err error) {
	root, err = FindProjectRoot(directory)
	if err != nil {
		return "", "", err
	}
	if provider == "" {
		provider = "voyage"
	}

	hash := xxhash.Sum64String(root)
	namespace = fmt.Sprintf("tg_%s_%016x", provider, hash)
	return namespace, root, nil
}
