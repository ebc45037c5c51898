// Engram CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
// It is the main harness for handling nearly all dev operations.
package main

import (
	"context"

	"dagger/engram/internal/dagger"
)

// Engram is the main module for the Engram CI/CD pipeline
type Engram struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Engram CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".devenv", "build", "tmp"]
	source *dagger.Directory,
) *Engram {
	return &Engram{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container with gcc,
// libsqlite3-dev, CGO enabled, and the project source mounted.
//
// It is the shared foundation for tests, builds, and linting.
func (e *Engram) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", e.Source)
}

// Test runs the engram unit tests via "go test". The sqlite_fts5 tag
// compiles FTS5 into the sqlite driver so the suite covers the native
// full-text path; without the tag the store falls back to its own
// inverted index.
func (e *Engram) Test(ctx context.Context) (string, error) {
	return e.goContainer().
		WithExec([]string{"go", "test", "-tags", "sqlite_fts5", "-v", "./..."}).
		Stdout(ctx)
}
