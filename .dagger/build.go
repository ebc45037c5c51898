package main

import (
	"fmt"
	"strings"
	"time"

	"context"

	"dagger/engram/internal/dagger"
)

// Build and return directory of go binaries
//
// The sqlite driver needs cgo, so the matrix is linux-only with a cross
// gcc per architecture. Every build carries the sqlite_fts5 tag so
// shipped binaries serve search from FTS5 rather than the fallback
// index.
func (e *Engram) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	// define build matrix
	targets := []struct {
		goarch string
		cc     string
	}{
		{goarch: "amd64", cc: "gcc"},
		{goarch: "arm64", cc: "aarch64-linux-gnu-gcc"},
	}

	// create empty directory to put build artifacts
	outputs := dag.Directory()

	golang := dag.Container().
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc", "gcc-aarch64-linux-gnu", "libsqlite3-dev"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithDirectory("/src", e.Source).
		WithWorkdir("/src")

	for _, target := range targets {
		// create directory for each architecture
		path := fmt.Sprintf("linux/%s/", target.goarch)

		// build artifact
		build := golang.
			WithEnvVariable("GOOS", "linux").
			WithEnvVariable("GOARCH", target.goarch).
			WithEnvVariable("CC", target.cc).
			WithExec([]string{"go", "build", "-tags", "sqlite_fts5", "-ldflags", ldflags, "-o", path, "./cli/engram"})

		// add build to outputs
		outputs = outputs.WithDirectory(path, build.Directory(path))
	}

	// return build directory
	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (e *Engram) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now()

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/engramco/engram/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/engramco/engram/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/engramco/engram/pkg/utils.Buildtime=%s'", buildtime),
	}

	return e.Build(ctx, strings.Join(ldflags, " "))
}
