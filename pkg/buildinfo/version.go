// Package buildinfo reports which ogforge build is running.
//
// Release builds stamp the variables with ldflags:
//
//	go build -ldflags "-X github.com/matzehuels/ogforge/pkg/buildinfo.Version=v1.0.0 \
//	    -X github.com/matzehuels/ogforge/pkg/buildinfo.Commit=$(git rev-parse HEAD) \
//	    -X github.com/matzehuels/ogforge/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Unstamped builds fall back to the VCS settings the Go toolchain embeds.
// The version also namespaces the build cache, so images rendered by one
// release are never served by another.
package buildinfo

import (
	"fmt"
	"runtime/debug"
	"sync"
)

const devVersion = "dev"

var (
	// Version is the release tag, "dev" for local builds.
	Version = devVersion

	// Commit is the git commit SHA.
	Commit = ""

	// Date is the build timestamp.
	Date = ""
)

// Info is the resolved build description.
type Info struct {
	Version   string
	Commit    string
	Date      string
	GoVersion string
	// Modified is set when the binary was built from a dirty tree.
	Modified bool
}

var (
	once sync.Once
	info Info
)

// Get returns the build description. Stamped values win over the
// toolchain's VCS settings.
func Get() Info {
	once.Do(func() {
		info = read(debug.ReadBuildInfo)
	})
	return info
}

func read(readBuildInfo func() (*debug.BuildInfo, bool)) Info {
	i := Info{Version: Version, Commit: Commit, Date: Date}
	bi, ok := readBuildInfo()
	if !ok {
		return i.withDefaults()
	}
	i.GoVersion = bi.GoVersion
	if i.Version == devVersion && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		i.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if i.Commit == "" {
				i.Commit = s.Value
			}
		case "vcs.time":
			if i.Date == "" {
				i.Date = s.Value
			}
		case "vcs.modified":
			i.Modified = s.Value == "true"
		}
	}
	return i.withDefaults()
}

func (i Info) withDefaults() Info {
	if i.Commit == "" {
		i.Commit = "none"
	}
	if i.Date == "" {
		i.Date = "unknown"
	}
	return i
}

// ShortCommit is the first 12 characters of the commit.
func (i Info) ShortCommit() string {
	if len(i.Commit) > 12 {
		return i.Commit[:12]
	}
	return i.Commit
}

// CacheVersion namespaces build cache keys. Development builds add the
// commit so a rebuilt binary does not serve images from older code.
func (i Info) CacheVersion() string {
	if i.Version != devVersion {
		return i.Version
	}
	v := devVersion + "-" + i.ShortCommit()
	if i.Modified {
		v += "-dirty"
	}
	return v
}

// Template returns the version template string for cobra.
func Template() string {
	i := Get()
	return fmt.Sprintf("{{.Name}} version %s\ncommit: %s\nbuilt: %s\n", i.Version, i.ShortCommit(), i.Date)
}
