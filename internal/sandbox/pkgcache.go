package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PackageCacheManager manages shared, read-only package-manager cache
// directories bind-mounted into sandbox containers for faster warm
// starts. It never mutates the submitted source; disabled by default.
type PackageCacheManager struct {
	enabled bool
	baseDir string
}

// NewPackageCacheManager returns a manager rooted at baseDir. When
// enabled, the base directory is created eagerly.
func NewPackageCacheManager(baseDir string, enabled bool) *PackageCacheManager {
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "coderunner-pkg-cache")
	}
	m := &PackageCacheManager{enabled: enabled, baseDir: baseDir}
	if m.enabled {
		_ = os.MkdirAll(m.baseDir, 0o755)
	}
	return m
}

// Enabled reports whether package caching is active.
func (m *PackageCacheManager) Enabled() bool {
	return m != nil && m.enabled
}

// MountArgs returns the `docker run` flags that bind-mount this
// image's package cache, read-only from the container's perspective.
func (m *PackageCacheManager) MountArgs(image string) []string {
	if !m.Enabled() {
		return nil
	}

	var args []string
	for _, mount := range m.mountsForImage(image) {
		hostPath := filepath.Join(m.baseDir, sanitizeCacheName(mount.name))
		_ = os.MkdirAll(hostPath, 0o755)
		args = append(args, "-v", fmt.Sprintf("%s:%s:ro", hostPath, mount.containerPath))
	}
	return args
}

type cacheMount struct {
	name          string
	containerPath string
}

// mountsForImage maps a sandbox image to the cache directories its
// toolchain reads from, mirroring the teacher's per-language cache
// wiring (npm, pip, a Maven local repository).
func (m *PackageCacheManager) mountsForImage(image string) []cacheMount {
	switch {
	case strings.HasPrefix(image, "node"):
		return []cacheMount{{"npm", "/home/sandbox/.npm"}}
	case strings.HasPrefix(image, "python"):
		return []cacheMount{{"pip", "/home/sandbox/.cache/pip"}}
	case strings.HasPrefix(image, "openjdk"):
		return []cacheMount{{"m2", "/home/sandbox/.m2"}}
	default:
		return nil
	}
}

func sanitizeCacheName(in string) string {
	in = strings.ToLower(strings.TrimSpace(in))
	if in == "" {
		return "default"
	}
	var b strings.Builder
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
