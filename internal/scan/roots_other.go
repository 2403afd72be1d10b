//go:build !windows

package scan

// systemExcludes are pseudo filesystems that are skipped when scanning
// local roots. Walking them is slow at best and never finds executables.
var systemExcludes = []string{"/proc", "/sys", "/dev", "/run"}

// LocalRoots returns the filesystem root. Mounted drives are reached by
// walking below it.
func LocalRoots() ([]string, error) {
	return []string{"/"}, nil
}
