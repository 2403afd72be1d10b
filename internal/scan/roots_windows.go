//go:build windows

package scan

import (
	"fmt"
	"strings"

	"golang.org/x/sys/windows"
)

// systemExcludes are skipped when scanning local roots.
var systemExcludes []string

// LocalRoots returns the root of every local fixed drive, e.g. "C:\".
// Optical, removable, network and floppy drives are left out.
func LocalRoots() ([]string, error) {
	n, err := windows.GetLogicalDriveStrings(0, nil)
	if err != nil {
		return nil, fmt.Errorf("GetLogicalDriveStrings: %w", err)
	}
	buf := make([]uint16, n)
	n, err = windows.GetLogicalDriveStrings(n, &buf[0])
	if err != nil {
		return nil, fmt.Errorf("GetLogicalDriveStrings: %w", err)
	}

	var roots []string
	for _, drive := range splitDriveStrings(buf[:n]) {
		p, err := windows.UTF16PtrFromString(drive)
		if err != nil {
			continue
		}
		if eligibleDrive(drive, windows.GetDriveType(p)) {
			roots = append(roots, drive)
		}
	}
	return roots, nil
}

// splitDriveStrings splits the NUL-separated list returned by
// GetLogicalDriveStrings.
func splitDriveStrings(buf []uint16) []string {
	var out []string
	start := 0
	for i, c := range buf {
		if c != 0 {
			continue
		}
		if i > start {
			out = append(out, windows.UTF16ToString(buf[start:i]))
		}
		start = i + 1
	}
	return out
}

func eligibleDrive(drive string, driveType uint32) bool {
	if strings.HasPrefix(strings.ToUpper(drive), "A:") {
		return false
	}
	switch driveType {
	case windows.DRIVE_FIXED, windows.DRIVE_RAMDISK:
		return true
	default:
		return false
	}
}
