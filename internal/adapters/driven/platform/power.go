// Package platform adapts host-specific signals: power source and the
// unread badge.
package platform

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/newsreel-cli/internal/core/ports/driven"
)

// powerSupplyDir is the sysfs power supply tree on Linux.
const powerSupplyDir = "/sys/class/power_supply"

// Ensure PowerMonitor implements the interface.
var _ driven.PowerMonitor = (*PowerMonitor)(nil)

// PowerMonitor reads the power source from sysfs. Hosts without a
// battery (servers, containers) report external power, so the
// processing cadence is never gated there.
type PowerMonitor struct {
	dir string
}

// NewPowerMonitor creates a sysfs-backed power monitor.
func NewPowerMonitor() *PowerMonitor {
	return &PowerMonitor{dir: powerSupplyDir}
}

// OnExternalPower reports whether the device is plugged in.
func (m *PowerMonitor) OnExternalPower() bool {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		// No sysfs tree: assume mains power.
		return true
	}

	sawSupply := false
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "AC") && !strings.HasPrefix(name, "ADP") {
			continue
		}
		sawSupply = true
		online, err := os.ReadFile(filepath.Join(m.dir, name, "online"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(online)) == "1" {
			return true
		}
	}

	// A battery with no AC adapter entry, or all adapters offline.
	if sawSupply {
		return false
	}
	return true
}
