// Package changeengine implements Anna's whitelisted system-mutation
// primitives: risk classification, plan validation, and a backup +
// atomic-install + verify + rollback execution discipline shared with the
// self-updater.
package changeengine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Risk is an ordered severity level for a change action. Comparisons use
// the underlying int, so Low < Medium < High < Forbidden holds by
// construction.
type Risk int

const (
	RiskLow Risk = iota
	RiskMedium
	RiskHigh
	RiskForbidden
)

func (r Risk) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// MarshalJSON renders Risk as its lowercase name rather than its ordinal,
// so a stored record is readable without the enum definition in hand.
func (r Risk) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON parses a lowercase risk name. An unrecognized name is a
// hard error, not a silent fallback to Low.
func (r *Risk) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "low":
		*r = RiskLow
	case "medium":
		*r = RiskMedium
	case "high":
		*r = RiskHigh
	case "forbidden":
		*r = RiskForbidden
	default:
		return fmt.Errorf("changeengine: unknown risk level %q", s)
	}
	return nil
}

// Category groups actions by the kind of surface they touch. Every
// category has a default risk; specific actions can be promoted above it
// (see Action.Risk) but never demoted below it.
type Category string

const (
	CategoryCosmeticUser   Category = "cosmetic_user"
	CategoryUserConfig     Category = "user_config"
	CategorySystemService  Category = "system_service"
	CategorySystemPackage  Category = "system_package"
	CategoryBootAndStorage Category = "boot_and_storage"
)

// DefaultRisk returns the baseline risk for actions in this category,
// before any path- or package-specific override is applied.
func (c Category) DefaultRisk() Risk {
	switch c {
	case CategoryCosmeticUser:
		return RiskLow
	case CategoryUserConfig:
		return RiskMedium
	case CategorySystemService:
		return RiskHigh
	case CategorySystemPackage:
		return RiskMedium
	case CategoryBootAndStorage:
		return RiskForbidden
	default:
		return RiskForbidden
	}
}

// forbiddenPathFragments are hard-coded and not configurable: any path
// containing one of these is Forbidden regardless of action kind.
var forbiddenPathFragments = []string{"/boot", "fstab", "grub", "initramfs", "crypttab"}

// IsForbiddenPath reports whether path contains any hard-coded forbidden
// fragment.
func IsForbiddenPath(path string) bool {
	for _, frag := range forbiddenPathFragments {
		if strings.Contains(path, frag) {
			return true
		}
	}
	return false
}

// criticalPackages upgrade InstallPackages to High risk when any requested
// package name contains one of these.
var criticalPackages = []string{"systemd", "kernel", "grub", "pacman"}

func isCriticalPackage(name string) bool {
	for _, c := range criticalPackages {
		if strings.Contains(name, c) {
			return true
		}
	}
	return false
}

func pathCategory(path string) Category {
	if IsForbiddenPath(path) {
		return CategoryBootAndStorage
	}
	if strings.HasPrefix(path, "/etc") {
		return CategorySystemService
	}
	return CategoryUserConfig
}

func pathRisk(path string) Risk {
	if IsForbiddenPath(path) {
		return RiskForbidden
	}
	if strings.HasPrefix(path, "/etc") {
		return RiskHigh
	}
	return CategoryUserConfig.DefaultRisk()
}

func pathNeedsSudo(path string) bool {
	return strings.HasPrefix(path, "/etc") || strings.HasPrefix(path, "/usr")
}
