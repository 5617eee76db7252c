package router

import "strings"

// classifyRule pairs a QueryClass with the keyword sets that select it.
// Rules are tried in order; the first whose any-group matches wins. Order
// matters: more specific classes are listed before the general classes
// they would otherwise be swallowed by (e.g. "cpu temp" before "cpu").
type classifyRule struct {
	class QueryClass
	any   []string
}

var rules = []classifyRule{
	{CpuTemp, []string{"cpu temp", "cpu temperature", "processor temp", "how hot"}},
	{CpuCores, []string{"how many core", "cpu core", "number of cores", "core count"}},
	{CpuInfo, []string{"what cpu", "which cpu", "cpu model", "processor do i have", "what processor"}},
	{RamInfo, []string{"how much ram", "how much memory do i have", "ram do i have", "memory do i have"}},
	{MemoryFree, []string{"free memory", "available memory", "memory free"}},
	{MemoryUsage, []string{"memory usage", "memory use", "ram usage"}},
	{GpuInfo, []string{"gpu", "graphics card", "video card", "vram"}},
	{HardwareAudio, []string{"sound card", "audio device", "audio card"}},
	{TopMemoryProcesses, []string{"processes using memory", "using the most memory", "top memory", "memory hog"}},
	{TopCpuProcesses, []string{"processes using cpu", "using the most cpu", "top cpu", "cpu hog"}},
	{DiskSpace, []string{"disk space", "disk full", "out of space", "storage space"}},
	{DiskUsage, []string{"disk usage", "disk use", "how much disk"}},
	{NetworkInterfaces, []string{"ip address", "network interface", "my ip", "what's my ip"}},
	{ServiceStatus, []string{"is running", "running?", "service status", "is active"}},
	{BootTimeStatus, []string{"boot time", "how long to boot", "how fast did i boot", "startup time"}},
	{PackageCount, []string{"how many packages", "package count", "packages installed"}},
	{InstalledPackagesOverview, []string{"what's installed", "what packages", "installed packages", "list packages"}},
	{InstalledToolCheck, []string{"do i have", "is installed", "installed?"}},
	{AppAlternatives, []string{"alternative to", "instead of", "similar to", "replacement for"}},
	{SystemSlow, []string{"system is slow", "running slow", "feels slow", "why is it slow", "sluggish"}},
	{SystemHealthSummary, []string{"how is my system", "system health", "overall status", "how's my system"}},
	{SystemTriage, []string{"anything wrong", "any problems", "any errors", "what's broken"}},
	{Help, []string{"help", "what can you do", "how do i use"}},
}

// Classify maps a raw query string to exactly one QueryClass by ordered
// keyword match. It never calls a model: a query that matches nothing
// recognized returns Unknown, and the caller falls back to a specialist.
func Classify(query string) QueryClass {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Unknown
	}
	for _, rule := range rules {
		for _, phrase := range rule.any {
			if strings.Contains(q, phrase) {
				return rule.class
			}
		}
	}
	// "is <unit> running" puts the unit name between the two keywords, so
	// no fixed phrase above matches it.
	if strings.HasPrefix(q, "is ") && strings.HasSuffix(strings.TrimSuffix(q, "?"), " running") {
		return ServiceStatus
	}
	return Unknown
}

// ExtractToolName pulls the tool/package name out of an InstalledToolCheck
// query of the form "do I have nano installed" / "is nano installed".
// Returns "" when no trailing token can be isolated.
func ExtractToolName(query string) string {
	q := strings.ToLower(strings.TrimSpace(query))
	for _, prefix := range []string{"do i have ", "is "} {
		if strings.HasPrefix(q, prefix) {
			rest := strings.TrimPrefix(q, prefix)
			rest = strings.TrimSuffix(rest, "?")
			rest = strings.TrimSuffix(rest, " installed")
			rest = strings.TrimSpace(rest)
			if rest != "" {
				fields := strings.Fields(rest)
				return fields[0]
			}
		}
	}
	return ""
}
