package relstore

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"
)

// DiscoverPackageServiceLinks finds systemd units a package owns or
// drives, using two independent pieces of evidence: unit files the
// package installed directly (pacman -Ql), and running units whose
// ExecStart binary belongs to the package. A link is only ever recorded
// when one of these checks actually produced a match — there is no
// inferred or guessed linkage.
func DiscoverPackageServiceLinks(ctx context.Context, pkg string) []Link {
	var links []Link
	seen := map[string]bool{}

	for _, service := range ownedServiceFiles(ctx, pkg) {
		target := "service:" + service
		if seen[target] {
			continue
		}
		seen[target] = true
		links = append(links, Link{
			Type:     PackageToService,
			Source:   "package:" + pkg,
			Target:   target,
			Evidence: "pacman -Ql",
		})
	}

	for _, service := range servicesRunningPackageBinaries(ctx, pkg) {
		target := "service:" + service
		if seen[target] {
			continue
		}
		seen[target] = true
		links = append(links, Link{
			Type:     PackageToService,
			Source:   "package:" + pkg,
			Target:   target,
			Evidence: "systemctl show",
		})
	}

	return links
}

// ownedServiceFiles lists .service unit basenames a package's file list
// installed under a systemd unit directory.
func ownedServiceFiles(ctx context.Context, pkg string) []string {
	out, err := runPacmanQl(ctx, pkg)
	if err != nil {
		return nil
	}
	return parsePacmanQlServices(out)
}

// parsePacmanQlServices extracts .service unit basenames from `pacman -Ql`
// output, restricted to paths under a systemd unit directory.
func parsePacmanQlServices(out []byte) []string {
	var services []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		path := fields[1]
		if strings.HasSuffix(path, ".service") && strings.Contains(path, "/systemd/") {
			services = append(services, filepath.Base(path))
		}
	}
	return services
}

// packageBinaries lists binary paths (/bin or /sbin) owned by a package.
func packageBinaries(ctx context.Context, pkg string) []string {
	out, err := runPacmanQl(ctx, pkg)
	if err != nil {
		return nil
	}
	return parsePacmanQlBinaries(out)
}

// parsePacmanQlBinaries extracts /bin or /sbin file paths from `pacman
// -Ql` output.
func parsePacmanQlBinaries(out []byte) []string {
	var bins []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		path := fields[1]
		if strings.Contains(path, "/bin/") || strings.Contains(path, "/sbin/") {
			bins = append(bins, path)
		}
	}
	return bins
}

// servicesRunningPackageBinaries cross-references every loaded service
// unit's ExecStart line against the package's binaries.
func servicesRunningPackageBinaries(ctx context.Context, pkg string) []string {
	bins := packageBinaries(ctx, pkg)
	if len(bins) == 0 {
		return nil
	}

	units, err := runSystemctlListUnits(ctx)
	if err != nil || len(units) == 0 {
		return nil
	}

	execStarts, err := runSystemctlShowExecStartBatch(ctx, units)
	if err != nil {
		return nil
	}

	var matches []string
	for _, unit := range units {
		execStart := execStarts[unit]
		for _, bin := range bins {
			if strings.Contains(execStart, bin) {
				matches = append(matches, unit)
				break
			}
		}
	}
	return matches
}

func runPacmanQl(ctx context.Context, pkg string) ([]byte, error) {
	path, err := exec.LookPath("pacman")
	if err != nil {
		return nil, err
	}
	return exec.CommandContext(ctx, path, "-Ql", pkg).Output()
}

func runSystemctlListUnits(ctx context.Context) ([]string, error) {
	path, err := exec.LookPath("systemctl")
	if err != nil {
		return nil, err
	}
	out, err := exec.CommandContext(ctx, path, "list-units", "--type=service", "--no-pager", "--no-legend").Output()
	if err != nil {
		return nil, err
	}
	return parseSystemctlListUnits(out), nil
}

// parseSystemctlListUnits extracts unit names (first column) from
// `systemctl list-units --no-legend` output.
func parseSystemctlListUnits(out []byte) []string {
	var units []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		units = append(units, fields[0])
	}
	return units
}

// runSystemctlShowExecStartBatch fetches every unit's ExecStart in one
// systemctl invocation instead of one exec per unit — a host with
// hundreds of loaded units would otherwise turn a single discovery pass
// into hundreds of sequential subprocess spawns.
func runSystemctlShowExecStartBatch(ctx context.Context, units []string) (map[string]string, error) {
	path, err := exec.LookPath("systemctl")
	if err != nil {
		return nil, err
	}
	args := append([]string{"show"}, units...)
	args = append(args, "--property=ExecStart")
	out, err := exec.CommandContext(ctx, path, args...).Output()
	if err != nil {
		return nil, err
	}
	return parseSystemctlShowExecStartBatch(out, units), nil
}

// parseSystemctlShowExecStartBatch splits systemctl's blank-line-separated
// per-unit property blocks back out in the order units were requested in.
func parseSystemctlShowExecStartBatch(out []byte, units []string) map[string]string {
	blocks := strings.Split(strings.TrimRight(string(out), "\n"), "\n\n")
	result := make(map[string]string, len(units))
	for i, unit := range units {
		if i < len(blocks) {
			result[unit] = blocks[i]
		}
	}
	return result
}
