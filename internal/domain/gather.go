package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/annaproj/annad/internal/probe"
)

// entitySet maps a namespaced entity key (e.g. "pkg:linux") to a canonical
// value string capturing the mutable attributes that count as a "change"
// for that entity. Two gathers with the same key but different value are a
// changed entity, not an add+remove.
type entitySet map[string]string

// fingerprint hashes a stable, sorted representation of the entity set so
// two gathers that observed the same state produce the same string
// regardless of OS-level ordering.
func fingerprint(entities entitySet) string {
	keys := make([]string, 0, len(entities))
	for k := range entities {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s\n", k, entities[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// diff compares a freshly gathered entity set against the previous one and
// returns added/changed/removed counts.
func diff(prev, next entitySet) (added, changed, removed int) {
	for k, v := range next {
		pv, ok := prev[k]
		if !ok {
			added++
		} else if pv != v {
			changed++
		}
	}
	for k := range prev {
		if _, ok := next[k]; !ok {
			removed++
		}
	}
	return
}

// ErrUnknownDomain is returned when Gather is asked for a domain with no
// registered gather function.
var ErrUnknownDomain = fmt.Errorf("domain: no gather function registered")

// GatherOptions carries the small amount of host-specific configuration a
// few gather functions need beyond what the probe registry can supply on
// its own.
type GatherOptions struct {
	// ServiceUnits lists the systemd units sw.services tracks. Anna only
	// watches units named in daemon config, never "all units on the box".
	ServiceUnits []string
}

// Gather runs the domain-specific gather pass for d and returns its
// canonical entity set. Every gather is read-only and built exclusively on
// top of the probe layer or simple filesystem reads — never a mutation.
func Gather(ctx context.Context, registry *probe.Registry, d Domain, opts GatherOptions) (entitySet, error) {
	switch d {
	case HwStatic:
		return gatherHwStatic(ctx, registry)
	case HwDynamic:
		return gatherHwDynamic(ctx, registry)
	case SwPackages:
		return gatherSwPackages(ctx, registry)
	case SwCommands:
		return gatherSwCommands(ctx)
	case SwServices:
		return gatherSwServices(ctx, opts.ServiceUnits)
	case SwConfigCoverage:
		return gatherSwConfigCoverage(ctx)
	case NetInterfaces:
		return gatherNetInterfaces(ctx, registry)
	case PeripheralsUsb:
		return gatherPeripheralsUsb(ctx, registry)
	case PeripheralsThunder:
		return gatherPeripheralsThunderbolt(ctx)
	case PeripheralsBt:
		return gatherPeripheralsBluetooth(ctx, registry)
	case StorageDevices:
		return gatherStorageDevices(ctx, registry)
	case StorageFilesystems:
		return gatherStorageFilesystems(ctx, registry)
	case DocsLocal:
		return gatherDocsLocal(ctx, registry)
	default:
		return nil, ErrUnknownDomain
	}
}

func runProbe(ctx context.Context, registry *probe.Registry, id string) (probe.Result, error) {
	res := registry.RunOne(ctx, id)
	if !res.OK() {
		return res, fmt.Errorf("probe %s: outcome=%s err=%v", id, res.Outcome, res.Err)
	}
	return res, nil
}

func gatherHwStatic(ctx context.Context, registry *probe.Registry) (entitySet, error) {
	out := entitySet{}

	if res, err := runProbe(ctx, registry, "cpu.info"); err == nil {
		info := res.Data.(probe.CPUInfo)
		out["cpu:model"] = fmt.Sprintf("%s/%s/%d/%g", info.Vendor, info.ModelName, info.Cores, info.MHz)
	}
	if res, err := runProbe(ctx, registry, "memory.info"); err == nil {
		mem := res.Data.(probe.MemoryInfo)
		out["memory:total"] = fmt.Sprintf("%d", mem.TotalKB)
	}
	if res, err := runProbe(ctx, registry, "host.info"); err == nil {
		host := res.Data.(probe.HostInfo)
		out["host:platform"] = fmt.Sprintf("%s/%s/%s", host.Platform, host.PlatformVer, host.KernelVer)
		out["host:boot_id"] = host.BootID
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("hw.static: no probes returned usable evidence")
	}
	return out, nil
}

func gatherHwDynamic(ctx context.Context, registry *probe.Registry) (entitySet, error) {
	out := entitySet{}

	if res, err := runProbe(ctx, registry, "sensors.temperature"); err == nil {
		for _, r := range res.Data.([]probe.SensorReading) {
			if r.CelsiusC == nil {
				continue
			}
			out["sensor:"+r.SensorKey] = fmt.Sprintf("%.1f", *r.CelsiusC)
		}
	}
	if res, err := runProbe(ctx, registry, "cpu.usage"); err == nil {
		usage := res.Data.(probe.CPUUsage)
		out["cpu:usage"] = fmt.Sprintf("%.1f", usage.PercentTotal)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("hw.dynamic: no probes returned usable evidence")
	}
	return out, nil
}

func gatherSwPackages(ctx context.Context, registry *probe.Registry) (entitySet, error) {
	res, err := runProbe(ctx, registry, "packages.list")
	if err != nil {
		return nil, err
	}
	out := entitySet{}
	for _, pkg := range res.Data.([]probe.PackageEntry) {
		out["pkg:"+pkg.Name] = pkg.Version
	}
	return out, nil
}

// gatherSwCommands lists distinct executable basenames on PATH. There is
// no dedicated probe for this — it is a plain directory listing, not an OS
// inspection command — so it reads $PATH directly rather than going
// through the probe registry.
func gatherSwCommands(ctx context.Context) (entitySet, error) {
	out := entitySet{}
	for _, dir := range filepathSplitPath() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			if info.Mode()&0111 == 0 {
				continue
			}
			out["cmd:"+e.Name()] = "1"
		}
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("sw.commands: PATH yielded no executables")
	}
	return out, nil
}

func filepathSplitPath() []string {
	path := os.Getenv("PATH")
	if path == "" {
		return nil
	}
	return strings.Split(path, string(os.PathListSeparator))
}

func gatherSwServices(ctx context.Context, units []string) (entitySet, error) {
	if len(units) == 0 {
		return entitySet{}, nil
	}
	res := probe.NewServiceStatusProbe(units...).Run(ctx)
	if !res.OK() {
		return nil, fmt.Errorf("service.status: outcome=%s err=%v", res.Outcome, res.Err)
	}
	out := entitySet{}
	for _, svc := range res.Data.([]probe.ServiceState) {
		out["service:"+svc.Name] = fmt.Sprintf("active=%v,enabled=%v", svc.Active, svc.Enabled)
	}
	return out, nil
}

// knownConfigPaths is the fixed set of system config files whose
// presence/mtime/size is tracked as "config coverage": a few core system
// files (among them /etc/fstab) plus common daemon config locations —
// files whose drift is worth fingerprinting.
var knownConfigPaths = []string{
	"/etc/pacman.conf",
	"/etc/fstab",
	"/etc/hosts",
	"/etc/hostname",
	"/etc/locale.conf",
	"/etc/vconsole.conf",
	"/etc/resolv.conf",
	"/etc/systemd/network",
	"/etc/NetworkManager/system-connections",
}

func gatherSwConfigCoverage(ctx context.Context) (entitySet, error) {
	out := entitySet{}
	for _, path := range knownConfigPaths {
		info, err := os.Stat(path)
		if err != nil {
			out["config:"+path] = "absent"
			continue
		}
		out["config:"+path] = fmt.Sprintf("size=%d,mtime=%d", info.Size(), info.ModTime().Unix())
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
	}
	return out, nil
}

func gatherNetInterfaces(ctx context.Context, registry *probe.Registry) (entitySet, error) {
	res, err := runProbe(ctx, registry, "net.interfaces")
	if err != nil {
		return nil, err
	}
	out := entitySet{}
	for _, iface := range res.Data.([]probe.NetworkInterface) {
		out["iface:"+iface.Name] = fmt.Sprintf("up=%v,mtu=%d,addrs=%s", iface.IsUp, iface.MTU, strings.Join(iface.Addrs, ","))
	}
	if wres, err := runProbe(ctx, registry, "net.wifi"); err == nil {
		for _, wi := range wres.Data.([]probe.WifiInterface) {
			ssid := ""
			if wi.SSID != nil {
				ssid = *wi.SSID
			}
			out["wifi:"+wi.Name] = "ssid=" + ssid
		}
	}
	return out, nil
}

func gatherPeripheralsUsb(ctx context.Context, registry *probe.Registry) (entitySet, error) {
	res, err := runProbe(ctx, registry, "peripherals.usb")
	if err != nil {
		return nil, err
	}
	out := entitySet{}
	for _, d := range res.Data.([]probe.USBDevice) {
		out["usb:"+d.VendorID+":"+d.ProductID] = d.Descriptor
	}
	return out, nil
}

// gatherPeripheralsThunderbolt lists Thunderbolt device directories under
// sysfs. No probe wraps this: it is a direct, bounded sysfs directory
// listing rather than a command invocation.
func gatherPeripheralsThunderbolt(ctx context.Context) (entitySet, error) {
	const sysPath = "/sys/bus/thunderbolt/devices"
	entries, err := os.ReadDir(sysPath)
	if err != nil {
		// No Thunderbolt bus on this host is a real, valid result: an
		// empty entity set, not a failure.
		return entitySet{}, nil
	}
	out := entitySet{}
	for _, e := range entries {
		out["tbt:"+e.Name()] = "present"
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
	}
	return out, nil
}

func gatherPeripheralsBluetooth(ctx context.Context, registry *probe.Registry) (entitySet, error) {
	res, err := runProbe(ctx, registry, "peripherals.bluetooth")
	if err != nil {
		return nil, err
	}
	out := entitySet{}
	for _, d := range res.Data.([]probe.BluetoothDevice) {
		out["bt:"+d.Address] = fmt.Sprintf("name=%s,paired=%v", d.Name, d.Paired)
	}
	return out, nil
}

func gatherStorageDevices(ctx context.Context, registry *probe.Registry) (entitySet, error) {
	res, err := runProbe(ctx, registry, "storage.devices")
	if err != nil {
		return nil, err
	}
	out := entitySet{}
	for _, d := range res.Data.([]probe.BlockDevice) {
		out["blockdev:"+d.Name] = fmt.Sprintf("size=%d,type=%s,mount=%s,fs=%s", d.SizeBytes, d.Type, d.Mountpoint, d.FSType)
	}
	return out, nil
}

func gatherStorageFilesystems(ctx context.Context, registry *probe.Registry) (entitySet, error) {
	res, err := runProbe(ctx, registry, "storage.filesystems")
	if err != nil {
		return nil, err
	}
	out := entitySet{}
	for _, fs := range res.Data.([]probe.FilesystemUsage) {
		out["fs:"+fs.Mountpoint] = fmt.Sprintf("type=%s,total=%d,used=%d", fs.FSType, fs.TotalBytes, fs.UsedBytes)
	}
	return out, nil
}

// gatherDocsLocal records whether local documentation is installed: the
// presence of the man, apropos and whatis binaries (man-db provides them),
// and the mtime of /usr/share/doc/arch-wiki, since arch-wiki-docs ships no
// binary. Each tool is run through a one-off InstalledToolProbe instance
// rather than the shared registry entry, since tool.presence is
// parameterized per query.
func gatherDocsLocal(ctx context.Context, registry *probe.Registry) (entitySet, error) {
	out := entitySet{}
	for _, tool := range []string{"man", "apropos", "whatis"} {
		res := probe.NewInstalledToolProbe(tool).Run(ctx)
		if !res.OK() {
			out["doc_tool:"+tool] = "absent"
			continue
		}
		presence := res.Data.(probe.ToolPresence)
		if presence.Present {
			out["doc_tool:"+tool] = presence.Path
		} else {
			out["doc_tool:"+tool] = "absent"
		}
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
	}
	if info, err := os.Stat("/usr/share/doc/arch-wiki"); err == nil {
		out["doc:arch-wiki"] = fmt.Sprintf("mtime=%d", info.ModTime().Unix())
	} else {
		out["doc:arch-wiki"] = "absent"
	}
	return out, nil
}
