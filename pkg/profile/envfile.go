package profile

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// DefaultEnvPath is where a run persists its classification for steps
// that execute as logically separate invocations.
const DefaultEnvPath = "/tmp/agnosis-hardware.conf"

// maxEnvFileSize bounds the persisted classification file. It only ever
// holds a handful of short lines; anything larger indicates corruption
// or tampering and fails the load outright.
const maxEnvFileSize = 4096

// Keys bound from the persisted file. Unknown keys are ignored, never
// propagated into the profile.
const (
	envKeyCPUVendor   = "CPU_VENDOR"
	envKeyGPUType     = "GPU_TYPE"
	envKeyPlatform    = "PLATFORM"
	envKeyLaptopBrand = "LAPTOP_BRAND"
	envKeyCountry     = "COUNTRY"
	envKeyFeatures    = "FEATURES"
)

var envAllowList = map[string]bool{
	envKeyCPUVendor:   true,
	envKeyGPUType:     true,
	envKeyPlatform:    true,
	envKeyLaptopBrand: true,
	envKeyCountry:     true,
	envKeyFeatures:    true,
}

// envLineRe matches the only accepted line shape: ALLCAPS_KEY="value".
var envLineRe = regexp.MustCompile(`^([A-Z][A-Z0-9_]*)="([^"]*)"$`)

// Characters that would let the value escape into a shell if the file
// were ever sourced. Their presence anywhere fails the whole load.
const forbiddenValueChars = "$`()|&;<>"

// WriteEnvFile persists the profile as KEY="value" lines readable by
// LoadEnvFile in a later invocation. The file is written 0600.
func (p Profile) WriteEnvFile(path string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s=%q\n", envKeyCPUVendor, string(p.CPUVendor))
	fmt.Fprintf(&b, "%s=%q\n", envKeyGPUType, string(p.GPUConfig))
	fmt.Fprintf(&b, "%s=%q\n", envKeyPlatform, string(p.Platform))
	fmt.Fprintf(&b, "%s=%q\n", envKeyLaptopBrand, string(p.OEMFamily))
	fmt.Fprintf(&b, "%s=%q\n", envKeyCountry, p.MirrorRegion)
	fmt.Fprintf(&b, "%s=%q\n", envKeyFeatures, strings.Join(p.FeatureList(), ","))
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("write profile file: %w", err)
	}
	return nil
}

// LoadEnvFile reads a persisted classification file with all-or-nothing
// validation: any oversized file, malformed line, or shell
// metacharacter in a value fails the entire load. Keys outside the
// allow-list are reported back to the caller but never bound.
//
// The strictness exists because the data crosses a process boundary
// and later feeds decisions about which privileged system files get
// installed; a best-effort partial parse would turn corruption into an
// injection vector.
func LoadEnvFile(path string) (Profile, []string, error) {
	p := Default()

	info, err := os.Stat(path)
	if err != nil {
		return p, nil, fmt.Errorf("stat profile file: %w", err)
	}
	if info.Size() > maxEnvFileSize {
		return p, nil, fmt.Errorf("profile file %s is %d bytes, larger than the %d byte bound", path, info.Size(), maxEnvFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return p, nil, fmt.Errorf("read profile file: %w", err)
	}

	values := map[string]string{}
	var ignored []string
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m := envLineRe.FindStringSubmatch(line)
		if m == nil {
			return p, nil, fmt.Errorf("profile file %s line %d: malformed line %q", path, i+1, line)
		}
		key, value := m[1], m[2]
		if strings.ContainsAny(value, forbiddenValueChars) {
			return p, nil, fmt.Errorf("profile file %s line %d: value for %s contains forbidden characters", path, i+1, key)
		}
		if !envAllowList[key] {
			ignored = append(ignored, key)
			continue
		}
		values[key] = value
	}

	if v, ok := values[envKeyCPUVendor]; ok {
		p.CPUVendor = parseCPUVendor(v)
	}
	if v, ok := values[envKeyGPUType]; ok {
		p.GPUConfig = parseGPUConfig(v)
	}
	if v, ok := values[envKeyPlatform]; ok {
		p.Platform = parsePlatform(v)
	}
	if v, ok := values[envKeyLaptopBrand]; ok {
		p.OEMFamily = parseOEMFamily(v)
	}
	if v, ok := values[envKeyCountry]; ok && v != "" {
		p.MirrorRegion = v
	}
	if v, ok := values[envKeyFeatures]; ok && v != "" {
		for _, f := range strings.Split(v, ",") {
			if f = strings.TrimSpace(f); f != "" {
				p.Features[f] = true
			}
		}
	}
	return p, ignored, nil
}

// Unrecognized enum text resolves to the terminal fallback member, the
// same policy the classifier applies to raw hardware strings.

func parseCPUVendor(s string) CPUVendor {
	switch CPUVendor(s) {
	case CPUIntel, CPUAMD:
		return CPUVendor(s)
	default:
		return CPUUnknown
	}
}

func parseGPUConfig(s string) GPUConfig {
	switch GPUConfig(s) {
	case GPUIntel, GPUAMD, GPUNvidia, GPUHybridIntelNvidia, GPUHybridIntelAMD:
		return GPUConfig(s)
	default:
		return GPUUnknown
	}
}

func parsePlatform(s string) Platform {
	if Platform(s) == PlatformLaptop {
		return PlatformLaptop
	}
	return PlatformDesktop
}

func parseOEMFamily(s string) OEMFamily {
	switch OEMFamily(s) {
	case OEMThinkPad, OEMDell, OEMHP, OEMAsus, OEMMSI, OEMAcer:
		return OEMFamily(s)
	default:
		return OEMGeneric
	}
}
