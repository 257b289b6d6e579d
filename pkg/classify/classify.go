// Package classify maps raw hardware signals to the closed categorical
// values of a profile.Profile. Classification is a pure function of its
// input and never fails; every ambiguous or missing signal resolves to
// the axis' defined fallback member.
package classify

import (
	"regexp"
	"strings"

	"github.com/lvnafir/agnosis-arch/pkg/hwinfo"
	"github.com/lvnafir/agnosis-arch/pkg/profile"
)

// CPU vendor_id strings are a stable, well-known set; exact equality
// only, no fuzzy matching.
const (
	vendorIDIntel = "GenuineIntel"
	vendorIDAMD   = "AuthenticAMD"
)

// Curated keyword families per GPU vendor. Matching is word-bounded for
// every vendor: "amd" must not fire inside an unrelated token, and a
// Radeon card is recognized even when "AMD" itself never appears.
var gpuKeywords = map[profile.GPUConfig][]string{
	profile.GPUIntel:  {"intel"},
	profile.GPUAMD:    {"amd", "ati", "radeon"},
	profile.GPUNvidia: {"nvidia", "geforce", "quadro"},
}

var wordRes = buildWordRes()

func buildWordRes() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp)
	for _, words := range gpuKeywords {
		for _, w := range words {
			out[w] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)
		}
	}
	out["thunderbolt"] = regexp.MustCompile(`(?i)\bthunderbolt\b`)
	return out
}

// Laptop-like and desktop-like chassis identifiers: SMBIOS numeric
// codes as reported by /sys/class/dmi/id/chassis_type alongside the
// descriptive names other tooling emits for the same codes.
var laptopChassis = map[string]bool{
	"8": true, "9": true, "10": true, "11": true, "14": true, "31": true, "32": true,
	"portable": true, "laptop": true, "notebook": true, "hand held": true,
	"sub notebook": true, "convertible": true, "detachable": true, "tablet": true,
}

var desktopChassis = map[string]bool{
	"3": true, "4": true, "5": true, "6": true, "7": true, "13": true,
	"15": true, "16": true, "17": true, "23": true,
	"desktop": true, "low profile desktop": true, "pizza box": true,
	"mini tower": true, "tower": true, "all in one": true, "space-saving": true,
	"mini pc": true, "server": true, "rack mount chassis": true,
}

// Ordered vendor substrings for the OEM axis. Order matters: the first
// match wins, and "lenovo" is a two-level decision resolved by
// oemForLenovo.
var oemVendors = []struct {
	substr string
	family profile.OEMFamily
}{
	{"lenovo", profile.OEMThinkPad}, // refined against the product name below
	{"dell", profile.OEMDell},
	{"hewlett", profile.OEMHP},
	{"hp", profile.OEMHP},
	{"asus", profile.OEMAsus},
	{"micro-star", profile.OEMMSI},
	{"msi", profile.OEMMSI},
	{"acer", profile.OEMAcer},
}

// Classify maps a snapshot to a complete profile. Identical snapshots
// always yield identical profiles.
func Classify(s hwinfo.Snapshot) profile.Profile {
	p := profile.Default()
	p.CPUVendor = cpuVendor(s.CPUVendorID)
	p.GPUConfig = gpuConfig(s.Controllers)
	p.Platform = platform(s.ChassisType, s.HasBattery)
	p.OEMFamily = oemFamily(s.Manufacturer, s.ProductName)
	p.MirrorRegion = mirrorRegion(s.Locale)
	p.Features = features(s, p.GPUConfig)
	return p
}

func cpuVendor(vendorID string) profile.CPUVendor {
	switch vendorID {
	case vendorIDIntel:
		return profile.CPUIntel
	case vendorIDAMD:
		return profile.CPUAMD
	default:
		return profile.CPUUnknown
	}
}

func gpuConfig(controllers []string) profile.GPUConfig {
	var intel, amd, nvidia bool
	for _, line := range controllers {
		if matchesVendor(line, profile.GPUIntel) {
			intel = true
		}
		if matchesVendor(line, profile.GPUAMD) {
			amd = true
		}
		if matchesVendor(line, profile.GPUNvidia) {
			nvidia = true
		}
	}
	// Hybrid takes priority over single-vendor when an integrated
	// Intel controller coexists with a discrete one.
	switch {
	case intel && nvidia:
		return profile.GPUHybridIntelNvidia
	case intel && amd:
		return profile.GPUHybridIntelAMD
	case nvidia:
		return profile.GPUNvidia
	case amd:
		return profile.GPUAMD
	case intel:
		return profile.GPUIntel
	default:
		return profile.GPUUnknown
	}
}

func matchesVendor(line string, vendor profile.GPUConfig) bool {
	for _, kw := range gpuKeywords[vendor] {
		if wordRes[kw].MatchString(line) {
			return true
		}
	}
	return false
}

func platform(chassis string, hasBattery bool) profile.Platform {
	key := strings.ToLower(strings.TrimSpace(chassis))
	if laptopChassis[key] {
		return profile.PlatformLaptop
	}
	if desktopChassis[key] {
		return profile.PlatformDesktop
	}
	// Chassis absent or unrecognized: battery presence is the proxy,
	// and desktop is the terminal default.
	if hasBattery {
		return profile.PlatformLaptop
	}
	return profile.PlatformDesktop
}

func oemFamily(manufacturer, product string) profile.OEMFamily {
	mfg := strings.ToLower(strings.TrimSpace(manufacturer))
	if mfg == "" {
		return profile.OEMGeneric
	}
	for _, v := range oemVendors {
		if !strings.Contains(mfg, v.substr) {
			continue
		}
		if v.substr == "lenovo" {
			return oemForLenovo(product)
		}
		return v.family
	}
	return profile.OEMGeneric
}

// Lenovo ships several lines; only ThinkPads get vendor-specific
// treatment, distinguished by the product name.
func oemForLenovo(product string) profile.OEMFamily {
	if strings.Contains(strings.ToLower(product), "thinkpad") {
		return profile.OEMThinkPad
	}
	return profile.OEMGeneric
}

// mirrorRegion extracts the territory from a POSIX locale such as
// en_US.UTF-8. Anything unparseable falls back to the default region.
func mirrorRegion(locale string) string {
	locale = strings.TrimSpace(locale)
	if locale == "" || strings.EqualFold(locale, "C") || strings.HasPrefix(locale, "C.") {
		return profile.DefaultRegion
	}
	if i := strings.IndexAny(locale, ".@"); i >= 0 {
		locale = locale[:i]
	}
	_, territory, ok := strings.Cut(locale, "_")
	if !ok || len(territory) != 2 {
		return profile.DefaultRegion
	}
	return strings.ToUpper(territory)
}

func features(s hwinfo.Snapshot, gpu profile.GPUConfig) map[string]bool {
	out := map[string]bool{}
	if s.FanInterface {
		out[profile.FeatureFanControl] = true
	}
	if gpu.Hybrid() {
		out[profile.FeatureGPUSwitching] = true
	}
	for _, line := range s.PCIDevices {
		if wordRes["thunderbolt"].MatchString(line) {
			out[profile.FeatureThunderbolt] = true
		}
	}
	lowerInput := strings.ToLower(s.InputDevices)
	if strings.Contains(lowerInput, "touchscreen") || strings.Contains(lowerInput, "touchpad") {
		out[profile.FeatureTouchInput] = true
	}
	for _, dev := range s.USBDevices {
		if strings.Contains(strings.ToLower(dev), "fingerprint") {
			out[profile.FeatureFingerprint] = true
		}
	}
	return out
}
