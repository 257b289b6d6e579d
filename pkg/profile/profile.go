// Package profile defines the classified hardware profile produced by
// detection and consumed by package resolution and provisioning, along
// with the key=value file format used to hand the profile to later
// process invocations.
package profile

import (
	"fmt"
	"sort"
	"strings"
)

// CPUVendor identifies the CPU manufacturer.
type CPUVendor string

const (
	CPUIntel   CPUVendor = "intel"
	CPUAMD     CPUVendor = "amd"
	CPUUnknown CPUVendor = "unknown"
)

// GPUConfig identifies the graphics controller arrangement.
type GPUConfig string

const (
	GPUIntel             GPUConfig = "intel"
	GPUAMD               GPUConfig = "amd"
	GPUNvidia            GPUConfig = "nvidia"
	GPUHybridIntelNvidia GPUConfig = "hybrid-intel-nvidia"
	GPUHybridIntelAMD    GPUConfig = "hybrid-intel-amd"
	GPUUnknown           GPUConfig = "unknown"
)

// DiscreteVendor returns the discrete component of a hybrid
// configuration, or the config itself for single-vendor values.
// GPUUnknown maps to GPUUnknown.
func (g GPUConfig) DiscreteVendor() GPUConfig {
	switch g {
	case GPUHybridIntelNvidia:
		return GPUNvidia
	case GPUHybridIntelAMD:
		return GPUAMD
	default:
		return g
	}
}

// Hybrid reports whether both an integrated and a discrete controller
// are present.
func (g GPUConfig) Hybrid() bool {
	return g == GPUHybridIntelNvidia || g == GPUHybridIntelAMD
}

// Platform distinguishes portable machines from stationary ones.
type Platform string

const (
	PlatformLaptop  Platform = "laptop"
	PlatformDesktop Platform = "desktop"
)

// OEMFamily identifies the machine vendor line when it needs
// vendor-specific packages or configuration.
type OEMFamily string

const (
	OEMThinkPad OEMFamily = "thinkpad"
	OEMDell     OEMFamily = "dell"
	OEMHP       OEMFamily = "hp"
	OEMAsus     OEMFamily = "asus"
	OEMMSI      OEMFamily = "msi"
	OEMAcer     OEMFamily = "acer"
	OEMGeneric  OEMFamily = "generic"
)

// Feature flags are independent capability tags; any subset may be set.
const (
	FeatureFanControl   = "fan-control"
	FeatureGPUSwitching = "gpu-switching"
	FeatureThunderbolt  = "thunderbolt"
	FeatureTouchInput   = "touch-input"
	FeatureFingerprint  = "fingerprint-reader"
)

// DefaultRegion is used when no locale hint is available.
const DefaultRegion = "US"

// Profile is the classification result for one machine. It is produced
// once per provisioning run and never mutated afterwards; re-detection
// always builds a fresh value.
type Profile struct {
	CPUVendor    CPUVendor
	GPUConfig    GPUConfig
	Platform     Platform
	OEMFamily    OEMFamily
	MirrorRegion string
	Features     map[string]bool
}

// Default returns the terminal fallback profile: every axis resolved to
// its defined unknown/generic value with an empty feature set.
func Default() Profile {
	return Profile{
		CPUVendor:    CPUUnknown,
		GPUConfig:    GPUUnknown,
		Platform:     PlatformDesktop,
		OEMFamily:    OEMGeneric,
		MirrorRegion: DefaultRegion,
		Features:     map[string]bool{},
	}
}

// HasFeature reports whether the named capability flag is set.
func (p Profile) HasFeature(name string) bool {
	return p.Features[name]
}

// FeatureList returns the set flags sorted for reproducible output.
func (p Profile) FeatureList() []string {
	out := make([]string, 0, len(p.Features))
	for f, set := range p.Features {
		if set {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// String renders a one-line human summary used by the detect command.
func (p Profile) String() string {
	s := fmt.Sprintf("cpu=%s gpu=%s platform=%s oem=%s region=%s",
		p.CPUVendor, p.GPUConfig, p.Platform, p.OEMFamily, p.MirrorRegion)
	if feats := p.FeatureList(); len(feats) > 0 {
		s += " features=" + strings.Join(feats, ",")
	}
	return s
}
