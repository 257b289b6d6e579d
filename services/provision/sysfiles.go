package provision

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/lvnafir/agnosis-arch/pkg/profile"
)

//go:embed sysfiles.yaml
var defaultSysfilesManifest []byte

// SystemFile is one destination-bound configuration fragment, tagged
// with the classification predicate under which it may be installed.
// Fragments for non-matching hardware are never written; that gating
// is the core correctness property of the whole system.
type SystemFile struct {
	Name         string           `yaml:"name"`
	Template     string           `yaml:"template"`
	Dest         string           `yaml:"dest"`
	Mode         fs.FileMode      `yaml:"mode"`
	KernelModule bool             `yaml:"kernel_module"`
	When         SysfilePredicate `yaml:"when"`
}

// SysfilePredicate matches a profile. Empty fields are wildcards; all
// populated fields must match.
type SysfilePredicate struct {
	GPU      string `yaml:"gpu,omitempty"`
	OEM      string `yaml:"oem,omitempty"`
	Platform string `yaml:"platform,omitempty"`
	Feature  string `yaml:"feature,omitempty"`
}

// Matches evaluates the predicate against a profile. A GPU condition
// matches hybrid configurations through their discrete vendor, so an
// Optimus machine still receives the NVIDIA fragments.
func (p SysfilePredicate) Matches(prof profile.Profile) bool {
	if p.GPU != "" && string(prof.GPUConfig.DiscreteVendor()) != p.GPU {
		return false
	}
	if p.OEM != "" && string(prof.OEMFamily) != p.OEM {
		return false
	}
	if p.Platform != "" && string(prof.Platform) != p.Platform {
		return false
	}
	if p.Feature != "" && !prof.HasFeature(p.Feature) {
		return false
	}
	return true
}

type sysfilesManifest struct {
	Files []SystemFile `yaml:"files"`
}

// LoadSystemFiles reads the system-file manifest from path, or the
// embedded default when path is empty.
func LoadSystemFiles(path string) ([]SystemFile, error) {
	data := defaultSysfilesManifest
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read system-file manifest: %w", err)
		}
	}
	var m sysfilesManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse system-file manifest: %w", err)
	}
	for i := range m.Files {
		if m.Files[i].Mode == 0 {
			m.Files[i].Mode = 0o644
		}
	}
	return m.Files, nil
}

// installSystemFiles writes every fragment whose predicate matches the
// given profile, backing up differing pre-existing destinations first.
// If at least one kernel-module fragment was actually written, exactly
// one initramfs regeneration is triggered at the end, no matter how
// many such fragments there were.
func (e *Env) installSystemFiles(ctx context.Context, rec *Recorder, files []SystemFile, prof profile.Profile) error {
	kernelModuleChanged := false

	for _, sf := range files {
		if !sf.When.Matches(prof) {
			continue
		}
		content, err := e.Render.Render(sf.Template, prof)
		if err != nil {
			rec.Warnf("render %s: %v", sf.Name, err)
			continue
		}

		existing, err := os.ReadFile(sf.Dest)
		if err == nil && bytes.Equal(existing, content) {
			rec.Infof("%s already up to date", sf.Dest)
			continue
		}
		if err == nil {
			if _, err := e.backupFile(sf.Dest); err != nil {
				// Backup failure aborts this file only, never the step.
				rec.Warnf("%v; not overwriting %s", err, sf.Dest)
				continue
			}
		}

		if err := os.MkdirAll(filepath.Dir(sf.Dest), 0o755); err != nil {
			rec.Warnf("create dir for %s: %v", sf.Dest, err)
			continue
		}
		if err := os.WriteFile(sf.Dest, content, sf.Mode); err != nil {
			rec.Warnf("write %s: %v", sf.Dest, err)
			continue
		}
		rec.Infof("installed %s", sf.Dest)
		if sf.KernelModule {
			kernelModuleChanged = true
		}
	}

	if kernelModuleChanged {
		rec.Infof("kernel module options changed; regenerating initramfs")
		if err := e.regenerateInitramfs(ctx); err != nil {
			return fmt.Errorf("regenerate initramfs: %w", err)
		}
	}
	return nil
}
