package provision

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/lvnafir/agnosis-arch/pkg/pkgset"
	"github.com/lvnafir/agnosis-arch/pkg/profile"
)

// Config carries the paths and choices for one provisioning run.
// Defaults come from the environment in AGNOSIS_* variables; flags
// override them.
type Config struct {
	Home             string // invoking user's home directory
	ProfilePath      string // persisted classification file
	RepoRoot         string // checkout containing the config/ tree
	ConfigDest       string // destination for migrated dotfiles
	StateDir         string // run logs, reports, backup archives
	MetricsPath      string // prometheus textfile, "" disables
	GroupsManifest   string // package-group store override, "" = embedded
	SysfilesManifest string // system-file store override, "" = embedded
	ExtraPackages    []string
	Services         []string
	CriticalFiles    []string // ConfigDest-relative files verify-installation asserts
	RequiredCommands []string // binaries verify-installation resolves on PATH
	Kernel           pkgset.KernelChoice
	AssumeYes        bool
}

// Service units enabled by the enable-services step.
var defaultServices = []string{"bluetooth", "iwd", "sshd", "ly"}

// Optional third-party-repository packages, each gated on repository
// availability before install.
var defaultExtraPackages = []string{"hyprpaper", "hypridle", "hyprlock", "swww"}

// Config files the run must have left in place under ConfigDest.
var defaultCriticalFiles = []string{
	"hypr/hyprland.conf",
	"waybar/config",
	"kitty/kitty.conf",
}

// Commands the installed desktop needs resolvable on PATH.
var defaultRequiredCommands = []string{"Hyprland", "waybar", "wal"}

// LoadConfig builds a Config from the environment with sane defaults
// rooted in the invoking user's home.
func LoadConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("resolve home directory: %w", err)
	}

	cfg := Config{
		Home:             home,
		ProfilePath:      getEnv("AGNOSIS_PROFILE", profile.DefaultEnvPath),
		RepoRoot:         getEnv("AGNOSIS_REPO", "."),
		ConfigDest:       getEnv("AGNOSIS_CONFIG_DEST", filepath.Join(home, ".config")),
		StateDir:         getEnv("AGNOSIS_STATE_DIR", filepath.Join(home, ".local", "state", "agnosis")),
		MetricsPath:      os.Getenv("AGNOSIS_METRICS_FILE"),
		GroupsManifest:   os.Getenv("AGNOSIS_GROUPS"),
		SysfilesManifest: os.Getenv("AGNOSIS_SYSFILES"),
		ExtraPackages:    defaultExtraPackages,
		Services:         defaultServices,
		CriticalFiles:    defaultCriticalFiles,
		RequiredCommands: defaultRequiredCommands,
		Kernel:           pkgset.KernelStable,
		AssumeYes:        getEnvBool("AGNOSIS_ASSUME_YES", false),
	}
	return cfg, nil
}

// LogPath is the JSON run journal location.
func (c Config) LogPath() string {
	return filepath.Join(c.StateDir, "run.log")
}

// ReportPath is where the run report YAML is written.
func (c Config) ReportPath() string {
	return filepath.Join(c.StateDir, "last-run.yaml")
}

// BackupDir holds the per-run backup snapshot archives.
func (c Config) BackupDir() string {
	return filepath.Join(c.StateDir, "backups")
}

// ConfigSource is the dotfile tree migrated into ConfigDest.
func (c Config) ConfigSource() string {
	return filepath.Join(c.RepoRoot, "config")
}

// RequiredDirs lists the directories the create-directories step
// ensures exist before later steps rely on them.
func (c Config) RequiredDirs() []string {
	return []string{
		c.ConfigDest,
		c.StateDir,
		c.BackupDir(),
		filepath.Join(c.Home, "Pictures", "wallpapers"),
		filepath.Join(c.Home, ".cache", "wal"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}
