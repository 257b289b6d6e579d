package provision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/lvnafir/agnosis-arch/pkg/pacman"
	"github.com/lvnafir/agnosis-arch/pkg/profile"
)

// minFreeBytes is the disk headroom the package steps need.
const minFreeBytes = 2 << 30

func stepValidateEnvironment(env *Env) Step {
	return Step{
		Name:        "validate-environment",
		Description: "Check Arch base system, repository layout, and free disk space",
		Confirmable: true,
		Run: func(ctx context.Context, rec *Recorder) error {
			var failures []string

			if _, err := os.Stat("/etc/arch-release"); err != nil {
				failures = append(failures, "not an Arch system (/etc/arch-release missing)")
			} else {
				rec.Infof("Arch base system present")
			}

			if info, err := os.Stat(env.Cfg.ConfigSource()); err != nil || !info.IsDir() {
				failures = append(failures, fmt.Sprintf("repository config tree %s not found", env.Cfg.ConfigSource()))
			} else {
				rec.Infof("repository layout ok")
			}

			var st unix.Statfs_t
			if err := unix.Statfs("/", &st); err != nil {
				rec.Warnf("could not check free disk space: %v", err)
			} else if free := st.Bavail * uint64(st.Bsize); free < minFreeBytes {
				failures = append(failures, fmt.Sprintf("only %d MiB free on /, need at least %d MiB", free>>20, minFreeBytes>>20))
			} else {
				rec.Infof("disk space ok (%d MiB free)", free>>20)
			}

			if os.Geteuid() == 0 {
				rec.Infof("running as root, no sudo needed")
			} else if err := checkSudo(ctx, env.Exec); err != nil {
				failures = append(failures, err.Error())
			} else {
				rec.Infof("sudo access ok")
			}

			if err := checkNetwork(ctx, env.Exec); err != nil {
				failures = append(failures, err.Error())
			} else {
				rec.Infof("network ok")
			}

			if len(failures) > 0 {
				return errors.New(strings.Join(failures, "; "))
			}
			return nil
		},
	}
}

func stepFixPermissions(env *Env) Step {
	return Step{
		Name:        "fix-permissions",
		Description: "Mark bundled shell scripts executable",
		Confirmable: true,
		Run: func(ctx context.Context, rec *Recorder) error {
			fixed := 0
			for _, root := range []string{env.Cfg.ConfigSource(), env.Cfg.ConfigDest} {
				err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
					if err != nil || d.IsDir() || !strings.HasSuffix(path, ".sh") {
						return nil
					}
					info, err := d.Info()
					if err != nil {
						return nil
					}
					if info.Mode().Perm() == 0o755 {
						return nil
					}
					if err := os.Chmod(path, 0o755); err != nil {
						rec.Warnf("chmod %s: %v", path, err)
						return nil
					}
					fixed++
					return nil
				})
				if err != nil && !os.IsNotExist(err) {
					rec.Warnf("walk %s: %v", root, err)
				}
			}
			rec.Infof("%d script(s) updated", fixed)
			return nil
		},
	}
}

func stepSyncPackageDB(env *Env) Step {
	return Step{
		Name:        "sync-package-db",
		Description: "Synchronize the package database",
		Confirmable: true,
		Run: func(ctx context.Context, rec *Recorder) error {
			return env.Pacman.SyncDatabase(ctx)
		},
	}
}

func stepInstallPackages(env *Env) Step {
	return Step{
		Name:        "install-packages",
		Description: "Install the hardware-appropriate package groups",
		Confirmable: true,
		Run: func(ctx context.Context, rec *Recorder) error {
			pkgs, missing := env.Store.Expand(env.Groups)
			for _, key := range missing {
				// Resolution gap: warn and continue with the rest.
				rec.Warnf("no package list for group %s", key)
			}
			rec.Infof("installing %d package(s) from groups %v", len(pkgs), env.Groups)

			err := env.Pacman.Install(ctx, pkgs)
			var installErr *pacman.InstallError
			if errors.As(err, &installErr) {
				for _, pkg := range installErr.Packages {
					rec.Warnf("package %s failed to install: %s", pkg, installErr.Output)
				}
				return nil
			}
			return err
		},
	}
}

func stepInstallExtraPackages(env *Env) Step {
	return Step{
		Name:        "install-extra-packages",
		Description: "Install optional packages where available",
		Confirmable: true,
		Run: func(ctx context.Context, rec *Recorder) error {
			for _, pkg := range env.Cfg.ExtraPackages {
				if !env.Pacman.Available(ctx, pkg) {
					rec.Infof("%s not in any enabled repository, skipping", pkg)
					continue
				}
				if err := env.Pacman.Install(ctx, []string{pkg}); err != nil {
					rec.Warnf("install %s: %v", pkg, err)
				}
			}
			return nil
		},
	}
}

func stepCreateDirectories(env *Env) Step {
	return Step{
		Name:        "create-directories",
		Description: "Create the directories later steps rely on",
		Confirmable: true,
		Run: func(ctx context.Context, rec *Recorder) error {
			for _, dir := range env.Cfg.RequiredDirs() {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					rec.Warnf("create %s: %v", dir, err)
				}
			}
			return nil
		},
	}
}

func stepMigrateConfig(env *Env) Step {
	return Step{
		Name:        "migrate-config",
		Description: "Copy configuration files into place, backing up existing ones",
		Confirmable: true,
		Run: func(ctx context.Context, rec *Recorder) error {
			src := env.Cfg.ConfigSource()
			if _, err := os.Stat(src); err != nil {
				return fmt.Errorf("config source: %w", err)
			}

			backups := map[string]string{} // destination -> backup copy
			copied := 0
			err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() {
					return nil
				}
				rel, err := filepath.Rel(src, path)
				if err != nil {
					return err
				}
				dest := filepath.Join(env.Cfg.ConfigDest, rel)

				srcData, err := os.ReadFile(path)
				if err != nil {
					rec.Warnf("read %s: %v", path, err)
					return nil
				}
				if existing, err := os.ReadFile(dest); err == nil {
					if bytes.Equal(existing, srcData) {
						return nil
					}
					backup, err := env.backupFile(dest)
					if err != nil {
						rec.Warnf("%v; not overwriting %s", err, dest)
						return nil
					}
					backups[dest] = backup
				}
				if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
					rec.Warnf("create dir for %s: %v", dest, err)
					return nil
				}
				if err := copyFile(path, dest); err != nil {
					rec.Warnf("copy %s: %v", dest, err)
					return nil
				}
				copied++
				return nil
			})
			if err != nil {
				return fmt.Errorf("walk config source: %w", err)
			}
			rec.Infof("%d file(s) migrated, %d backed up", copied, len(backups))

			if len(backups) > 0 {
				archive := filepath.Join(env.Cfg.BackupDir(), "agnosis-backup-"+env.runStamp+".tar.zst")
				if err := writeBackupSnapshot(archive, env.RunID, backups); err != nil {
					rec.Warnf("backup snapshot: %v", err)
				} else {
					rec.Infof("backup snapshot written to %s", archive)
				}
			}
			return nil
		},
	}
}

func stepInstallSystemFiles(env *Env) Step {
	return Step{
		Name:        "install-system-files",
		Description: "Install hardware-conditional system configuration fragments",
		Confirmable: true,
		Run: func(ctx context.Context, rec *Recorder) error {
			// Re-read the persisted classification through the strict
			// loader: this step may run long after detection, and its
			// choices must rest on exactly what the classifier wrote.
			prof, ignored, err := profile.LoadEnvFile(env.Cfg.ProfilePath)
			if err != nil {
				return fmt.Errorf("load persisted profile: %w", err)
			}
			for _, key := range ignored {
				rec.Infof("ignoring unrecognized profile key %s", key)
			}

			files, err := LoadSystemFiles(env.Cfg.SysfilesManifest)
			if err != nil {
				return err
			}
			return env.installSystemFiles(ctx, rec, files, prof)
		},
	}
}

func stepEnableServices(env *Env) Step {
	return Step{
		Name:        "enable-services",
		Description: "Enable system services",
		Confirmable: true,
		Run: func(ctx context.Context, rec *Recorder) error {
			for _, unit := range env.Cfg.Services {
				if env.Systemd.Enabled(ctx, unit) {
					rec.Infof("%s already enabled", unit)
					continue
				}
				if err := env.Systemd.Enable(ctx, unit); err != nil {
					rec.Warnf("%v", err)
					continue
				}
				rec.Infof("enabled %s", unit)
			}
			return nil
		},
	}
}

func stepVerifyInstallation(env *Env) Step {
	return Step{
		Name:        "verify-installation",
		Description: "Verify critical configuration, commands, and services are in place",
		Confirmable: true,
		Run: func(ctx context.Context, rec *Recorder) error {
			for _, rel := range env.Cfg.CriticalFiles {
				path := filepath.Join(env.Cfg.ConfigDest, rel)
				if _, err := os.Stat(path); err != nil {
					rec.Warnf("critical config file %s is missing", path)
				}
			}

			for _, name := range env.Cfg.RequiredCommands {
				if _, err := env.Look(name); err != nil {
					rec.Warnf("command %s not found on PATH", name)
				}
			}

			for _, unit := range env.Cfg.Services {
				if !env.Systemd.Enabled(ctx, unit) {
					rec.Warnf("service %s is not enabled", unit)
				}
			}

			if len(rec.warnings) == 0 {
				rec.Infof("%d file(s), %d command(s), %d service(s) verified",
					len(env.Cfg.CriticalFiles), len(env.Cfg.RequiredCommands), len(env.Cfg.Services))
			}
			return nil
		},
	}
}

func stepReloadLiveConfig(env *Env) Step {
	return Step{
		Name:        "reload-live-config",
		Description: "Reload the running desktop session configuration",
		Confirmable: true,
		Run: func(ctx context.Context, rec *Recorder) error {
			if err := env.reloadLiveConfig(ctx); err != nil {
				// No live session to reload is the usual first-run case.
				rec.Infof("no live session reloaded: %v", err)
			}
			return nil
		},
	}
}
