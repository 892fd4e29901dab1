package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"git.home.luguber.info/inful/wspkg/internal/pkgid"
)

// Platform holds the file name affixes of the target platform.
type Platform struct {
	ExeSuffix   string
	DylibPrefix string
	DylibSuffix string
}

// HostPlatform returns the affixes for the running operating system.
func HostPlatform() Platform {
	switch runtime.GOOS {
	case "windows":
		return Platform{ExeSuffix: ".exe", DylibSuffix: ".dll"}
	case "darwin":
		return Platform{DylibPrefix: "lib", DylibSuffix: ".dylib"}
	default:
		return Platform{DylibPrefix: "lib", DylibSuffix: ".so"}
	}
}

// Paths are the deterministic artifact locations for one package in one workspace.
type Paths struct {
	BuildDir         string
	BuiltExecutable  string
	BuiltLibrary     string
	BuiltTest        string
	BuiltBench       string
	BuildScriptExe   string
	TargetExecutable string
	TargetLibrary    string
}

// PathsFor derives every artifact path for id in ws.
func PathsFor(ws Workspace, id pkgid.ID, plat Platform) Paths {
	buildDir := filepath.Join(ws.Build(), filepath.FromSlash(id.Path()))
	name := id.Name()
	lib := LibraryFileName(id, plat)
	return Paths{
		BuildDir:         buildDir,
		BuiltExecutable:  filepath.Join(buildDir, name+plat.ExeSuffix),
		BuiltLibrary:     filepath.Join(buildDir, lib),
		BuiltTest:        filepath.Join(buildDir, name+"test"+plat.ExeSuffix),
		BuiltBench:       filepath.Join(buildDir, name+"bench"+plat.ExeSuffix),
		BuildScriptExe:   filepath.Join(buildDir, "pkg"+plat.ExeSuffix),
		TargetExecutable: filepath.Join(ws.Bin(), name+plat.ExeSuffix),
		TargetLibrary:    filepath.Join(ws.Lib(), lib),
	}
}

// LibraryFileName is lib<name>-<hash>-<version><dylib suffix>.
func LibraryFileName(id pkgid.ID, plat Platform) string {
	return fmt.Sprintf("%s%s-%s-%s%s", plat.DylibPrefix, id.Name(), id.Hash(), id.VersionOrDefault(), plat.DylibSuffix)
}

// IsInstalledIn reports whether ws holds an installed executable or library for id.
func IsInstalledIn(ws Workspace, id pkgid.ID, plat Platform) bool {
	p := PathsFor(ws, id, plat)
	return fileExists(p.TargetExecutable) || fileExists(p.TargetLibrary)
}

// UninstallFrom removes the installed executable and library of id from ws.
// It returns the paths actually removed.
func UninstallFrom(ws Workspace, id pkgid.ID, plat Platform) ([]string, error) {
	p := PathsFor(ws, id, plat)
	var removed []string
	for _, target := range []string{p.TargetExecutable, p.TargetLibrary} {
		err := os.Remove(target)
		switch {
		case err == nil:
			removed = append(removed, target)
		case os.IsNotExist(err):
		default:
			return removed, fmt.Errorf("failed to remove %s: %w", target, err)
		}
	}
	return removed, nil
}

func fileExists(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}
