package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/crucible"
)

// BuildInfo is injected from main.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

var (
	versionMu   sync.RWMutex
	buildInfo   = BuildInfo{Version: "dev", Commit: "unknown", BuildDate: "unknown"}
	appIdentity *appidentity.Identity
)

// SetVersionInfo records the build metadata reported by /version.
func SetVersionInfo(version, commit, buildDate string) {
	versionMu.Lock()
	defer versionMu.Unlock()
	buildInfo = BuildInfo{Version: version, Commit: commit, BuildDate: buildDate}
}

// SetAppIdentity records the identity reported by /version.
func SetAppIdentity(identity *appidentity.Identity) {
	versionMu.Lock()
	defer versionMu.Unlock()
	appIdentity = identity
}

// CurrentBuildInfo returns what SetVersionInfo recorded.
func CurrentBuildInfo() BuildInfo {
	versionMu.RLock()
	defer versionMu.RUnlock()
	return buildInfo
}

// VersionResponse is the body of GET /version.
type VersionResponse struct {
	App          AppInfo     `json:"app"`
	Dependencies DepInfo     `json:"dependencies"`
	Runtime      RuntimeInfo `json:"runtime"`
}

// AppInfo describes the running binary.
type AppInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version"`
	Commit      string `json:"git_commit"`
	BuildDate   string `json:"build_date"`
	GoVersion   string `json:"go_version,omitempty"`
}

// DepInfo reports the fulmen library versions compiled in.
type DepInfo struct {
	Gofulmen string `json:"gofulmen"`
	Crucible string `json:"crucible"`
}

// RuntimeInfo describes the host process.
type RuntimeInfo struct {
	Platform      string `json:"platform"`
	NumCPU        int    `json:"num_cpu"`
	NumGoroutines int    `json:"num_goroutines"`
}

// VersionHandler serves GET /version.
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	versionMu.RLock()
	info := buildInfo
	identity := appIdentity
	versionMu.RUnlock()

	name := "unknown"
	description := ""
	if identity != nil && identity.BinaryName != "" {
		name = identity.BinaryName
		description = identity.Description
	} else if len(os.Args) > 0 && os.Args[0] != "" {
		name = filepath.Base(os.Args[0])
	}

	deps := crucible.GetVersion()
	writeJSON(w, http.StatusOK, VersionResponse{
		App: AppInfo{
			Name:        name,
			Description: description,
			Version:     info.Version,
			Commit:      info.Commit,
			BuildDate:   info.BuildDate,
			GoVersion:   runtime.Version(),
		},
		Dependencies: DepInfo{
			Gofulmen: deps.Gofulmen,
			Crucible: deps.Crucible,
		},
		Runtime: RuntimeInfo{
			Platform:      runtime.GOOS + "/" + runtime.GOARCH,
			NumCPU:        runtime.NumCPU(),
			NumGoroutines: runtime.NumGoroutine(),
		},
	})
}
