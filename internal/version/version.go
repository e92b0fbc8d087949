package version

import (
	"fmt"
	"runtime/debug"
)

// ServiceName — имя сервиса в трейсах, логах и health-ответах.
const ServiceName = "fulfillment-service"

// Заполняются через -ldflags "-X .../internal/version.version=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info возвращает версию, коммит и дату сборки. Если коммит не передан через
// ldflags, берётся ревизия VCS из build info.
func Info() (v, c, d string) {
	c, d = commit, date
	if c == "unknown" {
		if rev, at, ok := vcsInfo(debug.ReadBuildInfo); ok {
			c = rev
			if d == "unknown" && at != "" {
				d = at
			}
		}
	}
	return version, c, d
}

func GetVersion() string { return version }

func String() string {
	v, c, d := Info()
	return fmt.Sprintf("%s version=%s commit=%s date=%s", ServiceName, v, c, d)
}

func vcsInfo(read func() (*debug.BuildInfo, bool)) (revision, at string, ok bool) {
	info, ok := read()
	if !ok || info == nil {
		return "", "", false
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.time":
			at = s.Value
		}
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	return revision, at, revision != ""
}
