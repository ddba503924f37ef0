/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package version reports the running service version extracted from the build info.
package version

import (
	"fmt"
	"runtime/debug"
	"sync"
)

var appVersion string
var appVersionOnce sync.Once

// Get returns the version of the main module embedded by the Go toolchain.
// "v0.0.0" is returned for binaries built outside of a module context (e.g. tests).
func Get() string {
	appVersionOnce.Do(initAppVersion)
	return appVersion
}

// UserAgent builds a User-Agent string for outbound requests of the named service.
func UserAgent(serviceName string) string {
	return fmt.Sprintf("%s/%s", serviceName, Get())
}

func initAppVersion() {
	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		appVersion = buildInfo.Main.Version
	}
	if appVersion == "" || appVersion == "(devel)" {
		appVersion = "v0.0.0"
	}
}
