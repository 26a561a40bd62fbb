// Package version provides centralized version information for the rtconfig
// projects. The rtconfigd target service and the rtconfig CLI are versioned
// independently so a newer CLI can talk to older targets and vice versa.
// All versions follow semantic versioning (semver) conventions.
package version

// RtconfigdVersion holds the current rtconfigd target service version.
// Reported by the health endpoint and stamped into captured images.
// Format: major.minor.patch[-prerelease][+build]
const RtconfigdVersion = "0.1.0-dev"

// RtconfigVersion holds the current rtconfig CLI version.
// Sent as part of the User-Agent header on every request to a target.
// Format: major.minor.patch[-prerelease][+build]
const RtconfigVersion = "0.1.0-dev"
