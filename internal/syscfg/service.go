// Package syscfg is the contract between the rtconfig CLI and the system
// configuration service running on each target.
//
// The CLI only ever talks to the interfaces in this file. Client implements
// them over the rtconfigd REST API; tests may substitute anything that
// satisfies them. Every handle returned here (sessions, enumerators,
// resources) is owned by the caller and must be closed on every exit path.
//
// Failures are reported as *Error values carrying a Status. The numeric code
// is what the CLI exits with, and its text comes from the service via
// Service.StatusDescription rather than being decoded locally.
package syscfg

import (
	"context"
	"errors"
)

// ErrEndOfEnum is returned by Next once an enumerator is exhausted.
var ErrEndOfEnum = errors.New("end of enumeration")

// Service is the entry point of the configuration API.
type Service interface {
	// OpenSession connects and authenticates to target. The target is a
	// hostname, IP address, host:port, or a name returned by FindSystems.
	OpenSession(ctx context.Context, target string, opts SessionOptions) (Session, error)

	// FindSystems enumerates the systems visible to the discovery service,
	// named in the requested format.
	FindSystems(ctx context.Context, opts FindOptions) (SystemEnumerator, error)

	// StatusDescription asks the service for the text of a status code.
	StatusDescription(ctx context.Context, status Status) (string, error)
}

// Session is an authenticated connection to one target.
type Session interface {
	// Target returns the reference the session was opened with.
	Target() string

	SystemInfo(ctx context.Context) (SystemInfo, error)

	// SetSystemProperty stages a change. Nothing reaches the target until
	// SaveChanges, which applies all staged changes or none of them.
	SetSystemProperty(p SystemProperty, value string) error
	SaveChanges(ctx context.Context) (SaveResult, error)

	// FindHardware enumerates the resources matching f. A nil filter
	// matches every resource.
	FindHardware(ctx context.Context, f *Filter) (ResourceEnumerator, error)

	// Restart reboots the target and waits for it to come back.
	Restart(ctx context.Context) (RestartResult, error)

	// Format erases the target's configuration and waits for completion.
	Format(ctx context.Context) error

	// GetImage captures the target's image into dir.
	GetImage(ctx context.Context, dir string) (ImageInfo, error)

	// SetImage applies the image stored in dir.
	SetImage(ctx context.Context, dir string, opts ImageOptions) error

	Close() error
}

// Resource is a hardware item found through Session.FindHardware.
type Resource interface {
	Info() ResourceInfo

	// SetProperty stages a change to a writable resource property.
	SetProperty(p Property, value string) error
	SaveChanges(ctx context.Context) (SaveResult, error)

	// SelfTest runs the resource's self-test. A resource without one fails
	// with StatusNotImplemented.
	SelfTest(ctx context.Context) error

	Rename(ctx context.Context, name string, opts RenameOptions) (RenameResult, error)

	// UpgradeFirmware uploads the firmware file at path. With opts.Wait it
	// polls until the update is terminal and returns the final progress.
	UpgradeFirmware(ctx context.Context, path string, opts FirmwareOptions) (FirmwareProgress, error)
	FirmwareStatus(ctx context.Context) (FirmwareProgress, error)

	Close() error
}

// ResourceEnumerator yields resources until ErrEndOfEnum.
type ResourceEnumerator interface {
	Next(ctx context.Context) (Resource, error)
	Close() error
}

// SystemEnumerator yields system names until ErrEndOfEnum.
type SystemEnumerator interface {
	Next(ctx context.Context) (string, error)
	Close() error
}
