// Package handlers implements the rtconfig commands.
//
// Every handler has the same shape: open one session per target, do one
// logical unit of work, close every handle it opened on every path, then
// report. Arity is checked by the dispatcher before a handler runs.
//
// - system.go: find, findsn, sethostname, setip, restart, format
// - image.go: getimage, setimage
// - hardware.go: selftest, listhw, setmode, setalias, updatefirmware
package handlers

import (
	"context"
	"errors"

	"github.com/concave-dev/rtconfig/cmd/rtconfig/commands"
	"github.com/concave-dev/rtconfig/internal/logging"
	"github.com/concave-dev/rtconfig/internal/syscfg"
)

// Entries returns every rtconfig command in registration order.
func Entries() []commands.Entry {
	return []commands.Entry{
		{Name: "find", Usage: "find [TARGETNAME]", Arity: commands.Between(0, 1),
			Short: "Find available targets, or show one target", Handler: HandleFind},
		{Name: "setimage", Usage: "setimage <TARGETNAME> <IMAGEPATH>", Arity: commands.Exactly(2),
			Short: "Apply an image folder to a target", Handler: HandleSetImage},
		{Name: "getimage", Usage: "getimage <TARGETNAME>", Arity: commands.Exactly(1),
			Short: "Save a target's image to a folder named after its hostname", Handler: HandleGetImage},
		{Name: "selftest", Usage: "selftest <TARGETNAME>", Arity: commands.Exactly(1),
			Short: "Run the self-test of every slotted resource", Handler: HandleSelfTest},
		{Name: "sethostname", Usage: "sethostname <TARGETNAME> <NEW_HOSTNAME>", Arity: commands.Exactly(2),
			Short: "Change a target's hostname", Handler: HandleSetHostname},
		{Name: "setip", Usage: "setip <TARGETNAME> <NEW_IP> [SUBNET_MASK]", Arity: commands.Between(2, 3),
			Short: "Set a static IP address", Handler: HandleSetIP},
		{Name: "restart", Usage: "restart <TARGETNAME>", Arity: commands.Exactly(1),
			Short: "Restart a target and wait for it to come back", Handler: HandleRestart},
		{Name: "updatefirmware", Usage: "updatefirmware <TARGETNAME> <FIRMWARE_PATH>", Arity: commands.Exactly(2),
			Short: "Update a target's firmware", Handler: HandleUpdateFirmware, Flags: firmwareFlags},
		{Name: "findsn", Usage: "findsn <SERIAL_NUMBER>", Arity: commands.Exactly(1),
			Short: "Print the IP address of the target with a serial number", Handler: HandleFindSerial},
		{Name: "setmode", Usage: "setmode <TARGETNAME> <scan|fpga|daq>", Arity: commands.Exactly(2),
			Short: "Set the program mode of every C Series module", Handler: HandleSetMode},
		{Name: "listhw", Usage: "listhw <TARGETNAME>", Arity: commands.Exactly(1),
			Short: "List the modules installed in a target", Handler: HandleListHardware},
		{Name: "format", Usage: "format <TARGETNAME>", Arity: commands.Exactly(1),
			Short: "Erase a target's configuration", Handler: HandleFormat},
		{Name: "setalias", Usage: "setalias <TARGETNAME> <SLOT> <NEW_ALIAS>", Arity: commands.Exactly(3),
			Short: "Set the alias of the module in a slot", Handler: HandleSetAlias},
	}
}

// NewRegistry builds the registry of every rtconfig command.
func NewRegistry() (*commands.Registry, error) {
	return commands.NewRegistry(Entries()...)
}

// openSession opens a session with the global credentials.
func openSession(ctx context.Context, env *commands.Env, target string) (syscfg.Session, error) {
	session, err := env.Service.OpenSession(ctx, target, env.Session)
	if err != nil {
		return nil, err
	}
	logging.Debug("Opened session to %s", target)
	return session, nil
}

// closeHandle closes a handle and logs failures. Close errors never change
// a command's outcome.
func closeHandle(name string, c interface{ Close() error }) {
	if err := c.Close(); err != nil {
		logging.Warn("Failed to close %s: %v", name, err)
	}
}

// eachResource calls fn for every resource matching f. Each resource is
// closed after fn returns; the enumerator is closed when iteration ends.
// Returning an error from fn stops the iteration.
func eachResource(ctx context.Context, session syscfg.Session, f *syscfg.Filter, fn func(syscfg.Resource) error) error {
	enum, err := session.FindHardware(ctx, f)
	if err != nil {
		return err
	}
	defer closeHandle("resource enumerator", enum)

	for {
		res, err := enum.Next(ctx)
		if errors.Is(err, syscfg.ErrEndOfEnum) {
			return nil
		}
		if err != nil {
			return err
		}
		err = fn(res)
		closeHandle("resource", res)
		if err != nil {
			return err
		}
	}
}

// eachSystem calls fn with the name of every discovered system until fn
// returns stop or an error.
func eachSystem(ctx context.Context, env *commands.Env, format syscfg.NameFormat, fn func(name string) (stop bool, err error)) error {
	enum, err := env.Service.FindSystems(ctx, syscfg.FindOptions{Format: format, Timeout: env.Session.Timeout})
	if err != nil {
		return err
	}
	defer closeHandle("system enumerator", enum)

	for {
		name, err := enum.Next(ctx)
		if errors.Is(err, syscfg.ErrEndOfEnum) {
			return nil
		}
		if err != nil {
			return err
		}
		stop, err := fn(name)
		if err != nil || stop {
			return err
		}
	}
}

// systemInfo opens a session only long enough to read the system
// properties.
func systemInfo(ctx context.Context, env *commands.Env, target string) (syscfg.SystemInfo, error) {
	session, err := openSession(ctx, env, target)
	if err != nil {
		return syscfg.SystemInfo{}, err
	}
	defer closeHandle("session", session)
	return session.SystemInfo(ctx)
}

// reportSave prints the restart acknowledgement after a save.
func reportSave(env *commands.Env, result syscfg.SaveResult) {
	if result.RestartRequired {
		env.Printf("Restart Required For Changes To Take Effect\n")
	}
}
