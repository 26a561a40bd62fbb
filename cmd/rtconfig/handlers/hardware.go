package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/concave-dev/rtconfig/cmd/rtconfig/commands"
	"github.com/concave-dev/rtconfig/cmd/rtconfig/display"
	"github.com/concave-dev/rtconfig/internal/logging"
	"github.com/concave-dev/rtconfig/internal/syscfg"
	"github.com/spf13/pflag"
)

// programModes maps setmode keywords to module program modes.
var programModes = map[string]syscfg.ProgramMode{
	"scan": syscfg.ProgramModeRealtimeScan,
	"fpga": syscfg.ProgramModeLabVIEWFPGA,
	"daq":  syscfg.ProgramModeRealtimeCPU,
}

// slotted matches every resource that has a slot number.
func slotted() *syscfg.Filter {
	return syscfg.NewFilter(syscfg.AllPropertiesExist).Set(syscfg.PropSlotNumber, nil)
}

// firstResource returns the first resource matching f. The caller closes
// it. No match is StatusResourceNotFound.
func firstResource(ctx context.Context, session syscfg.Session, f *syscfg.Filter, op, what string) (syscfg.Resource, error) {
	enum, err := session.FindHardware(ctx, f)
	if err != nil {
		return nil, err
	}
	defer closeHandle("resource enumerator", enum)

	res, err := enum.Next(ctx)
	if errors.Is(err, syscfg.ErrEndOfEnum) {
		return nil, syscfg.Errorf(syscfg.StatusResourceNotFound, op, "no %s found", what)
	}
	return res, err
}

// HandleSelfTest runs the self-test of every slotted resource and reports
// each result inline.
func HandleSelfTest(ctx context.Context, env *commands.Env, args []string) error {
	session, err := openSession(ctx, env, args[0])
	if err != nil {
		return err
	}
	defer closeHandle("session", session)

	env.Printf("Running Self Tests...\n")
	if !env.JSON {
		display.SelfTestHeader(env.Out)
	}

	results := []display.SelfTestResult{}
	err = eachResource(ctx, session, slotted(), func(res syscfg.Resource) error {
		testErr := res.SelfTest(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		result := display.ClassifySelfTest(res.Info(), testErr)
		if env.JSON {
			results = append(results, result)
		} else {
			display.SelfTestRow(env.Out, result)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if env.JSON {
		return display.JSON(env.Out, results)
	}
	return nil
}

// HandleListHardware lists slotted resources. Resources without a serial
// number, such as empty slots, are skipped.
func HandleListHardware(ctx context.Context, env *commands.Env, args []string) error {
	session, err := openSession(ctx, env, args[0])
	if err != nil {
		return err
	}
	defer closeHandle("session", session)

	var entries []display.HardwareEntry
	err = eachResource(ctx, session, slotted(), func(res syscfg.Resource) error {
		info := res.Info()
		if info.SerialNumber == "" {
			return nil
		}
		entries = append(entries, display.NewHardwareEntry(info))
		return nil
	})
	if err != nil {
		return err
	}
	return display.Hardware(env.Out, entries, env.JSON)
}

// HandleSetMode sets the program mode of every installed C Series module.
// Every module is visited; the first failure is returned at the end.
func HandleSetMode(ctx context.Context, env *commands.Env, args []string) error {
	mode, ok := programModes[args[1]]
	if !ok {
		fmt.Fprintf(env.Out, "Programming mode \"%s\" invalid. Choose from programming modes scan, fpga, or daq.\n", args[1])
		return &commands.UsageError{
			Usage:  "setmode <TARGETNAME> <scan|fpga|daq>",
			Reason: fmt.Sprintf("invalid programming mode %q", args[1]),
		}
	}

	session, err := openSession(ctx, env, args[0])
	if err != nil {
		return err
	}
	defer closeHandle("session", session)

	modules := syscfg.NewFilter(syscfg.MatchValuesAll).Set(syscfg.PropBusType, syscfg.BusCompactRIO)
	var (
		firstErr error
		restart  bool
	)
	err = eachResource(ctx, session, modules, func(res syscfg.Resource) error {
		info := res.Info()
		if info.SerialNumber == "" {
			logging.Debug("Skipping empty slot %s", info.ResourceName)
			return nil
		}

		env.Printf("Setting Module Mode: %s (%s)\n", info.DisplayName(), info.ProductName)
		err := res.SetProperty(syscfg.PropProgramMode, string(mode))
		if err == nil {
			var result syscfg.SaveResult
			result, err = res.SaveChanges(ctx)
			restart = restart || result.RestartRequired
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			env.Printf("Failed To Set Module Mode: %s: %v\n", info.DisplayName(), err)
			if firstErr == nil {
				firstErr = err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	reportSave(env, syscfg.SaveResult{RestartRequired: restart})
	return firstErr
}

// HandleSetAlias renames the C Series module in a slot. The controller
// reports slot 0 but is named by its hostname, so it never matches. An
// alias already used by another resource is taken over.
func HandleSetAlias(ctx context.Context, env *commands.Env, args []string) error {
	slot, err := strconv.Atoi(args[1])
	if err != nil || slot < 0 {
		fmt.Fprintf(env.Out, "Slot \"%s\" invalid. Expecting a non-negative slot number.\n", args[1])
		return &commands.UsageError{
			Usage:  "setalias <TARGETNAME> <SLOT> <NEW_ALIAS>",
			Reason: fmt.Sprintf("invalid slot %q", args[1]),
		}
	}

	session, err := openSession(ctx, env, args[0])
	if err != nil {
		return err
	}
	defer closeHandle("session", session)

	filter := syscfg.NewFilter(syscfg.MatchValuesAll).
		Set(syscfg.PropSlotNumber, slot).
		Set(syscfg.PropBusType, syscfg.BusCompactRIO)
	res, err := firstResource(ctx, session, filter, "set alias", fmt.Sprintf("module in slot %d", slot))
	if err != nil {
		return err
	}
	defer closeHandle("resource", res)

	alias := args[2]
	result, err := res.Rename(ctx, alias, syscfg.RenameOptions{Overwrite: true})
	if err != nil {
		return err
	}
	if result.Overwritten != "" {
		logging.Info("Alias %s was moved from %s", alias, result.Overwritten)
	}

	env.Printf("Alias Of Slot %d Set To %s\n", slot, alias)
	return nil
}

// firmwareFlags registers the updatefirmware flags.
func firmwareFlags(fs *pflag.FlagSet) {
	fs.Bool("no-wait", false, "Return once the firmware is accepted instead of waiting for the update to finish")
}

// HandleUpdateFirmware uploads firmware to the controller and, unless
// --no-wait is given, waits for the update to finish.
func HandleUpdateFirmware(ctx context.Context, env *commands.Env, args []string) error {
	noWait, err := env.Flags.GetBool("no-wait")
	if err != nil {
		return err
	}

	session, err := openSession(ctx, env, args[0])
	if err != nil {
		return err
	}
	defer closeHandle("session", session)

	filter := syscfg.NewFilter(syscfg.MatchValuesAll).
		Set(syscfg.PropSupportsFirmwareUpdate, true).
		Set(syscfg.PropResourceName, syscfg.SystemResourceName)
	res, err := firstResource(ctx, session, filter, "update firmware", "firmware-capable system resource")
	if err != nil {
		return err
	}
	defer closeHandle("resource", res)

	env.Printf("Updating Firmware...\nTarget: %s\nFirmware: %s\n", args[0], args[1])
	progress, err := res.UpgradeFirmware(ctx, args[1], syscfg.FirmwareOptions{
		Wait: !noWait,
		OnProgress: func(p syscfg.FirmwareProgress) {
			if env.Verbose {
				env.Printf("  %3d%% %s\n", p.Percent, p.Detail)
			}
		},
	})
	if progress.State == "" {
		return err
	}

	if env.JSON {
		if jsonErr := display.JSON(env.Out, progress); jsonErr != nil {
			return jsonErr
		}
		return err
	}
	env.Printf("Firmware Status: %s\nDetailed Results: %s\n", progress.State, progress.Detail)
	if err == nil {
		reportSave(env, syscfg.SaveResult{RestartRequired: progress.RestartRequired})
	}
	return err
}
