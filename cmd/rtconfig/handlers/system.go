package handlers

import (
	"context"
	"fmt"

	"github.com/concave-dev/rtconfig/cmd/rtconfig/commands"
	"github.com/concave-dev/rtconfig/cmd/rtconfig/display"
	"github.com/concave-dev/rtconfig/internal/logging"
	"github.com/concave-dev/rtconfig/internal/syscfg"
)

// HandleFind lists every reachable discovered target, or shows the one
// named target.
func HandleFind(ctx context.Context, env *commands.Env, args []string) error {
	if len(args) == 1 {
		info, err := systemInfo(ctx, env, args[0])
		if err != nil {
			env.Printf("Target Not Found\n")
			return err
		}
		return display.Systems(env.Out, []syscfg.SystemInfo{info}, env.JSON, env.Verbose)
	}

	env.Printf("Finding Available Targets...\n")
	if !env.JSON {
		display.SystemsHeader(env.Out)
	}

	var found []syscfg.SystemInfo
	err := eachSystem(ctx, env, syscfg.NameHostname, func(name string) (bool, error) {
		info, err := systemInfo(ctx, env, name)
		if err != nil {
			if ctx.Err() != nil {
				return true, ctx.Err()
			}
			logging.Warn("Skipping unreachable target %s: %v", name, err)
			return false, nil
		}
		if env.JSON {
			found = append(found, info)
		} else {
			display.SystemRow(env.Out, info, env.Verbose)
		}
		return false, nil
	})
	if err != nil {
		return err
	}

	if env.JSON {
		return display.Systems(env.Out, found, true, false)
	}
	return nil
}

// HandleFindSerial prints the IP address of the first discovered target
// whose serial number matches exactly.
func HandleFindSerial(ctx context.Context, env *commands.Env, args []string) error {
	serial := args[0]

	var match string
	err := eachSystem(ctx, env, syscfg.NameIPAddress, func(name string) (bool, error) {
		info, err := systemInfo(ctx, env, name)
		if err != nil {
			if ctx.Err() != nil {
				return true, ctx.Err()
			}
			logging.Warn("Skipping unreachable target %s: %v", name, err)
			return false, nil
		}
		if info.SerialNumber != serial {
			return false, nil
		}
		match = name
		return true, nil
	})
	if err != nil {
		return err
	}

	if match == "" {
		fmt.Fprintf(env.Out, "Target With SN %s Not Found\n", serial)
		return syscfg.Errorf(syscfg.StatusSystemNotFound, "find serial number", "no target with serial number %s", serial)
	}

	if env.JSON {
		return display.JSON(env.Out, map[string]string{"serialNumber": serial, "ipAddress": match})
	}
	fmt.Fprintln(env.Out, match)
	return nil
}

// settingsChange is the JSON form of a saved system setting.
type settingsChange struct {
	Property        syscfg.SystemProperty `json:"property"`
	Previous        string                `json:"previous"`
	Value           string                `json:"value"`
	RestartRequired bool                  `json:"restartRequired"`
}

// HandleSetHostname stages and saves a new hostname.
func HandleSetHostname(ctx context.Context, env *commands.Env, args []string) error {
	session, err := openSession(ctx, env, args[0])
	if err != nil {
		return err
	}
	defer closeHandle("session", session)

	info, err := session.SystemInfo(ctx)
	if err != nil {
		return err
	}

	hostname := args[1]
	if err := session.SetSystemProperty(syscfg.SysHostname, hostname); err != nil {
		return err
	}
	result, err := session.SaveChanges(ctx)
	if err != nil {
		return err
	}

	if env.JSON {
		return display.JSON(env.Out, settingsChange{syscfg.SysHostname, info.Hostname, hostname, result.RestartRequired})
	}
	env.Printf("Hostname Updated: %s -> %s\n", info.Hostname, hostname)
	reportSave(env, result)
	return nil
}

// HandleSetIP switches the target to a static IP address, with an optional
// subnet mask. All settings are saved together or not at all.
func HandleSetIP(ctx context.Context, env *commands.Env, args []string) error {
	session, err := openSession(ctx, env, args[0])
	if err != nil {
		return err
	}
	defer closeHandle("session", session)

	info, err := session.SystemInfo(ctx)
	if err != nil {
		return err
	}

	ip := args[1]
	if err := session.SetSystemProperty(syscfg.SysIPAddress, ip); err != nil {
		return err
	}
	if err := session.SetSystemProperty(syscfg.SysIPMode, syscfg.IPModeStatic); err != nil {
		return err
	}
	if len(args) == 3 {
		if err := session.SetSystemProperty(syscfg.SysSubnetMask, args[2]); err != nil {
			return err
		}
	}
	result, err := session.SaveChanges(ctx)
	if err != nil {
		return err
	}

	if env.JSON {
		return display.JSON(env.Out, settingsChange{syscfg.SysIPAddress, info.IPAddress, ip, result.RestartRequired})
	}
	env.Printf("IP Address Updated: %s -> %s\n", info.IPAddress, ip)
	if len(args) == 3 {
		env.Printf("Subnet Mask Updated: %s -> %s\n", info.SubnetMask, args[2])
	}
	reportSave(env, result)
	return nil
}

// HandleRestart restarts the target and waits until it answers again.
func HandleRestart(ctx context.Context, env *commands.Env, args []string) error {
	session, err := openSession(ctx, env, args[0])
	if err != nil {
		return err
	}
	defer closeHandle("session", session)

	env.Printf("Restarting...\n")
	result, err := session.Restart(ctx)
	if err != nil {
		return err
	}

	if env.JSON {
		return display.JSON(env.Out, map[string]string{"ipAddress": result.IPAddress})
	}
	env.Printf("Restarted With IP Address: %s\n", result.IPAddress)
	return nil
}

// HandleFormat erases the target's configuration. There is no
// confirmation prompt.
func HandleFormat(ctx context.Context, env *commands.Env, args []string) error {
	session, err := openSession(ctx, env, args[0])
	if err != nil {
		return err
	}
	defer closeHandle("session", session)

	env.Printf("Formatting...\n")
	if err := session.Format(ctx); err != nil {
		return err
	}
	env.Printf("Format Complete\n")
	return nil
}
