package handlers

import (
	"context"
	"path/filepath"

	"github.com/concave-dev/rtconfig/cmd/rtconfig/commands"
	"github.com/concave-dev/rtconfig/cmd/rtconfig/display"
	"github.com/concave-dev/rtconfig/internal/syscfg"
)

// imageSaved is the JSON form of getimage output.
type imageSaved struct {
	Target string `json:"target"`
	Path   string `json:"path"`
	Bytes  int64  `json:"bytes"`
}

// HandleGetImage saves the target's image into a folder named after its
// hostname in the working directory.
func HandleGetImage(ctx context.Context, env *commands.Env, args []string) error {
	session, err := openSession(ctx, env, args[0])
	if err != nil {
		return err
	}
	defer closeHandle("session", session)

	info, err := session.SystemInfo(ctx)
	if err != nil {
		return err
	}
	cwd, err := env.Getwd()
	if err != nil {
		return err
	}
	destination := filepath.Join(cwd, info.Hostname)

	env.Printf("Getting Image: %s\nSaving To: \"%s\"\n", args[0], destination)
	image, err := session.GetImage(ctx, destination)
	if err != nil {
		return err
	}

	if env.JSON {
		return display.JSON(env.Out, imageSaved{Target: args[0], Path: destination, Bytes: image.Bytes})
	}
	if env.Verbose {
		env.Printf("Image Size: %s\n", display.Bytes(image.Bytes))
	}
	return nil
}

// HandleSetImage applies an image folder. The target keeps its primary
// network settings; model and serial number never change.
func HandleSetImage(ctx context.Context, env *commands.Env, args []string) error {
	session, err := openSession(ctx, env, args[0])
	if err != nil {
		return err
	}
	defer closeHandle("session", session)

	path := args[1]
	env.Printf("Imaging Target: %s\nImage Used: %s\n", args[0], path)
	return session.SetImage(ctx, path, syscfg.ImageOptions{ResetNetwork: false})
}
