package syscfg

import (
	"context"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

// clientResource is a Resource reached through a session.
type clientResource struct {
	session *clientSession
	info    ResourceInfo
	pending map[Property]string
}

func (r *clientResource) Info() ResourceInfo {
	return r.info
}

func (r *clientResource) url(suffix string) string {
	return apiURL(r.session.addr, "/hardware/"+r.info.ID+suffix)
}

func (r *clientResource) SetProperty(p Property, value string) error {
	if !WritableResourceProperties[p] {
		return Errorf(StatusReadOnly, "set property", "%s cannot be set on %s", p, r.info.ResourceName)
	}
	r.pending[p] = value
	return nil
}

func (r *clientResource) SaveChanges(ctx context.Context) (SaveResult, error) {
	if err := r.session.check("save resource changes"); err != nil {
		return SaveResult{}, err
	}
	if len(r.pending) == 0 {
		return SaveResult{}, nil
	}

	var out Response[SaveResult]
	req := r.session.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(ResourcePatchRequest{Properties: r.pending}).
		SetResult(&out)
	if _, err := r.session.client.execute("save resource changes", req, resty.MethodPatch, r.url("")); err != nil {
		return SaveResult{}, err
	}
	if mode, ok := r.pending[PropProgramMode]; ok {
		r.info.ProgramMode = ProgramMode(mode)
	}
	r.pending = make(map[Property]string)
	return out.Data, nil
}

func (r *clientResource) SelfTest(ctx context.Context) error {
	if err := r.session.check("self test"); err != nil {
		return err
	}
	req := r.session.request(ctx)
	_, err := r.session.client.execute("self test", req, resty.MethodPost, r.url("/selftest"))
	return err
}

func (r *clientResource) Rename(ctx context.Context, name string, opts RenameOptions) (RenameResult, error) {
	if err := r.session.check("rename"); err != nil {
		return RenameResult{}, err
	}
	var out Response[RenameResult]
	req := r.session.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(RenameRequest{Name: name, Overwrite: opts.Overwrite}).
		SetResult(&out)
	if _, err := r.session.client.execute("rename", req, resty.MethodPost, r.url("/rename")); err != nil {
		return RenameResult{}, err
	}
	r.info.Alias = name
	return out.Data, nil
}

// UpgradeFirmware uploads the file and, with opts.Wait, polls the update
// once per FirmwarePollInterval until it finishes. A failed update returns
// the final progress together with its status.
func (r *clientResource) UpgradeFirmware(ctx context.Context, path string, opts FirmwareOptions) (FirmwareProgress, error) {
	if err := r.session.check("upgrade firmware"); err != nil {
		return FirmwareProgress{}, err
	}
	if !r.info.SupportsFirmwareUpdate {
		return FirmwareProgress{}, Errorf(StatusNotImplemented, "upgrade firmware", "%s does not support firmware updates", r.info.ResourceName)
	}
	if _, err := os.Stat(path); err != nil {
		return FirmwareProgress{}, Errorf(StatusFileNotFound, "upgrade firmware", "%v", err)
	}

	var out Response[FirmwareProgress]
	req := r.session.request(ctx).
		SetFile("firmware", path).
		SetResult(&out)
	if _, err := r.session.client.execute("upgrade firmware", req, resty.MethodPost, r.url("/firmware")); err != nil {
		return FirmwareProgress{}, err
	}

	progress := out.Data
	if opts.OnProgress != nil {
		opts.OnProgress(progress)
	}
	if !opts.Wait {
		return progress, nil
	}

	ticker := time.NewTicker(r.session.client.opts.FirmwarePollInterval)
	defer ticker.Stop()

	last := progress
	for !progress.State.Terminal() {
		select {
		case <-ctx.Done():
			return progress, ctx.Err()
		case <-ticker.C:
		}

		next, err := r.FirmwareStatus(ctx)
		if err != nil {
			return progress, err
		}
		progress = next
		if opts.OnProgress != nil && progress != last {
			opts.OnProgress(progress)
		}
		last = progress
	}

	if progress.State == FirmwareFailed {
		code := progress.Code
		if code == StatusOK {
			code = StatusFirmwareInvalid
		}
		return progress, Errorf(code, "upgrade firmware", "%s", progress.Detail)
	}
	r.info.FirmwareVersion = progress.Version
	return progress, nil
}

func (r *clientResource) FirmwareStatus(ctx context.Context) (FirmwareProgress, error) {
	if err := r.session.check("firmware status"); err != nil {
		return FirmwareProgress{}, err
	}
	var out Response[FirmwareProgress]
	req := r.session.request(ctx).SetResult(&out)
	if _, err := r.session.client.execute("firmware status", req, resty.MethodGet, r.url("/firmware")); err != nil {
		return FirmwareProgress{}, err
	}
	return out.Data, nil
}

// Close releases the handle. Staged changes that were never saved are
// discarded.
func (r *clientResource) Close() error {
	r.pending = make(map[Property]string)
	return nil
}
