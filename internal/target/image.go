package target

import (
	"fmt"
	"strings"
	"time"

	"github.com/concave-dev/rtconfig/internal/logging"
	"github.com/concave-dev/rtconfig/internal/syscfg"
	"gopkg.in/yaml.v3"
)

// ImageFormatVersion is written to every manifest. Images with a newer
// version are rejected.
const ImageFormatVersion = 1

// Paths inside an image archive.
const (
	ManifestName = "image.yaml"
	FilesPrefix  = "files/"
)

// NetworkSettings are the primary interface settings carried in an image.
type NetworkSettings struct {
	IPAddress  string `yaml:"ipAddress,omitempty"`
	IPMode     string `yaml:"ipMode"`
	SubnetMask string `yaml:"subnetMask,omitempty"`
}

// ModuleSettings are the per-slot settings carried in an image.
type ModuleSettings struct {
	Slot  int                `yaml:"slot"`
	Mode  syscfg.ProgramMode `yaml:"mode,omitempty"`
	Alias string             `yaml:"alias,omitempty"`
}

// Manifest describes a captured image.
type Manifest struct {
	FormatVersion   int              `yaml:"formatVersion"`
	Model           string           `yaml:"model"`
	FirmwareVersion string           `yaml:"firmwareVersion"`
	CapturedAt      time.Time        `yaml:"capturedAt"`
	Hostname        string           `yaml:"hostname"`
	Comment         string           `yaml:"comment,omitempty"`
	Network         NetworkSettings  `yaml:"network"`
	Modules         []ModuleSettings `yaml:"modules,omitempty"`
}

// CaptureImage returns the image archive contents: the manifest plus every
// configuration file under files/.
func (d *Device) CaptureImage() (map[string][]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireIdleLocked("get image"); err != nil {
		return nil, err
	}

	p := d.profile
	manifest := Manifest{
		FormatVersion:   ImageFormatVersion,
		Model:           p.Model,
		FirmwareVersion: p.FirmwareVersion,
		CapturedAt:      d.opts.Now().UTC(),
		Hostname:        p.Hostname,
		Comment:         p.Comment,
		Network: NetworkSettings{
			IPAddress:  p.IPAddress,
			IPMode:     p.IPMode,
			SubnetMask: p.SubnetMask,
		},
	}
	for _, m := range p.Modules {
		if m.Product == "" {
			continue
		}
		manifest.Modules = append(manifest.Modules, ModuleSettings{Slot: m.Slot, Mode: m.Mode, Alias: m.Alias})
	}

	data, err := yaml.Marshal(&manifest)
	if err != nil {
		return nil, syscfg.Errorf(syscfg.StatusServiceError, "get image", "encode manifest: %v", err)
	}

	files := map[string][]byte{ManifestName: data}
	for name, content := range p.Files {
		files[FilesPrefix+name] = []byte(content)
	}
	return files, nil
}

// ApplyImage replaces the target's configuration with an image. The image
// must come from the same model. Model, serial number and firmware version
// are never changed. Unless resetNetwork is set the primary network settings
// are kept; otherwise the image's settings are applied too.
func (d *Device) ApplyImage(files map[string][]byte, resetNetwork bool) (syscfg.SaveResult, error) {
	const op = "set image"
	var result syscfg.SaveResult

	raw, ok := files[ManifestName]
	if !ok {
		return result, syscfg.Errorf(syscfg.StatusImageIncompatible, op, "image has no %s", ManifestName)
	}
	var manifest Manifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return result, syscfg.Errorf(syscfg.StatusImageIncompatible, op, "invalid manifest: %v", err)
	}
	if manifest.FormatVersion < 1 || manifest.FormatVersion > ImageFormatVersion {
		return result, syscfg.Errorf(syscfg.StatusImageIncompatible, op, "unsupported image format %d", manifest.FormatVersion)
	}

	configFiles := make(map[string]string)
	for name, content := range files {
		if rel, ok := strings.CutPrefix(name, FilesPrefix); ok && rel != "" {
			configFiles[rel] = string(content)
		}
	}

	err := d.update(func(p *Profile) (bool, error) {
		if err := d.requireIdleLocked(op); err != nil {
			return false, err
		}
		if manifest.Model != p.Model {
			return false, syscfg.Errorf(syscfg.StatusImageIncompatible, op,
				"image was captured from a %s, target is a %s", manifest.Model, p.Model)
		}

		p.Files = configFiles
		p.Comment = manifest.Comment
		for _, settings := range manifest.Modules {
			for i := range p.Modules {
				if p.Modules[i].Slot != settings.Slot || p.Modules[i].Product == "" {
					continue
				}
				if settings.Mode.Valid() {
					p.Modules[i].Mode = settings.Mode
				}
				p.Modules[i].Alias = settings.Alias
			}
		}

		if resetNetwork {
			if manifest.Hostname != "" {
				p.Hostname = manifest.Hostname
			}
			if manifest.Network.IPMode != "" {
				p.IPMode = manifest.Network.IPMode
			}
			if manifest.Network.IPAddress != "" {
				p.IPAddress = manifest.Network.IPAddress
			}
			if manifest.Network.SubnetMask != "" {
				p.SubnetMask = manifest.Network.SubnetMask
			}
		}
		result.RestartRequired = true
		return true, nil
	})
	if err == nil {
		network := "preserved"
		if resetNetwork {
			network = "reset"
		}
		logging.Info("Applied %s (network %s)", manifest, network)
	}
	return result, err
}

func (m Manifest) String() string {
	return fmt.Sprintf("%s image (firmware %s) captured %s from %s",
		m.Model, m.FirmwareVersion, m.CapturedAt.Format(time.RFC3339), m.Hostname)
}
