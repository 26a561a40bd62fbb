package target

import (
	"context"
	"fmt"
	"strings"

	"github.com/concave-dev/rtconfig/internal/resources"
	"github.com/concave-dev/rtconfig/internal/syscfg"
	"github.com/concave-dev/rtconfig/internal/validate"
	"github.com/samber/lo"
)

// SystemResourceID is the resource id of the controller itself.
const SystemResourceID = "system"

func moduleID(slot int) string {
	return fmt.Sprintf("mod%d", slot)
}

func portID(name string) string {
	id := strings.ToLower(name)
	if i := strings.Index(id, "::"); i >= 0 {
		id = id[:i]
	}
	return id
}

// Hardware returns the resources matching f, system first, then modules by
// slot, then ports.
func (d *Device) Hardware(f *syscfg.Filter) ([]syscfg.ResourceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.requireRunningLocked("find hardware"); err != nil {
		return nil, err
	}
	d.advanceFirmwareLocked()
	return lo.Filter(d.resourcesLocked(), func(r syscfg.ResourceInfo, _ int) bool {
		return f.Matches(r)
	}), nil
}

// Resource returns one resource by id.
func (d *Device) Resource(id string) (syscfg.ResourceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.advanceFirmwareLocked()
	r, ok := lo.Find(d.resourcesLocked(), func(r syscfg.ResourceInfo) bool { return r.ID == id })
	if !ok {
		return syscfg.ResourceInfo{}, syscfg.Errorf(syscfg.StatusResourceNotFound, "get resource", "no resource %q", id)
	}
	return r, nil
}

func (d *Device) resourcesLocked() []syscfg.ResourceInfo {
	p := d.profile
	zero := 0
	out := []syscfg.ResourceInfo{{
		ID:                     SystemResourceID,
		ResourceName:           syscfg.SystemResourceName,
		ProductName:            p.Model,
		SerialNumber:           p.Serial,
		SlotNumber:             &zero,
		BusType:                syscfg.BusNone,
		SupportsFirmwareUpdate: true,
		SupportsSelfTest:       true,
		FirmwareVersion:        p.FirmwareVersion,
	}}

	for _, m := range p.Modules {
		slot := m.Slot
		r := syscfg.ResourceInfo{
			ID:           moduleID(slot),
			ResourceName: fmt.Sprintf("Mod%d", slot),
			Alias:        m.Alias,
			ProductName:  m.Product,
			SerialNumber: m.Serial,
			SlotNumber:   &slot,
			BusType:      syscfg.BusCompactRIO,
		}
		if m.Product == "" {
			r.ProductName = "Empty Slot"
		} else {
			r.ProgramMode = m.Mode
			r.SupportsSelfTest = m.SelfTest != SelfTestUnsupported
		}
		out = append(out, r)
	}

	for _, port := range p.Ports {
		out = append(out, syscfg.ResourceInfo{
			ID:           portID(port.Name),
			ResourceName: port.Name,
			Alias:        port.Alias,
			ProductName:  port.Product,
			BusType:      syscfg.BusSerial,
		})
	}
	return out
}

// SetResourceProperties validates and applies staged resource properties.
// Only C Series modules accept a program mode.
func (d *Device) SetResourceProperties(id string, props map[syscfg.Property]string) (syscfg.SaveResult, error) {
	const op = "save resource changes"
	var result syscfg.SaveResult

	err := d.update(func(p *Profile) (bool, error) {
		if err := d.requireIdleLocked(op); err != nil {
			return false, err
		}
		if _, ok := lo.Find(d.resourcesLocked(), func(r syscfg.ResourceInfo) bool { return r.ID == id }); !ok {
			return false, syscfg.Errorf(syscfg.StatusResourceNotFound, op, "no resource %q", id)
		}

		idx, isModule := d.moduleIndexLocked(id)
		var mode syscfg.ProgramMode
		for prop, value := range props {
			if !syscfg.WritableResourceProperties[prop] {
				return false, syscfg.Errorf(syscfg.StatusReadOnly, op, "%s cannot be set", prop)
			}
			if !isModule || p.Modules[idx].Product == "" {
				return false, syscfg.Errorf(syscfg.StatusNotImplemented, op, "%s has no program mode", id)
			}
			m, err := syscfg.ParseProgramMode(value)
			if err != nil {
				return false, syscfg.Errorf(syscfg.StatusInvalidArg, op, "%v", err)
			}
			mode = m
		}

		if mode == "" || p.Modules[idx].Mode == mode {
			return false, nil
		}
		p.Modules[idx].Mode = mode
		result.RestartRequired = true
		return true, nil
	})
	return result, err
}

func (d *Device) moduleIndexLocked(id string) (int, bool) {
	_, idx, ok := lo.FindIndexOf(d.profile.Modules, func(m ModuleProfile) bool {
		return moduleID(m.Slot) == id
	})
	return idx, ok
}

// Rename sets a resource's alias. When another resource already uses the
// alias the rename fails with NameCollision unless overwrite is set, in
// which case the other resource loses its alias.
func (d *Device) Rename(id, alias string, overwrite bool) (syscfg.RenameResult, error) {
	const op = "rename"
	var result syscfg.RenameResult

	if err := validate.Alias(alias); err != nil {
		return result, syscfg.Errorf(syscfg.StatusInvalidArg, op, "%v", err)
	}

	err := d.update(func(p *Profile) (bool, error) {
		if err := d.requireRunningLocked(op); err != nil {
			return false, err
		}
		all := d.resourcesLocked()
		self, ok := lo.Find(all, func(r syscfg.ResourceInfo) bool { return r.ID == id })
		if !ok {
			return false, syscfg.Errorf(syscfg.StatusResourceNotFound, op, "no resource %q", id)
		}
		if id == SystemResourceID {
			return false, syscfg.Errorf(syscfg.StatusNotImplemented, op, "the system resource cannot be renamed; set its hostname instead")
		}
		if self.Alias == alias {
			return false, nil
		}

		other, taken := lo.Find(all, func(r syscfg.ResourceInfo) bool {
			return r.ID != id && (r.Alias == alias || r.ResourceName == alias)
		})
		if taken {
			result.NameExisted = true
			if !overwrite || other.ResourceName == alias {
				return false, syscfg.Errorf(syscfg.StatusNameCollision, op, "%q is used by %s", alias, other.ResourceName)
			}
			d.setAliasLocked(other.ID, "")
			result.Overwritten = other.ResourceName
		}
		d.setAliasLocked(id, alias)
		return true, nil
	})
	return result, err
}

func (d *Device) setAliasLocked(id, alias string) {
	if idx, ok := d.moduleIndexLocked(id); ok {
		d.profile.Modules[idx].Alias = alias
		return
	}
	for i := range d.profile.Ports {
		if portID(d.profile.Ports[i].Name) == id {
			d.profile.Ports[i].Alias = alias
		}
	}
}

// SelfTest runs the resource's self-test. The system resource checks the
// host; modules report the outcome configured in the profile.
func (d *Device) SelfTest(ctx context.Context, id string) error {
	const op = "self test"

	d.mu.RLock()
	if err := d.requireRunningLocked(op); err != nil {
		d.mu.RUnlock()
		return err
	}
	var outcome string
	found := id == SystemResourceID
	supported := found
	if idx, ok := d.moduleIndexLocked(id); ok {
		found = true
		m := d.profile.Modules[idx]
		supported = m.Product != ""
		outcome = m.SelfTest
	}
	if !found {
		_, found = lo.Find(d.profile.Ports, func(port PortProfile) bool { return portID(port.Name) == id })
	}
	d.mu.RUnlock()

	switch {
	case !found:
		return syscfg.Errorf(syscfg.StatusResourceNotFound, op, "no resource %q", id)
	case !supported:
		return syscfg.Errorf(syscfg.StatusNotImplemented, op, "%s has no self-test", id)
	case id == SystemResourceID:
		if err := d.hostCheck(ctx); err != nil {
			return syscfg.Errorf(syscfg.StatusSelfTestFailed, op, "%v", err)
		}
		return nil
	}

	switch outcome {
	case SelfTestUnsupported:
		return syscfg.Errorf(syscfg.StatusNotImplemented, op, "%s has no self-test", id)
	case SelfTestFail:
		return syscfg.Errorf(syscfg.StatusSelfTestFailed, op, "%s reported a hardware fault", id)
	}
	return nil
}

func (d *Device) hostCheck(ctx context.Context) error {
	if d.opts.HostCheck != nil {
		return d.opts.HostCheck(ctx)
	}
	return resources.Check(resources.GatherHostFacts(ctx, d.opts.DataDir))
}
