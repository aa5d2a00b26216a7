// Package gpu implements the GPU-instanced particle renderer on the
// wgpu HAL: one fixed-stride instance record per particle, one instanced
// draw of a textured quad per frame, sampling the glyph atlas texture.
package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Device owns (or borrows) a HAL device and queue.
//
// With no provider it opens its own Vulkan instance and picks a
// discrete or integrated adapter. With a provider (an embedding
// application sharing its GPU) it borrows the device and never
// destroys it.
type Device struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	adapterName string
	external    bool // true when using a shared device we don't own
}

// NewDevice opens a GPU device. provider, when non-nil, must expose
// HalDevice() any and HalQueue() any returning hal.Device and hal.Queue
// (the gpucontext.DeviceProvider contract).
func NewDevice(provider any) (*Device, error) {
	if provider != nil {
		return sharedDevice(provider)
	}
	return ownDevice()
}

func sharedDevice(provider any) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("gpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("gpu: provider HalQueue is not hal.Queue")
	}
	slogger().Info("using shared GPU device")
	return &Device{device: device, queue: queue, external: true, adapterName: "shared"}, nil
}

func ownDevice() (*Device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("gpu: vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("gpu: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: no adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: open device: %w", err)
	}

	slogger().Info("GPU device opened", "adapter", selected.Info.Name)
	return &Device{
		instance:    instance,
		device:      openDev.Device,
		queue:       openDev.Queue,
		adapterName: selected.Info.Name,
	}, nil
}

// AdapterName returns the name of the selected adapter.
func (d *Device) AdapterName() string { return d.adapterName }

// Close releases the device and instance. Borrowed devices are only
// detached, never destroyed.
func (d *Device) Close() {
	if d.external {
		d.device = nil
		d.queue = nil
		return
	}
	if d.device != nil {
		d.device.Destroy()
		d.device = nil
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
	d.queue = nil
}
