package gpu

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"tilerender/internal/texture"
)

// HAL uploads textures through a gogpu/wgpu HAL device. Each texture gets a
// view; samplers are shared per filter and always clamp to the edge.
//
// HAL is safe for concurrent lookups (View, Sampler) while the graphics
// goroutine creates and destroys textures.
type HAL struct {
	mu     sync.RWMutex
	device hal.Device
	queue  hal.Queue
	maxDim int

	// set by OpenHAL, released by Close
	instance hal.Instance
	adapter  hal.Adapter

	nextID   atomic.Uint64
	textures map[texture.TextureID]*halTexture
	samplers [2]hal.Sampler
}

type halTexture struct {
	tex    hal.Texture
	view   hal.TextureView
	filter texture.Filter
}

// NewHAL wraps device and queue. maxDimension <= 0 means
// DefaultMaxDimension.
func NewHAL(device hal.Device, queue hal.Queue, maxDimension int) *HAL {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	return &HAL{
		device:   device,
		queue:    queue,
		maxDim:   maxDimension,
		textures: make(map[texture.TextureID]*halTexture),
	}
}

// OpenHAL opens the first adapter backend offers and wraps its device. The
// returned HAL owns the device and destroys it on Close.
func OpenHAL(backend hal.Backend, maxDimension int) (*HAL, error) {
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Backends: gputypes.BackendsPrimary})
	if err != nil {
		return nil, fmt.Errorf("gpu: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("gpu: no adapter")
	}
	a := adapters[0]
	open, err := a.Adapter.Open(0, a.Capabilities.Limits)
	if err != nil {
		a.Adapter.Destroy()
		instance.Destroy()
		return nil, fmt.Errorf("gpu: open %s: %w", a.Info.Name, err)
	}

	d := NewHAL(open.Device, open.Queue, maxDimension)
	d.instance = instance
	d.adapter = a.Adapter
	return d, nil
}

// CreateTexture creates an RGBA8 texture and writes pix into it.
func (d *HAL) CreateTexture(desc texture.TextureDesc, pix []byte) (texture.TextureID, error) {
	if err := checkDesc(desc, pix, d.maxDim); err != nil {
		return 0, err
	}
	w, h := uint32(desc.Width), uint32(desc.Height) //nolint:gosec // bounded by maxDim

	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return 0, fmt.Errorf("gpu: create texture %s: %w", desc.Label, err)
	}

	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         desc.Label + "_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return 0, fmt.Errorf("gpu: create texture view %s: %w", desc.Label, err)
	}

	err = d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
		pix,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: w * 4, RowsPerImage: h},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	if err != nil {
		d.device.DestroyTextureView(view)
		d.device.DestroyTexture(tex)
		return 0, fmt.Errorf("gpu: write texture %s: %w", desc.Label, err)
	}

	id := texture.TextureID(d.nextID.Add(1))
	d.mu.Lock()
	d.textures[id] = &halTexture{tex: tex, view: view, filter: desc.Filter}
	d.mu.Unlock()
	return id, nil
}

// DestroyTexture releases id. Unknown IDs are ignored.
func (d *HAL) DestroyTexture(id texture.TextureID) {
	d.mu.Lock()
	t, ok := d.textures[id]
	delete(d.textures, id)
	d.mu.Unlock()

	if ok {
		d.device.DestroyTextureView(t.view)
		d.device.DestroyTexture(t.tex)
	}
}

// TextureValid reports whether id is live.
func (d *HAL) TextureValid(id texture.TextureID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.textures[id]
	return ok
}

// View returns the view and sampler to bind for id.
func (d *HAL) View(id texture.TextureID) (hal.TextureView, hal.Sampler, error) {
	d.mu.RLock()
	t, ok := d.textures[id]
	d.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("gpu: texture %d not live", id)
	}
	s, err := d.sampler(t.filter)
	if err != nil {
		return nil, nil, err
	}
	return t.view, s, nil
}

func (d *HAL) sampler(f texture.Filter) (hal.Sampler, error) {
	d.mu.RLock()
	s := d.samplers[f]
	d.mu.RUnlock()
	if s != nil {
		return s, nil
	}

	mode := gputypes.FilterModeNearest
	if f == texture.FilterLinear {
		mode = gputypes.FilterModeLinear
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if s := d.samplers[f]; s != nil {
		return s, nil
	}
	s, err := d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "tile_sampler_" + f.String(),
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    mode,
		MinFilter:    mode,
		MipmapFilter: mode,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create sampler: %w", err)
	}
	d.samplers[f] = s
	return s, nil
}

// Live returns the number of textures held.
func (d *HAL) Live() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.textures)
}

// Close destroys every texture and sampler still held, and the device when
// it was opened by OpenHAL.
func (d *HAL) Close() {
	d.mu.Lock()
	textures := d.textures
	d.textures = make(map[texture.TextureID]*halTexture)
	samplers := d.samplers
	d.samplers = [2]hal.Sampler{}
	d.mu.Unlock()

	for _, t := range textures {
		d.device.DestroyTextureView(t.view)
		d.device.DestroyTexture(t.tex)
	}
	for _, s := range samplers {
		if s != nil {
			d.device.DestroySampler(s)
		}
	}

	if d.instance != nil {
		_ = d.device.WaitIdle()
		d.device.Destroy()
		d.adapter.Destroy()
		d.instance.Destroy()
		d.instance, d.adapter = nil, nil
	}
}
