package gpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/snowfield/internal/pix"
)

// InstanceStride is the byte size of one packed particle instance
// record: 16 float32 fields, matching the vertex attributes declared in
// particleVertexLayout and consumed by shaders/particle.wgsl.
const InstanceStride = 64

const (
	uniformSize = 32
	// Buffer-to-texture copies require 256-byte row alignment.
	rowAlignment = 256
)

// Uniforms is the per-frame uniform block. Layout matches the Uniforms
// struct in particle.wgsl (32 bytes with padding).
type Uniforms struct {
	ViewportW   float32
	ViewportH   float32
	Time        float32
	BgLuminance float32
	GlyphCount  float32
}

func packUniforms(u Uniforms) []byte {
	buf := make([]byte, uniformSize)
	put := func(off int, v float32) {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
	}
	put(0, u.ViewportW)
	put(4, u.ViewportH)
	put(8, u.Time)
	put(12, u.BgLuminance)
	put(16, u.GlyphCount)
	return buf
}

// Renderer draws all particles in one instanced indexed draw of a unit
// quad and reads the frame back into a pixmap. The render target is an
// offscreen single-sample BGRA8 texture.
type Renderer struct {
	dev *Device

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline

	sampler   hal.Sampler
	atlasTex  hal.Texture
	atlasView hal.TextureView

	quadVB hal.Buffer
	quadIB hal.Buffer

	uniformBuf  hal.Buffer
	uvRectBuf   hal.Buffer
	uvRectSize  uint64
	instanceBuf hal.Buffer
	instanceCap int

	bindGroup hal.BindGroup

	targetTex  hal.Texture
	targetView hal.TextureView
	stagingBuf hal.Buffer
	readback   []byte
	width      uint32
	height     uint32
}

// NewRenderer builds the particle pipeline on dev for a width x height
// target. The atlas must be uploaded with UploadAtlas before Render.
func NewRenderer(dev *Device, width, height int) (*Renderer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("gpu: invalid target size %dx%d", width, height)
	}
	r := &Renderer{dev: dev}

	shader, err := createParticleShader(dev.device)
	if err != nil {
		return nil, err
	}
	r.shader = shader

	if err := r.createPipeline(); err != nil {
		r.Destroy()
		return nil, err
	}
	if err := r.createStaticResources(); err != nil {
		r.Destroy()
		return nil, err
	}
	if err := r.createTarget(uint32(width), uint32(height)); err != nil {
		r.Destroy()
		return nil, err
	}

	slogger().Info("particle renderer ready", "width", width, "height", height)
	return r, nil
}

func (r *Renderer) createPipeline() error {
	bindLayout, err := r.dev.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "particle_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    3,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	r.bindLayout = bindLayout

	pipeLayout, err := r.dev.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "particle_pipeline_layout",
		BindGroupLayouts: []hal.BindGroupLayout{r.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	r.pipeLayout = pipeLayout

	premulBlend := gputypes.BlendStatePremultiplied()
	pipeline, err := r.dev.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "particle_pipeline",
		Layout: r.pipeLayout,
		Vertex: hal.VertexState{
			Module:     r.shader,
			EntryPoint: "vs_main",
			Buffers:    particleVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     r.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    gputypes.TextureFormatBGRA8Unorm,
					Blend:     &premulBlend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		return fmt.Errorf("create render pipeline: %w", err)
	}
	r.pipeline = pipeline
	return nil
}

// particleVertexLayout declares slot 0 as the shared unit quad and
// slot 1 as the per-instance record. Locations match particle.wgsl.
func particleVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: 8,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0}, // corner
			},
		},
		{
			ArrayStride: InstanceStride,
			StepMode:    gputypes.VertexStepModeInstance,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 1},  // position
				{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 2},  // size, fall speed
				{Format: gputypes.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 3}, // phase, freq, amplitude, rotation
				{Format: gputypes.VertexFormatFloat32x4, Offset: 32, ShaderLocation: 4}, // rotation speed, r, g, b
				{Format: gputypes.VertexFormatFloat32x2, Offset: 48, ShaderLocation: 5}, // cell index, monotone flag
			},
		},
	}
}

func (r *Renderer) createStaticResources() error {
	sampler, err := r.dev.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "particle_atlas_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		return fmt.Errorf("create sampler: %w", err)
	}
	r.sampler = sampler

	// Unit quad centered on the origin, expanded per instance in the
	// vertex stage.
	corners := []float32{
		-0.5, -0.5,
		0.5, -0.5,
		0.5, 0.5,
		-0.5, 0.5,
	}
	quadData := make([]byte, len(corners)*4)
	for i, v := range corners {
		binary.LittleEndian.PutUint32(quadData[i*4:], math.Float32bits(v))
	}
	quadVB, err := r.createAndUploadBuffer("particle_quad_verts", quadData,
		gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst)
	if err != nil {
		return fmt.Errorf("create quad vertex buffer: %w", err)
	}
	r.quadVB = quadVB

	indices := []uint16{0, 1, 2, 0, 2, 3}
	idxData := make([]byte, len(indices)*2)
	for i, v := range indices {
		binary.LittleEndian.PutUint16(idxData[i*2:], v)
	}
	quadIB, err := r.createAndUploadBuffer("particle_quad_indices", idxData,
		gputypes.BufferUsageIndex|gputypes.BufferUsageCopyDst)
	if err != nil {
		return fmt.Errorf("create quad index buffer: %w", err)
	}
	r.quadIB = quadIB

	uniformBuf, err := r.dev.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "particle_uniforms",
		Size:  uniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create uniform buffer: %w", err)
	}
	r.uniformBuf = uniformBuf
	return nil
}

func (r *Renderer) createAndUploadBuffer(label string, data []byte, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := r.dev.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage,
	})
	if err != nil {
		return nil, err
	}
	if err := r.dev.queue.WriteBuffer(buf, 0, data); err != nil {
		r.dev.device.DestroyBuffer(buf)
		return nil, err
	}
	return buf, nil
}

func (r *Renderer) createTarget(w, h uint32) error {
	targetTex, err := r.dev.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "particle_target",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("create target texture: %w", err)
	}
	targetView, err := r.dev.device.CreateTextureView(targetTex, &hal.TextureViewDescriptor{
		Label: "particle_target_view",
	})
	if err != nil {
		r.dev.device.DestroyTexture(targetTex)
		return fmt.Errorf("create target view: %w", err)
	}

	alignedBPR := alignedBytesPerRow(w)
	stagingBuf, err := r.dev.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "particle_readback",
		Size:  uint64(alignedBPR) * uint64(h),
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		r.dev.device.DestroyTextureView(targetView)
		r.dev.device.DestroyTexture(targetTex)
		return fmt.Errorf("create readback buffer: %w", err)
	}

	r.targetTex = targetTex
	r.targetView = targetView
	r.stagingBuf = stagingBuf
	r.readback = make([]byte, uint64(alignedBPR)*uint64(h))
	r.width = w
	r.height = h
	return nil
}

func alignedBytesPerRow(w uint32) uint32 {
	return (w*4 + rowAlignment - 1) &^ (rowAlignment - 1)
}

// Resize recreates the render target and readback buffer for a new
// viewport size.
func (r *Renderer) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("gpu: invalid target size %dx%d", width, height)
	}
	if uint32(width) == r.width && uint32(height) == r.height {
		return nil
	}
	r.destroyTarget()
	return r.createTarget(uint32(width), uint32(height))
}

// UploadAtlas uploads the glyph atlas pixels and per-cell UV rectangles
// and rebuilds the bind group around them. Safe to call again when the
// configuration changes.
func (r *Renderer) UploadAtlas(pm *pix.Pixmap, uvRects [][4]float32) error {
	if pm == nil || len(uvRects) == 0 {
		return fmt.Errorf("gpu: empty atlas")
	}
	r.destroyAtlas()

	w := uint32(pm.Width())
	h := uint32(pm.Height())
	atlasTex, err := r.dev.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "particle_atlas",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create atlas texture: %w", err)
	}
	r.atlasTex = atlasTex

	if err := r.dev.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: atlasTex, MipLevel: 0},
		pm.Data(),
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: w * 4, RowsPerImage: h},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	); err != nil {
		r.destroyAtlas()
		return fmt.Errorf("upload atlas pixels: %w", err)
	}

	atlasView, err := r.dev.device.CreateTextureView(atlasTex, &hal.TextureViewDescriptor{
		Label:         "particle_atlas_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		r.destroyAtlas()
		return fmt.Errorf("create atlas view: %w", err)
	}
	r.atlasView = atlasView

	rectData := make([]byte, len(uvRects)*16)
	for i, rect := range uvRects {
		for j, v := range rect {
			binary.LittleEndian.PutUint32(rectData[i*16+j*4:], math.Float32bits(v))
		}
	}
	uvRectBuf, err := r.createAndUploadBuffer("particle_uv_rects", rectData,
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		r.destroyAtlas()
		return fmt.Errorf("create uv rect buffer: %w", err)
	}
	r.uvRectBuf = uvRectBuf
	r.uvRectSize = uint64(len(rectData))

	bindGroup, err := r.dev.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "particle_bind",
		Layout: r.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: r.uniformBuf.NativeHandle(), Offset: 0, Size: uniformSize,
			}},
			{Binding: 1, Resource: gputypes.BufferBinding{
				Buffer: r.uvRectBuf.NativeHandle(), Offset: 0, Size: r.uvRectSize,
			}},
			{Binding: 2, Resource: gputypes.TextureViewBinding{
				TextureView: r.atlasView.NativeHandle(),
			}},
			{Binding: 3, Resource: gputypes.SamplerBinding{
				Sampler: r.sampler.NativeHandle(),
			}},
		},
	})
	if err != nil {
		r.destroyAtlas()
		return fmt.Errorf("create bind group: %w", err)
	}
	r.bindGroup = bindGroup

	slogger().Debug("atlas uploaded", "width", w, "height", h, "cells", len(uvRects))
	return nil
}

func (r *Renderer) ensureInstanceCapacity(count int) error {
	if count <= r.instanceCap && r.instanceBuf != nil {
		return nil
	}
	capacity := r.instanceCap
	if capacity == 0 {
		capacity = 256
	}
	for capacity < count {
		capacity *= 2
	}
	if r.instanceBuf != nil {
		r.dev.device.DestroyBuffer(r.instanceBuf)
		r.instanceBuf = nil
	}
	buf, err := r.dev.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "particle_instances",
		Size:  uint64(capacity) * InstanceStride,
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create instance buffer: %w", err)
	}
	r.instanceBuf = buf
	r.instanceCap = capacity
	return nil
}

// Render draws count instances from the packed instance records, waits
// for the GPU, and writes the frame into dst as RGBA. dst must match
// the renderer's target size.
func (r *Renderer) Render(instances []byte, count int, u Uniforms, dst *pix.Pixmap) error {
	if r.bindGroup == nil {
		return fmt.Errorf("gpu: render before atlas upload")
	}
	if dst == nil || uint32(dst.Width()) != r.width || uint32(dst.Height()) != r.height {
		return fmt.Errorf("gpu: destination size mismatch")
	}
	if len(instances) < count*InstanceStride {
		return fmt.Errorf("gpu: instance data too short for %d instances", count)
	}
	if count > 0 {
		if err := r.ensureInstanceCapacity(count); err != nil {
			return err
		}
		if err := r.dev.queue.WriteBuffer(r.instanceBuf, 0, instances[:count*InstanceStride]); err != nil {
			return fmt.Errorf("upload instances: %w", err)
		}
	}
	if err := r.dev.queue.WriteBuffer(r.uniformBuf, 0, packUniforms(u)); err != nil {
		return fmt.Errorf("upload uniforms: %w", err)
	}

	encoder, err := r.dev.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "particle_frame",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	encoder.BeginEncoding("particle_frame")

	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "particle_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:       r.targetView,
				LoadOp:     gputypes.LoadOpClear,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: gputypes.Color{R: 0, G: 0, B: 0, A: 0},
			},
		},
	})
	if count > 0 {
		rp.SetPipeline(r.pipeline)
		rp.SetBindGroup(0, r.bindGroup, nil)
		rp.SetVertexBuffer(0, r.quadVB, 0)
		rp.SetVertexBuffer(1, r.instanceBuf, 0)
		rp.SetIndexBuffer(r.quadIB, gputypes.IndexFormatUint16, 0)
		rp.DrawIndexed(6, uint32(count), 0, 0, 0)
	}
	rp.End()

	encoder.TransitionTextures([]hal.TextureBarrier{
		{
			Texture: r.targetTex,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageRenderAttachment,
				NewUsage: gputypes.TextureUsageCopySrc,
			},
		},
	})
	alignedBPR := alignedBytesPerRow(r.width)
	encoder.CopyTextureToBuffer(r.targetTex, r.stagingBuf, []hal.BufferTextureCopy{
		{
			BufferLayout: hal.ImageDataLayout{
				Offset:       0,
				BytesPerRow:  alignedBPR,
				RowsPerImage: r.height,
			},
			TextureBase: hal.ImageCopyTexture{Texture: r.targetTex, MipLevel: 0},
			Size:        hal.Extent3D{Width: r.width, Height: r.height, DepthOrArrayLayers: 1},
		},
	})
	encoder.TransitionTextures([]hal.TextureBarrier{
		{
			Texture: r.targetTex,
			Usage: hal.TextureUsageTransition{
				OldUsage: gputypes.TextureUsageCopySrc,
				NewUsage: gputypes.TextureUsageRenderAttachment,
			},
		},
	})

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("end encoding: %w", err)
	}
	defer r.dev.device.FreeCommandBuffer(cmdBuf)

	if _, err := r.dev.queue.Submit([]hal.CommandBuffer{cmdBuf}); err != nil {
		return fmt.Errorf("submit frame: %w", err)
	}
	if err := r.dev.device.WaitIdle(); err != nil {
		return fmt.Errorf("wait for frame: %w", err)
	}

	mapping, err := r.dev.device.MapBuffer(r.stagingBuf, 0, uint64(len(r.readback)))
	if err != nil {
		return fmt.Errorf("map readback buffer: %w", err)
	}
	copy(r.readback, unsafe.Slice((*byte)(mapping.Ptr), len(r.readback)))
	if err := r.dev.device.UnmapBuffer(r.stagingBuf); err != nil {
		return fmt.Errorf("unmap readback buffer: %w", err)
	}
	unpackBGRA(r.readback, dst, alignedBPR)
	return nil
}

// unpackBGRA strips the row alignment padding and converts the BGRA
// target rows into the RGBA destination pixmap.
func unpackBGRA(src []byte, dst *pix.Pixmap, alignedBPR uint32) {
	w := dst.Width()
	h := dst.Height()
	out := dst.Data()
	for y := 0; y < h; y++ {
		row := src[uint32(y)*alignedBPR:]
		for x := 0; x < w; x++ {
			si := x * 4
			di := (y*w + x) * 4
			out[di+0] = row[si+2]
			out[di+1] = row[si+1]
			out[di+2] = row[si+0]
			out[di+3] = row[si+3]
		}
	}
}

func (r *Renderer) destroyAtlas() {
	if r.dev == nil || r.dev.device == nil {
		return
	}
	if r.bindGroup != nil {
		r.dev.device.DestroyBindGroup(r.bindGroup)
		r.bindGroup = nil
	}
	if r.uvRectBuf != nil {
		r.dev.device.DestroyBuffer(r.uvRectBuf)
		r.uvRectBuf = nil
	}
	if r.atlasView != nil {
		r.dev.device.DestroyTextureView(r.atlasView)
		r.atlasView = nil
	}
	if r.atlasTex != nil {
		r.dev.device.DestroyTexture(r.atlasTex)
		r.atlasTex = nil
	}
}

func (r *Renderer) destroyTarget() {
	if r.dev == nil || r.dev.device == nil {
		return
	}
	if r.stagingBuf != nil {
		r.dev.device.DestroyBuffer(r.stagingBuf)
		r.stagingBuf = nil
	}
	if r.targetView != nil {
		r.dev.device.DestroyTextureView(r.targetView)
		r.targetView = nil
	}
	if r.targetTex != nil {
		r.dev.device.DestroyTexture(r.targetTex)
		r.targetTex = nil
	}
	r.readback = nil
}

// Destroy releases all GPU resources in reverse creation order. The
// device itself is left open for its owner to close.
func (r *Renderer) Destroy() {
	if r.dev == nil || r.dev.device == nil {
		return
	}
	r.destroyTarget()
	r.destroyAtlas()
	if r.instanceBuf != nil {
		r.dev.device.DestroyBuffer(r.instanceBuf)
		r.instanceBuf = nil
	}
	if r.uniformBuf != nil {
		r.dev.device.DestroyBuffer(r.uniformBuf)
		r.uniformBuf = nil
	}
	if r.quadIB != nil {
		r.dev.device.DestroyBuffer(r.quadIB)
		r.quadIB = nil
	}
	if r.quadVB != nil {
		r.dev.device.DestroyBuffer(r.quadVB)
		r.quadVB = nil
	}
	if r.sampler != nil {
		r.dev.device.DestroySampler(r.sampler)
		r.sampler = nil
	}
	if r.pipeline != nil {
		r.dev.device.DestroyRenderPipeline(r.pipeline)
		r.pipeline = nil
	}
	if r.pipeLayout != nil {
		r.dev.device.DestroyPipelineLayout(r.pipeLayout)
		r.pipeLayout = nil
	}
	if r.bindLayout != nil {
		r.dev.device.DestroyBindGroupLayout(r.bindLayout)
		r.bindLayout = nil
	}
	if r.shader != nil {
		r.dev.device.DestroyShaderModule(r.shader)
		r.shader = nil
	}
}
