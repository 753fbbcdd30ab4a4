package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.6-core/gl"

	"github.com/user/gpupathtracer/internal/engine/gpu"
)

// Image is an immutable-storage 2D texture.
type Image struct {
	tex    uint32
	label  string
	extent gpu.Extent
	format gpu.Format
}

func internalFormat(f gpu.Format) uint32 {
	if f == gpu.FormatRGBA32F {
		return gl.RGBA32F
	}
	return gl.RGBA8
}

func newImage(desc gpu.ImageDesc) (*Image, error) {
	if desc.Extent.Empty() {
		return nil, fmt.Errorf("image %q: empty extent", desc.Label)
	}
	img := &Image{label: desc.Label, extent: desc.Extent, format: desc.Format}
	gl.CreateTextures(gl.TEXTURE_2D, 1, &img.tex)
	gl.TextureStorage2D(img.tex, 1, internalFormat(desc.Format), int32(desc.Extent.Width), int32(desc.Extent.Height))
	gl.TextureParameteri(img.tex, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TextureParameteri(img.tex, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	if err := check("create image " + desc.Label); err != nil {
		gl.DeleteTextures(1, &img.tex)
		return nil, err
	}
	return img, nil
}

func (d *Device) CreateImage(desc gpu.ImageDesc) (gpu.Image, error) {
	return newImage(desc)
}

func (i *Image) Extent() gpu.Extent { return i.extent }
func (i *Image) Format() gpu.Format { return i.format }

func (i *Image) Release() {
	if i.tex != 0 {
		gl.DeleteTextures(1, &i.tex)
		i.tex = 0
	}
}

// Buffer is an immutable-storage buffer updated with glNamedBufferSubData.
type Buffer struct {
	buf   uint32
	size  int
	usage gpu.BufferUsage
}

func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	if desc.Size <= 0 {
		return nil, fmt.Errorf("buffer %q: size %d", desc.Label, desc.Size)
	}
	b := &Buffer{size: desc.Size, usage: desc.Usage}
	gl.CreateBuffers(1, &b.buf)
	gl.NamedBufferStorage(b.buf, desc.Size, nil, gl.DYNAMIC_STORAGE_BIT)
	if err := check("create buffer " + desc.Label); err != nil {
		gl.DeleteBuffers(1, &b.buf)
		return nil, err
	}
	return b, nil
}

func (b *Buffer) Size() int { return b.size }

func (b *Buffer) Write(offset int, data []byte) error {
	if b.buf == 0 {
		return gpu.ErrReleased
	}
	if offset < 0 || offset+len(data) > b.size {
		return gpu.ErrOutOfRange
	}
	if len(data) == 0 {
		return nil
	}
	gl.NamedBufferSubData(b.buf, offset, len(data), gl.Ptr(data))
	return check("write buffer")
}

func (b *Buffer) Release() {
	if b.buf != 0 {
		gl.DeleteBuffers(1, &b.buf)
		b.buf = 0
	}
}

// Bindings is the list of resources bound before a dispatch.
type Bindings struct {
	entries []gpu.Binding
}

func (d *Device) CreateBindings(k gpu.Kernel, entries []gpu.Binding) (gpu.Bindings, error) {
	if _, ok := k.(*Kernel); !ok {
		return nil, fmt.Errorf("opengl: bindings for foreign kernel %T", k)
	}
	for _, e := range entries {
		switch e.Kind {
		case gpu.BindingStorageImage:
			if _, ok := e.Image.(*Image); !ok {
				return nil, fmt.Errorf("opengl: slot %d: foreign image %T", e.Slot, e.Image)
			}
		default:
			if _, ok := e.Buffer.(*Buffer); !ok {
				return nil, fmt.Errorf("opengl: slot %d: foreign buffer %T", e.Slot, e.Buffer)
			}
		}
	}
	return &Bindings{entries: append([]gpu.Binding(nil), entries...)}, nil
}

func (b *Bindings) Release() { b.entries = nil }

func (b *Bindings) bind() {
	for _, e := range b.entries {
		switch e.Kind {
		case gpu.BindingStorageImage:
			img := e.Image.(*Image)
			gl.BindImageTexture(e.Slot, img.tex, 0, false, 0, gl.READ_WRITE, internalFormat(img.format))
		case gpu.BindingStorageBuffer:
			gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, e.Slot, e.Buffer.(*Buffer).buf)
		case gpu.BindingUniformBuffer:
			gl.BindBufferBase(gl.UNIFORM_BUFFER, e.Slot, e.Buffer.(*Buffer).buf)
		}
	}
}
