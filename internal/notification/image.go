package notification

import (
	"image"
	"image/draw"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/nfnt/resize"
)

const (
	// MaxImageBytes bounds the raw pixel payload kept per notification.
	MaxImageBytes = 1024 * 1024
	// MaxImageDimension is the largest side kept; bigger images are downscaled.
	MaxImageDimension = 512
	// MaxSourcePixels bounds the declared size of incoming raw images, so
	// that expanding them to RGBA stays under 64 MiB.
	MaxSourcePixels = 64 * 1024 * 1024 / 4
)

// ImageData is the (iiibiiay) image-data hint payload.
type ImageData struct {
	Width         int32
	Height        int32
	Rowstride     int32
	HasAlpha      bool
	BitsPerSample int32
	Channels      int32
	Data          []byte
}

// Image is the image information derived from hints and app_icon.
type Image struct {
	HasImageData bool
	ImageData    ImageData
	ImagePath    string
	IconName     string
}

// ImageFromHints derives the image of a notification. Raw image data is
// preferred over image paths, which are preferred over app_icon.
func ImageFromHints(appName, appIcon string, hints Hints) Image {
	var img Image
	for _, key := range []string{HintImageData, HintImageDataOld, HintIconData} {
		v, ok := hints[key]
		if !ok {
			continue
		}
		if data, ok := parseImageData(v); ok {
			img.HasImageData = true
			img.ImageData = data
			break
		}
	}

	img.ImagePath, _ = hints.String(HintImagePath)
	if img.ImagePath == "" {
		img.ImagePath, _ = hints.String(HintImagePathOld)
	}

	iconIsPath := strings.HasPrefix(appIcon, "/") || strings.HasPrefix(appIcon, "file://")
	if img.ImagePath == "" && iconIsPath {
		img.ImagePath = appIcon
	}

	switch {
	case iconIsPath:
	case appIcon != "":
		img.IconName = strings.TrimSuffix(appIcon, ".desktop")
	default:
		if entry, ok := hints.String(HintDesktopEntry); ok {
			img.IconName = strings.TrimSuffix(entry, ".desktop")
		} else {
			img.IconName = appName
		}
	}
	return img
}

// ForListing drops raw pixels so list replies stay small.
func (i Image) ForListing() Image {
	if len(i.ImageData.Data) == 0 {
		return i
	}
	return Image{ImagePath: i.ImagePath, IconName: i.IconName}
}

// ForHistory drops raw pixels when a path or icon name can stand in for them.
func (i Image) ForHistory() Image {
	if i.HasImageData && (i.ImagePath != "" || i.IconName != "") {
		return Image{ImagePath: i.ImagePath, IconName: i.IconName}
	}
	return i
}

func parseImageData(v dbus.Variant) (ImageData, bool) {
	var data ImageData
	if err := dbus.Store([]interface{}{v.Value()}, &data); err != nil {
		return ImageData{}, false
	}
	if !fitsPayload(data) {
		return ImageData{}, false
	}

	if data.BitsPerSample == 8 {
		switch data.Channels {
		case 4:
		case 3:
			expanded, ok := expandRGB(data)
			if !ok {
				return ImageData{}, false
			}
			data = expanded
		default:
			return ImageData{}, false
		}
	}

	if data.Width > MaxImageDimension || data.Height > MaxImageDimension {
		scaled, ok := downscale(data)
		if !ok {
			return ImageData{}, false
		}
		data = scaled
	}

	if len(data.Data) > MaxImageBytes {
		return ImageData{}, false
	}
	return data, true
}

// fitsPayload checks the declared geometry before anything is allocated.
// The arithmetic is done in int64, where int32 inputs cannot overflow.
func fitsPayload(data ImageData) bool {
	if data.Width <= 0 || data.Height <= 0 {
		return false
	}
	if data.Channels < 1 || data.Channels > 4 || data.BitsPerSample < 1 || data.BitsPerSample > 16 {
		return false
	}
	w, h := int64(data.Width), int64(data.Height)
	if w*h > MaxSourcePixels {
		return false
	}
	rowBytes := (w*int64(data.Channels)*int64(data.BitsPerSample) + 7) / 8
	stride := max(int64(data.Rowstride), rowBytes)
	return (h-1)*stride+rowBytes <= int64(len(data.Data))
}

// expandRGB converts 8-bit RGB rows into tightly packed RGBA.
func expandRGB(data ImageData) (ImageData, bool) {
	width := int(data.Width)
	height := int(data.Height)
	stride := max(int(data.Rowstride), width*3)

	rgba := make([]byte, width*height*4)
	for y := range height {
		row := y * stride
		for x := range width {
			src := row + x*3
			if src+3 > len(data.Data) {
				return ImageData{}, false
			}
			dst := (y*width + x) * 4
			copy(rgba[dst:dst+3], data.Data[src:src+3])
			rgba[dst+3] = 0xff
		}
	}

	return ImageData{
		Width:         data.Width,
		Height:        data.Height,
		Rowstride:     int32(width * 4),
		HasAlpha:      true,
		BitsPerSample: 8,
		Channels:      4,
		Data:          rgba,
	}, true
}

// downscale fits 8-bit RGBA data into MaxImageDimension on both sides,
// preserving the aspect ratio.
func downscale(data ImageData) (ImageData, bool) {
	if data.BitsPerSample != 8 || data.Channels != 4 {
		return ImageData{}, false
	}
	width := int(data.Width)
	height := int(data.Height)
	stride := int(data.Rowstride)
	if stride < width*4 {
		stride = width * 4
	}
	if (height-1)*stride+width*4 > len(data.Data) {
		return ImageData{}, false
	}

	src := &image.NRGBA{
		Pix:    data.Data,
		Stride: stride,
		Rect:   image.Rect(0, 0, width, height),
	}
	scaled := resize.Thumbnail(MaxImageDimension, MaxImageDimension, src, resize.Bilinear)

	bounds := scaled.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), scaled, bounds.Min, draw.Src)

	return ImageData{
		Width:         int32(bounds.Dx()),
		Height:        int32(bounds.Dy()),
		Rowstride:     int32(dst.Stride),
		HasAlpha:      data.HasAlpha,
		BitsPerSample: 8,
		Channels:      4,
		Data:          dst.Pix,
	}, true
}
