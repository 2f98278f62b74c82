package notification

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wireImage builds an image-data variant the way the decoder delivers it.
func wireImage(w, h, stride int32, alpha bool, channels int32, data []byte) dbus.Variant {
	return dbus.MakeVariant([]interface{}{w, h, stride, alpha, int32(8), channels, data})
}

func TestImageFromHints_RGBAData(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	img := ImageFromHints("app", "", Hints{
		HintImageData: wireImage(2, 1, 8, true, 4, data),
	})

	require.True(t, img.HasImageData)
	assert.Equal(t, int32(2), img.ImageData.Width)
	assert.Equal(t, data, img.ImageData.Data)
	assert.Equal(t, "app", img.IconName)
}

func TestImageFromHints_ExpandsRGB(t *testing.T) {
	// 2x2 RGB with a padded rowstride of 8
	data := []byte{
		1, 2, 3, 4, 5, 6, 0, 0,
		7, 8, 9, 10, 11, 12, 0, 0,
	}
	img := ImageFromHints("", "", Hints{
		HintImageDataOld: wireImage(2, 2, 8, false, 3, data),
	})

	require.True(t, img.HasImageData)
	assert.Equal(t, int32(4), img.ImageData.Channels)
	assert.Equal(t, int32(8), img.ImageData.Rowstride)
	assert.True(t, img.ImageData.HasAlpha)
	assert.Equal(t, []byte{
		1, 2, 3, 255, 4, 5, 6, 255,
		7, 8, 9, 255, 10, 11, 12, 255,
	}, img.ImageData.Data)
}

func TestImageFromHints_TruncatedRGBRejected(t *testing.T) {
	img := ImageFromHints("", "", Hints{
		HintImageData: wireImage(2, 2, 6, false, 3, []byte{1, 2, 3}),
	})
	assert.False(t, img.HasImageData)
}

func TestImageFromHints_FallsBackAcrossKeys(t *testing.T) {
	img := ImageFromHints("", "", Hints{
		HintImageData: dbus.MakeVariant("garbage"),
		HintIconData:  wireImage(1, 1, 4, true, 4, []byte{9, 9, 9, 9}),
	})
	require.True(t, img.HasImageData)
	assert.Equal(t, []byte{9, 9, 9, 9}, img.ImageData.Data)
}

func TestImageFromHints_RejectsBadDimensions(t *testing.T) {
	tests := []struct {
		name  string
		image dbus.Variant
	}{
		{"zero width", wireImage(0, 4, 0, true, 4, nil)},
		{"negative height", wireImage(4, -1, 16, true, 4, make([]byte, 16))},
		{"unsupported channels", wireImage(1, 1, 5, true, 5, make([]byte, 5))},
		{"rgb size overflows", wireImage(0x7fffffff, 0x40000000, 0, false, 3, []byte{1, 2, 3})},
		{"rgba size overflows", wireImage(0x7fffffff, 0x7fffffff, 0, true, 4, []byte{1, 2, 3, 4})},
		{"huge rgb with tiny payload", wireImage(30000, 30000, 0, false, 3, []byte{1, 2, 3})},
		{"rowstride overflows payload", wireImage(600, 600, 0x7fffffff, true, 4, make([]byte, 600*4))},
		{"short payload for downscale", wireImage(1024, 256, 1024*4, true, 4, make([]byte, 1024*4))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := ImageFromHints("", "", Hints{HintImageData: tt.image})
			assert.False(t, img.HasImageData)
			assert.Empty(t, img.ImageData.Data)
		})
	}
}

func TestImageFromHints_DownscalesLargeImages(t *testing.T) {
	const w, h = 1024, 256
	data := make([]byte, w*h*4)
	for i := range data {
		data[i] = 0x80
	}
	img := ImageFromHints("", "", Hints{
		HintImageData: wireImage(w, h, w*4, true, 4, data),
	})

	require.True(t, img.HasImageData)
	assert.Equal(t, int32(512), img.ImageData.Width)
	assert.Equal(t, int32(128), img.ImageData.Height)
	assert.Len(t, img.ImageData.Data, 512*128*4)
	assert.LessOrEqual(t, len(img.ImageData.Data), MaxImageBytes)
}

func TestImageFromHints_PathsAndIcons(t *testing.T) {
	tests := []struct {
		name     string
		appName  string
		appIcon  string
		hints    Hints
		wantPath string
		wantIcon string
	}{
		{
			name:     "image-path hint",
			appName:  "app",
			appIcon:  "mail-unread",
			hints:    Hints{HintImagePath: dbus.MakeVariant("/tmp/a.png")},
			wantPath: "/tmp/a.png",
			wantIcon: "mail-unread",
		},
		{
			name:     "legacy image_path hint",
			hints:    Hints{HintImagePathOld: dbus.MakeVariant("/tmp/b.png")},
			wantPath: "/tmp/b.png",
		},
		{
			name:     "absolute app_icon becomes path",
			appName:  "app",
			appIcon:  "/usr/share/icons/x.png",
			wantPath: "/usr/share/icons/x.png",
		},
		{
			name:     "file uri app_icon becomes path",
			appIcon:  "file:///tmp/c.png",
			wantPath: "file:///tmp/c.png",
		},
		{
			name:     "desktop suffix stripped from app_icon",
			appIcon:  "firefox.desktop",
			wantIcon: "firefox",
		},
		{
			name:     "desktop-entry fallback",
			appName:  "Firefox",
			hints:    Hints{HintDesktopEntry: dbus.MakeVariant("org.mozilla.firefox.desktop")},
			wantIcon: "org.mozilla.firefox",
		},
		{
			name:     "app name fallback",
			appName:  "Signal",
			wantIcon: "Signal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hints := tt.hints
			if hints == nil {
				hints = Hints{}
			}
			img := ImageFromHints(tt.appName, tt.appIcon, hints)
			assert.Equal(t, tt.wantPath, img.ImagePath)
			assert.Equal(t, tt.wantIcon, img.IconName)
		})
	}
}

func TestImage_ForHistoryKeepsPixelsWithoutFallback(t *testing.T) {
	img := Image{HasImageData: true, ImageData: ImageData{Data: []byte{1}}}
	assert.Equal(t, img, img.ForHistory())

	img.IconName = "mail"
	trimmed := img.ForHistory()
	assert.False(t, trimmed.HasImageData)
	assert.Equal(t, "mail", trimmed.IconName)
}
