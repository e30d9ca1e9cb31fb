package shell

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

var (
	iconBackground = color.RGBA{R: 0x4f, G: 0x46, B: 0xe5, A: 0xff}
	iconForeground = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// Icon draws the square app icon at size pixels: a white bag shape on the
// brand colour.
func Icon(size int) ([]byte, error) {
	if size <= 0 || size > 1024 {
		return nil, fmt.Errorf("icon size %d out of range", size)
	}

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	bag := image.Rect(size*3/10, size*2/5, size*7/10, size*4/5)
	handle := image.Rect(size*2/5, size/4, size*3/5, size*2/5)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			p := image.Pt(x, y)
			c := iconBackground
			if p.In(bag) || (p.In(handle) && !p.In(handle.Inset(max(1, size/32)))) {
				c = iconForeground
			}
			img.SetRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
