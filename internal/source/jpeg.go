package source

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// EncodeJPEG converts an RGB24 frame to JPEG bytes. Used only at transport
// boundaries (WebSocket raw feed, ML service requests).
func EncodeJPEG(frame Frame, quality int) ([]byte, error) {
	if len(frame.Data) != frame.Width*frame.Height*3 {
		return nil, fmt.Errorf("frame buffer size %d does not match %dx%d", len(frame.Data), frame.Width, frame.Height)
	}
	if quality <= 0 || quality > 100 {
		quality = 85
	}

	img := image.NewNRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	for i := 0; i < frame.Width*frame.Height; i++ {
		src := i * 3
		dst := i * 4
		img.Pix[dst] = frame.Data[src]
		img.Pix[dst+1] = frame.Data[src+1]
		img.Pix[dst+2] = frame.Data[src+2]
		img.Pix[dst+3] = 0xff
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeJPEG converts JPEG bytes to an RGB24 pixel buffer, returning the
// buffer and its dimensions. Used by the upload endpoint to turn transport
// frames back into owned pixel data.
func DecodeJPEG(data []byte) ([]byte, int, int, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode JPEG: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	out := make([]byte, width*height*3)

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			out[i] = byte(r >> 8)
			out[i+1] = byte(g >> 8)
			out[i+2] = byte(b >> 8)
			i += 3
		}
	}
	return out, width, height, nil
}
