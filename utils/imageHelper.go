package utils

import (
	"bytes"

	"github.com/disintegration/imaging"
)

const maxProfileImageWidth = 512

// NormalizeProfileImage decodes an uploaded profile picture, scales it down
// to at most 512px wide and re-encodes it as JPEG, so the blob store never
// holds multi-megabyte camera originals.
func NormalizeProfileImage(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	if img.Bounds().Dx() > maxProfileImageWidth {
		img = imaging.Resize(img, maxProfileImageWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
