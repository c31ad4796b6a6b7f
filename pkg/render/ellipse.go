package render

import (
	"image"
	"image/color"
	"math"

	"github.com/shouni/go-comic-trans/pkg/domain"
)

// fillEllipse は被覆楕円を水平スキャンラインで塗りつぶします。
func fillEllipse(dst *image.RGBA, shape domain.CoverShape, col color.Color) {
	if shape.SemiMajor <= 0 || shape.SemiMinor <= 0 {
		return
	}

	bounds := dst.Bounds()
	top := int(math.Ceil(shape.CenterY - shape.SemiMinor))
	bottom := int(math.Floor(shape.CenterY + shape.SemiMinor))

	for y := top; y <= bottom; y++ {
		if y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}
		dy := (float64(y) - shape.CenterY) / shape.SemiMinor
		if dy < -1 || dy > 1 {
			continue
		}
		halfWidth := shape.SemiMajor * math.Sqrt(1-dy*dy)
		left := int(math.Ceil(shape.CenterX - halfWidth))
		right := int(math.Floor(shape.CenterX + halfWidth))
		if left < bounds.Min.X {
			left = bounds.Min.X
		}
		if right >= bounds.Max.X {
			right = bounds.Max.X - 1
		}
		for x := left; x <= right; x++ {
			dst.Set(x, y, col)
		}
	}
}
