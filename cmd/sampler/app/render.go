package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
)

// Theme selects the radiance color mapping. Both map the coldest
// (lowest radiance) pixels to the brightest colors, the convention for
// infrared imagery where cold means high cloud tops.
type Theme string

const (
	ThemeGrayscale Theme = "grayscale" // reversed grayscale
	ThemeInfrared  Theme = "infrared"  // blue-to-red cold-top enhancement

	colorMapSize = 256

	dpi      = 120.0
	fontSize = 9.0

	// infoBorder is the white strip under the crop holding the storm
	// label, timestamp and pixel resolution.
	infoBorder = 32
)

var noDataColor = color.Black

func themeFunc(theme Theme) (func(float64) color.Color, error) {
	switch theme {
	case ThemeGrayscale:
		return func(t float64) color.Color {
			v := uint8(t * 255)
			return color.RGBA{R: v, G: v, B: v, A: 255}
		}, nil

	case ThemeInfrared:
		return func(t float64) color.Color {
			// Warm background stays dim blue; cold tops sweep
			// through green and yellow into red.
			hue := 236 - (t * 236)
			val := 0.25 + (math.Pow(t, 0.8) * 0.75)
			return colorful.Hsv(hue, 1, val)
		}, nil

	default:
		return nil, fmt.Errorf("unknown theme: %s", theme)
	}
}

// Renderer turns radiance crops into annotated images. The color map
// is precomputed once per renderer.
type Renderer struct {
	colorMap [colorMapSize]color.Color
	context  *freetype.Context
}

func NewRenderer(theme Theme) (*Renderer, error) {
	fn, err := themeFunc(theme)
	if err != nil {
		return nil, err
	}

	parsedFont, err := freetype.ParseFont(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(fontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	r := &Renderer{context: ctx}
	for i := range r.colorMap {
		r.colorMap[i] = fn(float64(i) / float64(colorMapSize-1))
	}
	return r, nil
}

// Render draws the crop's radiance values through the color map and
// annotates the result with the crop label, time and resolution.
func (r *Renderer) Render(crop *Crop) (*image.RGBA, error) {
	nrows := len(crop.Data)
	if nrows == 0 {
		return nil, fmt.Errorf("empty crop")
	}
	ncols := len(crop.Data[0])

	img := image.NewRGBA(image.Rect(0, 0, ncols, nrows+infoBorder))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	minRad, maxRad, ok := cropRange(crop.Data)
	if !ok {
		return nil, fmt.Errorf("crop holds no finite radiance")
	}
	span := maxRad - minRad

	for y, row := range crop.Data {
		for x, v := range row {
			if math.IsNaN(v) {
				img.Set(x, y, noDataColor)
				continue
			}

			// Reversed: minimum radiance maps to the top of the
			// color scale.
			t := 1.0
			if span > 0 {
				t = (maxRad - v) / span
			}
			idx := int(t * float64(colorMapSize-1))
			img.Set(x, y, r.colorMap[idx])
		}
	}

	if err := r.annotate(img, crop, nrows); err != nil {
		return nil, fmt.Errorf("annotating crop: %w", err)
	}
	return img, nil
}

func (r *Renderer) annotate(img *image.RGBA, crop *Crop, cropHeight int) error {
	r.context.SetClip(img.Bounds())
	r.context.SetDst(img)

	res, suffix := humanize.ComputeSI(crop.Resolution)
	info := fmt.Sprintf("%s  %s  1 px = %0.1f %sm",
		crop.Label, crop.Time.Format("2006-01-02 15:04Z"), res, suffix)

	pt := freetype.Pt(4, cropHeight+infoBorder/2+4)
	if _, err := r.context.DrawString(info, pt); err != nil {
		return err
	}
	return nil
}

func cropRange(data [][]float64) (minRad, maxRad float64, ok bool) {
	minRad, maxRad = math.Inf(1), math.Inf(-1)
	for _, row := range data {
		for _, v := range row {
			if math.IsNaN(v) {
				continue
			}
			if v < minRad {
				minRad = v
			}
			if v > maxRad {
				maxRad = v
			}
		}
	}
	return minRad, maxRad, minRad <= maxRad
}
