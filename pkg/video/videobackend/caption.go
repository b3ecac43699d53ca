package videobackend

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/color"

	"github.com/tauraamui/snapwatch/pkg/detect"
)

var palette = []color.RGBA{
	{R: 0, G: 255, B: 0, A: 255},
	{R: 255, G: 0, B: 0, A: 255},
	{R: 0, G: 128, B: 255, A: 255},
	{R: 255, G: 255, B: 0, A: 255},
	{R: 255, G: 0, B: 255, A: 255},
	{R: 0, G: 255, B: 255, A: 255},
	{R: 255, G: 128, B: 0, A: 255},
	{R: 128, G: 0, B: 255, A: 255},
}

// LabelColour is stable for a given label across frames and backends.
func LabelColour(label string) color.RGBA {
	h := fnv.New32a()
	h.Write([]byte(label))
	return palette[h.Sum32()%uint32(len(palette))]
}

func caption(d detect.Detection, writeConfidence bool) string {
	if writeConfidence {
		return fmt.Sprintf("%s %.2f", d.Label, d.Confidence)
	}
	return d.Label
}

const captionGap = 4

// captionOrigin is the text baseline: above the box when it fits,
// otherwise just inside the top edge.
func captionOrigin(box image.Rectangle, textHeight int) image.Point {
	if box.Min.Y-textHeight-captionGap >= 0 {
		return image.Pt(box.Min.X, box.Min.Y-captionGap)
	}
	return image.Pt(box.Min.X+captionGap, box.Min.Y+textHeight+captionGap)
}
