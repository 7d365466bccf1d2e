package shipments

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Box is one row of the dimensions table: count identical boxes of
// width x height x depth centimetres, each weighing WeightPerPiece kg.
type Box struct {
	Width          float64 `json:"width" validate:"gte=0"`
	Height         float64 `json:"height" validate:"gte=0"`
	Depth          float64 `json:"depth" validate:"gte=0"`
	Count          int     `json:"count" validate:"gte=1"`
	WeightPerPiece float64 `json:"weightPerPiece" validate:"gte=0"`
}

var (
	boxPattern       = regexp.MustCompile(`^(\d+(?:\.\d+)?)x(\d+(?:\.\d+)?)x(\d+(?:\.\d+)?)\s*\((\d+)\s*pcs\s*-\s*(\d+(?:\.\d+)?)\s*kg/pc\)$`)
	legacyBoxPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)x(\d+(?:\.\d+)?)x(\d+(?:\.\d+)?)\s*\((\d+)\)$`)
)

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// measured drops rows missing a width, height or depth.
func measured(boxes []Box) []Box {
	out := make([]Box, 0, len(boxes))
	for _, b := range boxes {
		if b.Width > 0 && b.Height > 0 && b.Depth > 0 {
			out = append(out, b)
		}
	}
	return out
}

// EncodeDimensions renders boxes as
// "<w>x<h>x<d> (<count> pcs - <weight> kg/pc)" joined by ", ".
// Rows missing a width, height or depth are dropped.
func EncodeDimensions(boxes []Box) string {
	boxes = measured(boxes)
	parts := make([]string, 0, len(boxes))
	for _, b := range boxes {
		parts = append(parts, fmt.Sprintf("%sx%sx%s (%d pcs - %s kg/pc)",
			formatNumber(b.Width), formatNumber(b.Height), formatNumber(b.Depth), b.Count, formatNumber(b.WeightPerPiece)))
	}
	return strings.Join(parts, ", ")
}

// DecodeDimensions parses the current and legacy "<w>x<h>x<d> (<count>)"
// forms. Legacy rows decode with zero weight; unrecognised entries are skipped.
func DecodeDimensions(s string) []Box {
	var boxes []Box
	for _, raw := range strings.Split(s, ",") {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if m := boxPattern.FindStringSubmatch(entry); m != nil {
			boxes = append(boxes, Box{
				Width:          parseFloat(m[1]),
				Height:         parseFloat(m[2]),
				Depth:          parseFloat(m[3]),
				Count:          parseInt(m[4]),
				WeightPerPiece: parseFloat(m[5]),
			})
			continue
		}
		if m := legacyBoxPattern.FindStringSubmatch(entry); m != nil {
			boxes = append(boxes, Box{
				Width:  parseFloat(m[1]),
				Height: parseFloat(m[2]),
				Depth:  parseFloat(m[3]),
				Count:  parseInt(m[4]),
			})
		}
	}
	return boxes
}

// Totals derives quantity (sum of counts), weight in kg and volume in m³
// rounded to four decimals.
func Totals(boxes []Box) (quantity int, weight, volume float64) {
	for _, b := range boxes {
		quantity += b.Count
		weight += float64(b.Count) * b.WeightPerPiece
		volume += b.Width * b.Height * b.Depth / 1e6 * float64(b.Count)
	}
	return quantity, roundTo(weight, 4), roundTo(volume, 4)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseInt(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}
