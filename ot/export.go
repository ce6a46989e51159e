package ot

import (
	"fmt"
	"strings"
)

// ExportSVG renders a set of visible strokes (as returned by
// RoomState.VisibleStrokes or ClientSessionState.GetVisibleStrokes) to a
// standalone SVG document. The SaveCanvas capability renders this at save
// time and uploads it when object storage is configured.
func ExportSVG(strokes []Stroke) string {
	var b strings.Builder
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" width="1920" height="1080">`)
	for _, s := range strokes {
		if s.Deleted || len(s.Points) == 0 {
			continue
		}
		b.WriteString(strokeToSVGPath(s))
	}
	b.WriteString(`</svg>`)
	return b.String()
}

// strokeToSVGPath builds a single <path> element for a stroke, smoothing
// interior points with quadratic Bezier segments: a lone point yields a
// single moveto, two points a straight line, and three or more a chain of
// curves through the midpoints of each consecutive pair with a final
// straight segment to the last point.
func strokeToSVGPath(s Stroke) string {
	pts := s.Points
	var d strings.Builder
	fmt.Fprintf(&d, "M %g %g", pts[0].X, pts[0].Y)

	switch {
	case len(pts) == 1:
		// nothing further to draw; the moveto alone renders as a dot.
	case len(pts) == 2:
		fmt.Fprintf(&d, " L %g %g", pts[1].X, pts[1].Y)
	default:
		for i := 1; i < len(pts)-1; i++ {
			midX := (pts[i].X + pts[i+1].X) / 2
			midY := (pts[i].Y + pts[i+1].Y) / 2
			fmt.Fprintf(&d, " Q %g %g %g %g", pts[i].X, pts[i].Y, midX, midY)
		}
		last := pts[len(pts)-1]
		fmt.Fprintf(&d, " L %g %g", last.X, last.Y)
	}

	return fmt.Sprintf(`<path d="%s" stroke="%s" stroke-width="%d" fill="none" stroke-linecap="round" />`,
		d.String(), escapeSVGAttr(s.Color), s.BrushSize)
}

var svgAttrReplacer = strings.NewReplacer(`&`, "&amp;", `"`, "&quot;", `<`, "&lt;", `>`, "&gt;")

func escapeSVGAttr(s string) string {
	return svgAttrReplacer.Replace(s)
}
