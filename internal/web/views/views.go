// Package views holds the HTML fragments served to the editor page.
package views

//go:generate templ generate

import (
	"fmt"
	"strconv"

	"github.com/JonMunkholm/certgen/internal/canvas"
	"github.com/JonMunkholm/certgen/internal/core"
	"github.com/a-h/templ"
)

func canvasStyle(view *core.RenderView) templ.Attributes {
	return templ.Attributes{
		"style": fmt.Sprintf("position:relative;width:%spx;height:%spx", px(view.Canvas.W), px(view.Canvas.H)),
	}
}

// fieldStyle positions a visual. Images paint above text.
func fieldStyle(v canvas.Visual) templ.Attributes {
	return templ.Attributes{
		"style": fmt.Sprintf("position:absolute;left:%spx;top:%spx;width:%spx;height:%spx;z-index:%d",
			px(v.Box.Left), px(v.Box.Top), px(v.Box.Width), px(v.Box.Height), int(v.Layer)*1000+v.Order),
	}
}

func textStyle(t *canvas.TextVisual) templ.Attributes {
	return templ.Attributes{
		"style": fmt.Sprintf("font-family:'%s';font-size:%dpx;color:%s", t.FontFamily, t.FontSize, t.Color),
	}
}

func imageSource(img *canvas.ImageVisual, images map[string]string) (string, bool) {
	if img.Empty {
		return "", false
	}
	src, ok := images[img.Ref]
	return src, ok
}

func imageLabel(k canvas.Kind) string {
	if k == canvas.KindSeal {
		return "Seal"
	}
	return "Signature"
}

func px(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
