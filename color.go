package configurator

import (
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"golang.org/x/image/colornames"
)

// ParseColor understands #rgb, #rrggbb, #rrggbbaa, rgb()/rgba() and the CSS
// color names. The result is linear 0..1 RGBA without gamma conversion.
func ParseColor(s string) (mgl32.Vec4, error) {
	str := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(str, "#"):
		return parseHexColor(str[1:], s)
	case strings.HasPrefix(str, "rgb"):
		return parseRGBFunc(str, s)
	}
	if c, ok := colornames.Map[str]; ok {
		return mgl32.Vec4{
			float32(c.R) / 255,
			float32(c.G) / 255,
			float32(c.B) / 255,
			float32(c.A) / 255,
		}, nil
	}
	return mgl32.Vec4{}, errors.Errorf("unrecognized color %q", s)
}

func parseHexColor(hex string, orig string) (mgl32.Vec4, error) {
	switch len(hex) {
	case 3, 4:
		var expanded strings.Builder
		for _, r := range hex {
			expanded.WriteRune(r)
			expanded.WriteRune(r)
		}
		hex = expanded.String()
	case 6, 8:
	default:
		return mgl32.Vec4{}, errors.Errorf("color %q: hex form needs 3, 4, 6 or 8 digits", orig)
	}

	out := mgl32.Vec4{1, 1, 1, 1}
	for i := 0; i < len(hex)/2; i++ {
		v, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
		if err != nil {
			return mgl32.Vec4{}, errors.Wrapf(err, "color %q", orig)
		}
		out[i] = float32(v) / 255
	}
	return out, nil
}

func parseRGBFunc(str string, orig string) (mgl32.Vec4, error) {
	open := strings.IndexByte(str, '(')
	if open < 0 || !strings.HasSuffix(str, ")") {
		return mgl32.Vec4{}, errors.Errorf("color %q: malformed rgb()", orig)
	}
	fn := str[:open]
	if fn != "rgb" && fn != "rgba" {
		return mgl32.Vec4{}, errors.Errorf("color %q: unknown function %s", orig, fn)
	}

	parts := strings.FieldsFunc(str[open+1:len(str)-1], func(r rune) bool {
		return r == ',' || r == ' ' || r == '/'
	})
	if len(parts) != 3 && len(parts) != 4 {
		return mgl32.Vec4{}, errors.Errorf("color %q: want 3 or 4 components, got %d", orig, len(parts))
	}

	out := mgl32.Vec4{1, 1, 1, 1}
	for i, p := range parts {
		percent := strings.HasSuffix(p, "%")
		v, err := strconv.ParseFloat(strings.TrimSuffix(p, "%"), 32)
		if err != nil {
			return mgl32.Vec4{}, errors.Wrapf(err, "color %q component %d", orig, i)
		}
		switch {
		case percent:
			v /= 100
		case i < 3:
			v /= 255
		}
		out[i] = mgl32.Clamp(float32(v), 0, 1)
	}
	return out, nil
}
