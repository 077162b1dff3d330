package reports

import (
	"regexp"
	"strconv"
	"strings"
)

// Slot: именованное место подписи на последней странице отчёта
type Slot string

const (
	SlotEngineer Slot = "engineer"
	SlotCustomer Slot = "customer"
)

// Anchor: прямоугольник в пунктах PDF от левого нижнего угла страницы.
type Anchor struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// места по умолчанию: подписи рядом, не пересекаются
var DefaultAnchors = map[Slot]Anchor{
	SlotEngineer: {X: 60, Y: 110, Width: 200, Height: 100},
	SlotCustomer: {X: 335, Y: 110, Width: 200, Height: 100},
}

var slotMeta = regexp.MustCompile(`<meta\s+name="signature-slot:([a-z_]+)"\s+content="([^"]*)"\s*/?>`)

// ParseAnchors читает места подписей из <meta name="signature-slot:..."> шаблона.
// Отсутствующие или битые объявления заменяются значениями по умолчанию.
func ParseAnchors(tmpl string) map[Slot]Anchor {
	anchors := make(map[Slot]Anchor, len(DefaultAnchors))
	for slot, a := range DefaultAnchors {
		anchors[slot] = a
	}

	for _, m := range slotMeta.FindAllStringSubmatch(tmpl, -1) {
		a, ok := parseAnchor(m[2])
		if !ok {
			continue
		}
		anchors[Slot(m[1])] = a
	}
	return anchors
}

func parseAnchor(s string) (Anchor, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Anchor{}, false
	}

	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || f < 0 {
			return Anchor{}, false
		}
		v[i] = f
	}
	if v[2] == 0 || v[3] == 0 {
		return Anchor{}, false
	}
	return Anchor{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, true
}

func (a Anchor) overlaps(b Anchor) bool {
	return a.X < b.X+b.Width && b.X < a.X+a.Width &&
		a.Y < b.Y+b.Height && b.Y < a.Y+a.Height
}
