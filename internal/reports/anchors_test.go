package reports

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAnchorsFromTemplate(t *testing.T) {
	tmpl := `<head>
<meta name="signature-slot:engineer" content="40, 90, 180, 80">
<meta name="signature-slot:customer" content="320,90,180,80" />
</head>`

	anchors := ParseAnchors(tmpl)
	assert.Equal(t, Anchor{X: 40, Y: 90, Width: 180, Height: 80}, anchors[SlotEngineer])
	assert.Equal(t, Anchor{X: 320, Y: 90, Width: 180, Height: 80}, anchors[SlotCustomer])
}

func TestParseAnchorsFallsBackToDefaults(t *testing.T) {
	tmpl := `<meta name="signature-slot:engineer" content="1,2,three,4">`

	anchors := ParseAnchors(tmpl)
	assert.Equal(t, DefaultAnchors[SlotEngineer], anchors[SlotEngineer])
	assert.Equal(t, DefaultAnchors[SlotCustomer], anchors[SlotCustomer])
}

func TestParseAnchorsRejectsEmptyBox(t *testing.T) {
	anchors := ParseAnchors(`<meta name="signature-slot:customer" content="10,10,0,50">`)
	assert.Equal(t, DefaultAnchors[SlotCustomer], anchors[SlotCustomer])
}

func TestDefaultAnchorsDoNotOverlap(t *testing.T) {
	assert.False(t, DefaultAnchors[SlotEngineer].overlaps(DefaultAnchors[SlotCustomer]))
}

func TestEmbeddedTemplateSlotsDoNotOverlap(t *testing.T) {
	anchors := ParseAnchors(defaultTemplate)
	assert.False(t, anchors[SlotEngineer].overlaps(anchors[SlotCustomer]))
}
