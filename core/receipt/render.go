package receipt

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // logo decoder
	"image/png"
	"unicode"

	"github.com/pkg/errors"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/William-Pardo/tudojang-sub002/core"
)

const (
	width    = 640
	margin   = 28
	headerH  = 112
	logoSize = 80
	lineH    = 20
	rowH     = 24
	totalH   = 48
	footerH  = 48

	kindCol = 400 // x of the "tipo" column
)

var (
	ErrNoReceiptID = errors.New("receipt has no id")

	face = basicfont.Face7x13

	white     = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	ink       = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
	muted     = color.RGBA{R: 0x77, G: 0x77, B: 0x77, A: 0xff}
	rule      = color.RGBA{R: 0xdd, G: 0xdd, B: 0xdd, A: 0xff}
	stripe    = color.RGBA{R: 0xf5, G: 0xf5, B: 0xf5, A: 0xff}
	pngWriter = png.Encoder{CompressionLevel: png.BestCompression}
)

// Renderer draws receipt images.
// Each call renders into its own image, so a Renderer may be shared by concurrent requests.
type Renderer struct {
	logger core.Logger
}

func NewRenderer(logger core.Logger) *Renderer {
	return &Renderer{logger: logger}
}

// Render draws `d` with the tenant branding `b` and encodes it as PNG.
// The same inputs always produce the same bytes.
func (r *Renderer) Render(d Data, b Branding) ([]byte, error) {
	if d.ReceiptID == "" {
		return nil, ErrNoReceiptID
	}
	if b.Primary.A == 0 {
		b.Primary = DefaultPrimary
	}
	if b.Secondary.A == 0 {
		b.Secondary = DefaultSecondary
	}

	details := detailLines(d)
	extras := extraLines(d)
	height := headerH + 24 + len(details)*lineH + 12 + rowH + len(d.Items)*rowH + 12 + totalH + len(extras)*lineH + 24 + footerH

	c := &canvas{img: image.NewRGBA(image.Rect(0, 0, width, height))}
	c.fill(c.img.Bounds(), white)

	c.header(b)

	y := headerH + 24
	for _, l := range details {
		c.text(margin, y+13, l, ink)
		y += lineH
	}
	y += 6
	c.fill(image.Rect(margin, y, width-margin, y+1), rule)
	y += 6

	c.text(margin, y+16, "DESCRIPCION", muted)
	c.text(kindCol, y+16, "TIPO", muted)
	c.textRight(width-margin, y+16, "MONTO", muted)
	y += rowH
	for i, it := range d.Items {
		if i%2 == 0 {
			c.fill(image.Rect(margin, y, width-margin, y+rowH), stripe)
		}
		c.text(margin+4, y+16, truncate(it.Description, kindCol-margin-16), ink)
		c.text(kindCol, y+16, it.Kind.String(), ink)
		c.textRight(width-margin-4, y+16, core.FormatCOP(it.Amount), ink)
		y += rowH
	}
	y += 6
	c.fill(image.Rect(margin, y, width-margin, y+2), b.Primary)
	y += 6

	c.scaledText(margin, y+8, "TOTAL", b.Primary, 2)
	total := core.FormatCOP(d.Total)
	c.scaledText(width-margin-measure(total)*2, y+8, total, b.Primary, 2)
	y += totalH

	for _, l := range extras {
		c.text(margin, y+13, l, muted)
		y += lineH
	}

	c.footer(b)

	var buf bytes.Buffer
	if err := pngWriter.Encode(&buf, c.img); err != nil {
		return nil, errors.Wrap(err, "encoding receipt")
	}
	return buf.Bytes(), nil
}

// TryRender renders the receipt, degrading any failure to "no receipt available".
func (r *Renderer) TryRender(d Data, b Branding) (img []byte, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn(fmt.Sprintf("no receipt available for %s: render panic: %v", d.ReceiptID, rec))
			img, ok = nil, false
		}
	}()

	img, err := r.Render(d, b)
	if err != nil {
		r.logger.Warn(fmt.Sprintf("no receipt available for %s: %v", d.ReceiptID, err), err)
		return nil, false
	}
	return img, true
}

// DecodeLogo decodes a PNG or JPEG logo.
func DecodeLogo(raw []byte) (image.Image, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty logo")
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	return img, errors.Wrap(err, "decoding logo")
}

func detailLines(d Data) []string {
	lines := []string{
		"Recibo: " + d.ReceiptID,
		"Fecha: " + d.Date.Format(dateLayout),
		"Estudiante: " + d.StudentName,
	}
	if d.GuardianName != "" {
		lines = append(lines, "Acudiente: "+d.GuardianName)
	}
	if d.GuardianPhone != "" {
		lines = append(lines, "Telefono: "+d.GuardianPhone)
	}
	return lines
}

func extraLines(d Data) []string {
	var lines []string
	if d.Method != "" {
		lines = append(lines, "Metodo de pago: "+d.Method)
	}
	if d.Concept != "" {
		lines = append(lines, "Concepto: "+d.Concept)
	}
	return lines
}

type canvas struct {
	img *image.RGBA
}

func (c *canvas) fill(r image.Rectangle, col color.Color) {
	xdraw.Draw(c.img, r, image.NewUniform(col), image.Point{}, xdraw.Src)
}

// header paints the primary -> secondary gradient, the logo & the club name.
func (c *canvas) header(b Branding) {
	for x := 0; x < width; x++ {
		c.fill(image.Rect(x, 0, x+1, headerH), lerp(b.Primary, b.Secondary, x, width-1))
	}

	textX := margin
	if b.Logo != nil {
		if lb := b.Logo.Bounds(); !lb.Empty() {
			w, h := logoSize, logoSize
			if lb.Dx() > lb.Dy() {
				h = logoSize * lb.Dy() / lb.Dx()
			} else {
				w = logoSize * lb.Dx() / lb.Dy()
			}
			top := (headerH - h) / 2
			dst := image.Rect(margin, top, margin+w, top+h)
			xdraw.ApproxBiLinear.Scale(c.img, dst, b.Logo, lb, xdraw.Over, nil)
			textX = margin + logoSize + 16
		}
	}

	c.scaledText(textX, 26, truncate(b.ClubName, (width-margin-textX)/2), white, 2)
	c.text(textX, 82, "RECIBO DE PAGO", white)
}

func (c *canvas) footer(b Branding) {
	bounds := c.img.Bounds()
	c.fill(image.Rect(0, bounds.Max.Y-footerH, width, bounds.Max.Y), b.Secondary)
	msg := "Gracias por su pago"
	if b.ClubName != "" {
		msg += " - " + b.ClubName
	}
	msg = truncate(msg, width-2*margin)
	c.text((width-measure(fold(msg)))/2, bounds.Max.Y-footerH/2+4, msg, white)
}

// text draws `s` with its baseline at `y`.
func (c *canvas) text(x, y int, s string, col color.Color) {
	d := font.Drawer{Dst: c.img, Src: image.NewUniform(col), Face: face, Dot: fixed.P(x, y)}
	d.DrawString(fold(s))
}

func (c *canvas) textRight(right, y int, s string, col color.Color) {
	s = fold(s)
	c.text(right-measure(s), y, s, col)
}

// scaledText draws `s` magnified `scale` times with its top at `top`.
func (c *canvas) scaledText(x, top int, s string, col color.Color, scale int) {
	s = fold(s)
	w := measure(s)
	if w == 0 {
		return
	}
	tmp := image.NewRGBA(image.Rect(0, 0, w, face.Height))
	d := font.Drawer{Dst: tmp, Src: image.NewUniform(col), Face: face, Dot: fixed.P(0, face.Ascent)}
	d.DrawString(s)
	dst := image.Rect(x, top, x+w*scale, top+face.Height*scale)
	xdraw.NearestNeighbor.Scale(c.img, dst, tmp, tmp.Bounds(), xdraw.Over, nil)
}

func measure(s string) int {
	return font.MeasureString(face, s).Ceil()
}

// truncate shortens `s` to fit `maxW` pixels.
func truncate(s string, maxW int) string {
	s = fold(s)
	maxChars := maxW / face.Advance
	if len(s) <= maxChars {
		return s
	}
	if maxChars <= 0 {
		return ""
	}
	if maxChars <= 3 {
		return s[:maxChars]
	}
	return s[:maxChars-3] + "..."
}

// fold drops accents & replaces what the bitmap font cannot draw.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	out := []rune(folded)
	for i, r := range out {
		if r < 0x20 || r > 0x7e {
			out[i] = '?'
		}
	}
	return string(out)
}

func lerp(from, to color.RGBA, i, n int) color.RGBA {
	if n <= 0 {
		return from
	}
	mix := func(a, b uint8) uint8 {
		return uint8((int(a)*(n-i) + int(b)*i) / n)
	}
	return color.RGBA{R: mix(from.R, to.R), G: mix(from.G, to.G), B: mix(from.B, to.B), A: 0xff}
}
