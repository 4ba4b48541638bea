package receipt

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/William-Pardo/tudojang-sub002/core/billing"
	"github.com/William-Pardo/tudojang-sub002/core/student"
)

// warnings records the warnings logged while rendering.
type warnings struct {
	mu   sync.Mutex
	msgs []string
}

func (w *warnings) Debug(string, ...interface{}) {}
func (w *warnings) Info(string, ...interface{})  {}
func (w *warnings) Error(string, ...interface{}) {}
func (w *warnings) Fatal(string, ...interface{}) {}

func (w *warnings) Warn(msg string, _ ...interface{}) {
	w.mu.Lock()
	w.msgs = append(w.msgs, msg)
	w.mu.Unlock()
}

func sampleData() Data {
	return Data{
		ReceiptID:     "REC-2024-0042",
		Date:          time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
		StudentName:   "Ana Gómez",
		GuardianName:  "Marta Gómez",
		GuardianPhone: "3001234567",
		Items: []Item{
			{Description: "Dobok", Kind: billing.KindStore, Amount: decimal.NewFromInt(140000)},
			{Description: "Mensualidad", Kind: billing.KindSubscription, Amount: decimal.NewFromInt(180000)},
		},
		Total:   decimal.NewFromInt(320000),
		Method:  billing.MethodCash,
		Concept: "Pago marzo",
	}
}

func TestFromPayment(t *testing.T) {
	p := billing.Payment{
		ReceiptID: "REC-2024-0042",
		Items: []billing.PaymentItem{
			{ChargeID: "r1", Kind: billing.KindStore, Description: "Dobok", Amount: decimal.NewFromInt(140000)},
		},
		Amount:    decimal.NewFromInt(150000),
		Method:    billing.MethodCard,
		Concept:   "Uniforme",
		CreatedAt: time.Date(2024, 3, 15, 5, 30, 0, 0, time.FixedZone("COT", -5*3600)),
	}
	s := student.Student{Name: "Ana Gómez", GuardianName: "Marta", GuardianPhone: "300"}

	d := FromPayment(p, s)
	assert.Equal(t, "REC-2024-0042", d.ReceiptID)
	assert.Equal(t, time.UTC, d.Date.Location())
	assert.Equal(t, 10, d.Date.Hour())
	assert.Equal(t, "Ana Gómez", d.StudentName)
	assert.Equal(t, "Marta", d.GuardianName)
	assert.True(t, d.Total.Equal(p.Amount), "the total is the amount received")
	if assert.Len(t, d.Items, 1) {
		assert.Equal(t, Item{Description: "Dobok", Kind: billing.KindStore, Amount: decimal.NewFromInt(140000)}, d.Items[0])
	}
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "Recibo-REC-2024-0042-Ana_Gómez.png", Filename(sampleData()))
	assert.Equal(t, "Recibo-REC-2024-0001-.png", Filename(Data{ReceiptID: "REC-2024-0001"}))
}

func TestMessage(t *testing.T) {
	want := `*Club Demo*
Recibo de pago REC-2024-0042
Fecha: 2024-03-15 10:30
Estudiante: Ana Gómez
Acudiente: Marta Gómez

- Dobok (Tienda): $140.000
- Mensualidad (Mensualidad): $180.000

*Total: $320.000*
Método: Efectivo
Concepto: Pago marzo

¡Gracias por su pago!`

	got := Message(sampleData(), "Club Demo")
	if got != want {
		diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(want),
			B:        difflib.SplitLines(got),
			FromFile: "want",
			ToFile:   "got",
			Context:  1,
		})
		t.Errorf("Message() mismatch:\n%s", diff)
	}

	minimal := Message(Data{ReceiptID: "REC-2024-0001", StudentName: "Luis", Total: decimal.NewFromInt(1500)}, "")
	assert.NotContains(t, minimal, "Acudiente")
	assert.NotContains(t, minimal, "Método")
	assert.Contains(t, minimal, "*Total: $1.500*")
}

func decode(t *testing.T, b []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	return img
}

func TestRenderer_Render(t *testing.T) {
	r := NewRenderer(new(warnings))
	brand := Branding{ClubName: "Club Demo", Primary: color.RGBA{R: 0x10, G: 0x20, B: 0x30, A: 0xff}, Secondary: color.RGBA{R: 0xa0, G: 0xb0, B: 0xc0, A: 0xff}}

	first, err := r.Render(sampleData(), brand)
	require.NoError(t, err)
	second, err := r.Render(sampleData(), brand)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first, second), "rendering is deterministic")

	img := decode(t, first)
	b := img.Bounds()
	assert.Equal(t, width, b.Dx())
	assert.Equal(t, color.RGBAModel.Convert(brand.Primary), color.RGBAModel.Convert(img.At(0, 0)))
	assert.Equal(t, color.RGBAModel.Convert(brand.Secondary), color.RGBAModel.Convert(img.At(width-1, 0)))
	assert.Equal(t, color.RGBAModel.Convert(brand.Secondary), color.RGBAModel.Convert(img.At(0, b.Max.Y-1)), "footer")

	// one more line, one more row
	longer := sampleData()
	longer.Items = append(longer.Items, Item{Description: "Torneo Regional", Kind: billing.KindEvent, Amount: decimal.NewFromInt(60000)})
	out, err := r.Render(longer, brand)
	require.NoError(t, err)
	assert.Equal(t, b.Dy()+rowH, decode(t, out).Bounds().Dy())

	// default colours when the tenant has none
	out, err = r.Render(sampleData(), Branding{})
	require.NoError(t, err)
	assert.Equal(t, color.RGBAModel.Convert(DefaultPrimary), color.RGBAModel.Convert(decode(t, out).At(0, 0)))
}

func TestRenderer_Render_concurrent(t *testing.T) {
	r := NewRenderer(new(warnings))
	want, err := r.Render(sampleData(), Branding{ClubName: "Club Demo"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]byte, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = r.Render(sampleData(), Branding{ClubName: "Club Demo"})
		}(i)
	}
	wg.Wait()
	for i, got := range results {
		assert.True(t, bytes.Equal(want, got), "render #%d differs", i)
	}
}

func TestRenderer_withLogo(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		for y := 0; y < 20; y++ {
			src.Set(x, y, color.RGBA{G: 0xff, A: 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	logo, err := DecodeLogo(buf.Bytes())
	require.NoError(t, err)
	_, err = DecodeLogo(nil)
	assert.Error(t, err)
	_, err = DecodeLogo([]byte("not an image"))
	assert.Error(t, err)

	r := NewRenderer(new(warnings))
	out, err := r.Render(sampleData(), Branding{ClubName: "Club Demo", Logo: logo})
	require.NoError(t, err)
	img := decode(t, out)
	// logo is scaled to 80x40, vertically centered in the header
	assert.Equal(t, color.RGBA{G: 0xff, A: 0xff}, color.RGBAModel.Convert(img.At(margin+40, headerH/2)))
}

func TestRenderer_TryRender(t *testing.T) {
	logger := new(warnings)
	r := NewRenderer(logger)

	img, ok := r.TryRender(Data{}, Branding{})
	assert.False(t, ok)
	assert.Nil(t, img)
	if msgs := logger.msgs; assert.Len(t, msgs, 1) {
		assert.Contains(t, msgs[0], "no receipt available")
	}

	img, ok = r.TryRender(sampleData(), Branding{})
	assert.True(t, ok)
	assert.NotEmpty(t, img)
}

func TestParseColor(t *testing.T) {
	def := color.RGBA{A: 0xff}
	tests := []struct {
		hex  string
		want color.RGBA
	}{
		{hex: "#1f3a93", want: color.RGBA{R: 0x1f, G: 0x3a, B: 0x93, A: 0xff}},
		{hex: " C62828 ", want: color.RGBA{R: 0xc6, G: 0x28, B: 0x28, A: 0xff}},
		{hex: "#fff", want: color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}},
		{hex: "", want: def},
		{hex: "#12345", want: def},
		{hex: "#zzzzzz", want: def},
	}
	for _, tt := range tests {
		t.Run(tt.hex, func(t *testing.T) {
			if got := ParseColor(tt.hex, def); got != tt.want {
				t.Errorf("ParseColor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFold(t *testing.T) {
	assert.Equal(t, "Ana Gomez - Matricula", fold("Ana Gómez - Matrícula"))
	assert.Equal(t, "?Gracias!", fold("¡Gracias!"))
	assert.Equal(t, "Dobok ...", truncate("Dobok talla 4", 9*face.Advance))
	assert.Equal(t, "Dobok", truncate("Dobok", 9*face.Advance))
}
