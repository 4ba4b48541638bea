package receipt

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/William-Pardo/tudojang-sub002/core"
	"github.com/William-Pardo/tudojang-sub002/core/billing"
	"github.com/William-Pardo/tudojang-sub002/core/student"
)

var (
	DefaultPrimary   = color.RGBA{R: 0x1f, G: 0x3a, B: 0x93, A: 0xff}
	DefaultSecondary = color.RGBA{R: 0xc6, G: 0x28, B: 0x28, A: 0xff}
)

type (
	Item struct {
		Description string          `json:"descripcion"`
		Kind        billing.Kind    `json:"tipo"`
		Amount      decimal.Decimal `json:"monto"`
	}

	// Data is everything a receipt shows; it is the sole input of rendering.
	Data struct {
		ReceiptID     string          `json:"reciboId"`
		Date          time.Time       `json:"fecha"`
		StudentName   string          `json:"estudiante"`
		GuardianName  string          `json:"acudiente,omitempty"`
		GuardianPhone string          `json:"telefonoAcudiente,omitempty"`
		Items         []Item          `json:"items"`
		Total         decimal.Decimal `json:"total"`
		Method        string          `json:"metodo"`
		Concept       string          `json:"concepto"`
	}

	Branding struct {
		ClubName  string
		Primary   color.RGBA
		Secondary color.RGBA
		Logo      image.Image // optional
	}
)

// FromPayment rebuilds the receipt of a committed payment.
func FromPayment(p billing.Payment, s student.Student) Data {
	items := make([]Item, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, Item{Description: it.Description, Kind: it.Kind, Amount: it.Amount})
	}
	return Data{
		ReceiptID:     p.ReceiptID,
		Date:          p.CreatedAt.UTC(),
		StudentName:   s.Name,
		GuardianName:  s.GuardianName,
		GuardianPhone: s.GuardianPhone,
		Items:         items,
		Total:         p.Amount,
		Method:        p.Method,
		Concept:       p.Concept,
	}
}

// Filename is the name the receipt image is downloaded as.
func Filename(d Data) string {
	return fmt.Sprintf("Recibo-%s-%s.png", d.ReceiptID, core.Underscored(d.StudentName))
}

// ParseColor parses a #RRGGBB (or #RGB) colour, falling back to `def`.
func ParseColor(hex string, def color.RGBA) color.RGBA {
	hex = strings.TrimPrefix(core.CleanString(hex), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return def
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return def
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}
