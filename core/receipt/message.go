package receipt

import (
	"fmt"
	"strings"

	"github.com/William-Pardo/tudojang-sub002/core"
)

const dateLayout = "2006-01-02 15:04"

// Message formats the text summary sent along with the receipt.
func Message(d Data, clubName string) string {
	var b strings.Builder
	if clubName != "" {
		fmt.Fprintf(&b, "*%s*\n", clubName)
	}
	fmt.Fprintf(&b, "Recibo de pago %s\n", d.ReceiptID)
	fmt.Fprintf(&b, "Fecha: %s\n", d.Date.Format(dateLayout))
	fmt.Fprintf(&b, "Estudiante: %s\n", d.StudentName)
	if d.GuardianName != "" {
		fmt.Fprintf(&b, "Acudiente: %s\n", d.GuardianName)
	}
	b.WriteString("\n")
	for _, it := range d.Items {
		fmt.Fprintf(&b, "- %s (%s): %s\n", it.Description, it.Kind, core.FormatCOP(it.Amount))
	}
	fmt.Fprintf(&b, "\n*Total: %s*\n", core.FormatCOP(d.Total))
	if d.Method != "" {
		fmt.Fprintf(&b, "Método: %s\n", d.Method)
	}
	if d.Concept != "" {
		fmt.Fprintf(&b, "Concepto: %s\n", d.Concept)
	}
	b.WriteString("\n¡Gracias por su pago!")
	return b.String()
}
