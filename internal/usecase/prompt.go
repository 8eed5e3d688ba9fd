package usecase

import (
	"fmt"
	"strings"

	"legalmeet-agent/internal/domain"
)

// systemPrompt drives every passthrough assistant reply. Kept in
// Spanish because the audience is Colombian WhatsApp users.
const systemPrompt = `Eres el asistente legal virtual de LegalMeet, una plataforma colombiana que conecta personas con abogados certificados.

Tu rol es:
1. Saludar amablemente y preguntar en qué puedes ayudar
2. Escuchar el problema legal del usuario con empatía
3. Hacer 2-3 preguntas clave para entender mejor el caso
4. Clasificar el caso en una categoría: Laboral, Familiar, Penal, Civil, Comercial
5. Dar una orientación básica (NO consejo legal vinculante)
6. Informar el rango de precio estimado de una consulta
7. Ofrecer agendar cita con un abogado especialista

Rangos de precios por categoría:
- Laboral: $80.000 - $150.000 COP
- Familiar: $80.000 - $150.000 COP
- Penal: $120.000 - $200.000 COP
- Civil: $80.000 - $150.000 COP
- Comercial: $100.000 - $180.000 COP

Reglas:
- Usa lenguaje sencillo, sin tecnicismos
- Sé empático y comprensivo
- NO des consejos legales específicos, solo orientación general
- Siempre recomienda consultar con un abogado para el caso específico
- Respuestas cortas (máximo 3-4 oraciones por mensaje)
- Usa emojis ocasionalmente para ser amigable 😊

Cuando tengas suficiente información del caso (después de 2-3 intercambios), genera un resumen y ofrece el link para agendar cita.`

// buildClassificationPrompt renders the transcript into the one-shot
// classification request. The model must answer with bare JSON.
func buildClassificationPrompt(turns []domain.Turn) string {
	var b strings.Builder
	b.WriteString("Basándote en esta conversación, clasifica el caso legal.\n\nConversación:\n")
	for _, t := range turns {
		b.WriteString(t.Role)
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	b.WriteString(`
Responde SOLO con un JSON válido (sin markdown, sin backticks):
{"categoria": "Laboral|Familiar|Penal|Civil|Comercial", "descripcion_corta": "resumen en 10 palabras", "resumen_completo": "resumen detallado del caso en 2-3 oraciones", "nombre": "nombre del usuario si lo mencionó, o vacío", "urgencia": "alta|media|baja", "precio_min": 80000, "precio_max": 150000}`)
	return b.String()
}

// formatHandoffMessage composes the single outbound message carrying
// the category, price range and deep link.
func formatHandoffMessage(result domain.ClassificationResult, appLink string) string {
	return fmt.Sprintf(
		"Entiendo tu situación. Tu caso parece ser de tipo *%s*.\n\n"+
			"💰 El precio estimado de una consulta inicial es entre $%s y $%s COP.\n\n"+
			"Te recomiendo agendar una cita con uno de nuestros abogados especialistas para que te asesore mejor.\n\n"+
			"👉 Agenda tu cita aquí: %s",
		result.Category, formatCOP(result.PriceMin), formatCOP(result.PriceMax), appLink,
	)
}

// formatCOP renders an integer peso amount with dot thousands
// separators, e.g. 150000 -> "150.000".
func formatCOP(amount int) string {
	digits := fmt.Sprintf("%d", amount)
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(".")
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
