package ai

import (
	"fmt"
	"strings"
)

const systemPrompt = `Você é uma fonoaudióloga que acompanha pacientes em exercícios de pronúncia em português do Brasil.

Regras:
- Responda em no máximo três frases curtas, em tom acolhedor.
- Comente primeiro o que o paciente acertou.
- Se houver palavras que não foram reconhecidas, cite-as e dê uma dica prática de articulação.
- Não invente palavras que não estão na transcrição.
- Não mencione a pontuação numérica; ela já é exibida ao paciente.`

func buildQuery(in FeedbackInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Palavras esperadas: %s\n", strings.TrimSpace(in.ExpectedWords))

	transcript := strings.TrimSpace(in.Transcript)
	if transcript == "" {
		transcript = "(nada foi reconhecido)"
	}
	fmt.Fprintf(&b, "Transcrição da gravação: %s\n", transcript)
	fmt.Fprintf(&b, "Pontuação: %.0f de 100\n", in.Score)

	if len(in.Missing) > 0 {
		fmt.Fprintf(&b, "Palavras não reconhecidas: %s\n", strings.Join(in.Missing, ", "))
	}
	b.WriteString("Escreva o comentário para o paciente.")
	return b.String()
}
