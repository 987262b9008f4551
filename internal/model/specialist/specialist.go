package specialist

// Specialist is a speech therapist the patient can practice with.
type Specialist struct {
	ID        string `json:"id"`
	Name      string `json:"nome"`
	Specialty string `json:"especialidade"`
	Bio       string `json:"bio,omitempty"`
}

// Seed provides the specialists served by the development backend.
func Seed() []Specialist {
	return []Specialist{
		{
			ID:        "ana-souza",
			Name:      "Dra. Ana Souza",
			Specialty: "Fonoaudiologia infantil",
			Bio:       "Trabalha com trocas fonéticas e atraso de fala em crianças de 3 a 10 anos.",
		},
		{
			ID:        "carlos-lima",
			Name:      "Dr. Carlos Lima",
			Specialty: "Disfluência e gagueira",
			Bio:       "Acompanha adolescentes e adultos em técnicas de fluência e respiração.",
		},
		{
			ID:        "beatriz-rocha",
			Name:      "Dra. Beatriz Rocha",
			Specialty: "Reabilitação pós-AVC",
			Bio:       "Foco em articulação e inteligibilidade após lesões neurológicas.",
		},
	}
}
