package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"homecare-visit-bot/pkg"
)

const (
	reportTitle        = "📋 *Relatório da Visita*"
	missingPlaceholder = "não informado"
	emptyReportLine    = "Nenhuma informação clínica foi identificada nos dados enviados."
)

// Layouts the extraction service is known to emit for data_processamento.
var processedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// FormatReport renders an extracted report as a WhatsApp message.  Sections
// always appear in the same order and absent fields are left out, so the
// same report always yields the same text.
func FormatReport(r *pkg.Report) string {
	if r == nil {
		r = &pkg.Report{}
	}
	var sections []string

	if s := strings.TrimSpace(r.PatientState); s != "" {
		sections = append(sections, "🩺 *Estado do paciente:* "+s)
	}
	if v := formatVitals(r.Vitals); v != "" {
		sections = append(sections, v)
	}
	if l := formatList("💊 *Medicamentos em uso*", r.MedicationsInUse); l != "" {
		sections = append(sections, l)
	}
	if m := formatAdministered(r.MedicationsAdministered); m != "" {
		sections = append(sections, m)
	}
	if l := formatList("🧰 *Materiais utilizados*", r.MaterialsUsed); l != "" {
		sections = append(sections, l)
	}
	if l := formatList("🩹 *Intervenções realizadas*", r.Interventions); l != "" {
		sections = append(sections, l)
	}
	if l := formatList("📌 *Recomendações*", r.Recommendations); l != "" {
		sections = append(sections, l)
	}
	if s := strings.TrimSpace(r.Observations); s != "" {
		sections = append(sections, "📝 *Observações*\n"+s)
	}

	if len(sections) == 0 {
		sections = append(sections, emptyReportLine)
	}
	if ts := formatProcessedAt(r.ProcessedAt); ts != "" {
		sections = append(sections, "_Processado em "+ts+"_")
	}
	return reportTitle + "\n\n" + strings.Join(sections, "\n\n")
}

func formatVitals(v *pkg.VitalSigns) string {
	if v.Empty() {
		return ""
	}
	lines := []string{"❤️ *Sinais vitais*"}
	switch {
	case v.BPSystolic != nil && v.BPDiastolic != nil:
		lines = append(lines, fmt.Sprintf("• Pressão arterial: %d/%d mmHg", *v.BPSystolic, *v.BPDiastolic))
	case v.BPSystolic != nil:
		lines = append(lines, fmt.Sprintf("• Pressão sistólica: %d mmHg", *v.BPSystolic))
	case v.BPDiastolic != nil:
		lines = append(lines, fmt.Sprintf("• Pressão diastólica: %d mmHg", *v.BPDiastolic))
	}
	if v.HR != nil {
		lines = append(lines, fmt.Sprintf("• Frequência cardíaca: %d bpm", *v.HR))
	}
	if v.TempC != nil {
		// pt-BR decimal comma
		temp := strings.Replace(strconv.FormatFloat(*v.TempC, 'f', 1, 64), ".", ",", 1)
		lines = append(lines, "• Temperatura: "+temp+" °C")
	}
	if v.SpO2 != nil {
		lines = append(lines, fmt.Sprintf("• Saturação de O₂: %d%%", *v.SpO2))
	}
	return strings.Join(lines, "\n")
}

func formatList(title string, items []string) string {
	lines := []string{title}
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			lines = append(lines, "• "+item)
		}
	}
	if len(lines) == 1 {
		return ""
	}
	return strings.Join(lines, "\n")
}

func formatAdministered(meds []pkg.MedicationAdministered) string {
	lines := []string{"💉 *Medicamentos administrados*"}
	for _, m := range meds {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			continue
		}
		lines = append(lines,
			"• "+name,
			"   Dose: "+orPlaceholder(m.Dose),
			"   Via: "+orPlaceholder(m.Route),
			"   Horário: "+orPlaceholder(m.Time),
		)
	}
	if len(lines) == 1 {
		return ""
	}
	return strings.Join(lines, "\n")
}

func orPlaceholder(s string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return missingPlaceholder
}

// formatProcessedAt renders the processing time as dd/mm/yyyy às HH:MM in
// the clock of the timestamp itself.  Unparseable values are shown verbatim.
func formatProcessedAt(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range processedAtLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("02/01/2006 às 15:04")
		}
	}
	return raw
}
