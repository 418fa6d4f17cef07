package pkg

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// MessageKind describes what an inbound message carries.  Only text messages
// have no media payload.
type MessageKind string

const (
	KindText     MessageKind = "text"
	KindAudio    MessageKind = "audio"
	KindImage    MessageKind = "image"
	KindDocument MessageKind = "document"
)

// Event is one inbound message as delivered by the messaging transport.  The
// sender identity keys the conversation session; replies go to ChatID.
type Event struct {
	SenderID   string      `json:"sender_id"`
	ChatID     string      `json:"chat_id"`
	MessageID  string      `json:"message_id"`
	Kind       MessageKind `json:"kind"`
	Body       string      `json:"body,omitempty"`
	Media      []byte      `json:"-"`
	MimeType   string      `json:"mime_type,omitempty"`
	FileName   string      `json:"file_name,omitempty"`
	ReceivedAt time.Time   `json:"received_at"`
}

// HasMedia reports whether the event carries a binary payload.
func (e Event) HasMedia() bool {
	return e.Kind != KindText && len(e.Media) > 0
}

// ArtifactCategory selects the storage area of a captured artifact.
type ArtifactCategory string

const (
	CategoryAudio    ArtifactCategory = "audio"
	CategoryImage    ArtifactCategory = "image"
	CategoryDocument ArtifactCategory = "document"
	CategoryText     ArtifactCategory = "text"
)

// ArtifactRef points at one piece of stored visit evidence.  ConvertedPath is
// set only when a transcoded copy of an audio payload exists next to the raw
// file.
type ArtifactRef struct {
	Category      ArtifactCategory `json:"category"`
	Path          string           `json:"path"`
	ConvertedPath string           `json:"converted_path,omitempty"`
	MessageID     string           `json:"message_id"`
	ReceivedAt    time.Time        `json:"received_at"`
}

// VitalSigns holds the measurements mentioned during a visit.  Nil means the
// value was not mentioned.
type VitalSigns struct {
	BPSystolic  *int     `json:"bp_systolic"`
	BPDiastolic *int     `json:"bp_diastolic"`
	HR          *int     `json:"hr"`
	TempC       *float64 `json:"temp_c"`
	SpO2        *int     `json:"spo2"`
}

// UnmarshalJSON accepts numbers written as JSON numbers or numeric strings
// ("82", "36,5"), and whole floats such as 82.0 for the integer fields.
// Anything else is an error.
func (v *VitalSigns) UnmarshalJSON(data []byte) error {
	var raw struct {
		BPSystolic  json.RawMessage `json:"bp_systolic"`
		BPDiastolic json.RawMessage `json:"bp_diastolic"`
		HR          json.RawMessage `json:"hr"`
		TempC       json.RawMessage `json:"temp_c"`
		SpO2        json.RawMessage `json:"spo2"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out VitalSigns
	var err error
	if out.BPSystolic, err = wholeNumber("bp_systolic", raw.BPSystolic); err != nil {
		return err
	}
	if out.BPDiastolic, err = wholeNumber("bp_diastolic", raw.BPDiastolic); err != nil {
		return err
	}
	if out.HR, err = wholeNumber("hr", raw.HR); err != nil {
		return err
	}
	if out.TempC, err = number("temp_c", raw.TempC); err != nil {
		return err
	}
	if out.SpO2, err = wholeNumber("spo2", raw.SpO2); err != nil {
		return err
	}
	*v = out
	return nil
}

func number(field string, raw json.RawMessage) (*float64, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return nil, nil
	}
	if text[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		text = strings.Replace(strings.TrimSpace(text), ",", ".", 1)
		if text == "" {
			return nil, nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%s: not a number: %s", field, raw)
	}
	return &f, nil
}

func wholeNumber(field string, raw json.RawMessage) (*int, error) {
	f, err := number(field, raw)
	if err != nil || f == nil {
		return nil, err
	}
	if *f != math.Trunc(*f) {
		return nil, fmt.Errorf("%s: %v is not a whole number", field, *f)
	}
	i := int(*f)
	return &i, nil
}

// Empty reports whether no vital sign was extracted.
func (v *VitalSigns) Empty() bool {
	return v == nil || (v.BPSystolic == nil && v.BPDiastolic == nil && v.HR == nil && v.TempC == nil && v.SpO2 == nil)
}

// MedicationAdministered is a medication given during the visit.
type MedicationAdministered struct {
	Name  string `json:"name,omitempty"`
	Dose  string `json:"dose,omitempty"`
	Route string `json:"route,omitempty"`
	Time  string `json:"time,omitempty"`
}

// Report is the structured home-care visit record returned by the extraction
// service.  Every field is optional; an empty field means "not mentioned".
type Report struct {
	PatientState            string                   `json:"patient_state,omitempty"`
	Vitals                  *VitalSigns              `json:"vitals,omitempty"`
	MedicationsInUse        []string                 `json:"medications_in_use,omitempty"`
	MedicationsAdministered []MedicationAdministered `json:"medications_administered,omitempty"`
	MaterialsUsed           []string                 `json:"materials_used,omitempty"`
	Interventions           []string                 `json:"interventions,omitempty"`
	Recommendations         []string                 `json:"recommendations,omitempty"`
	Observations            string                   `json:"observations,omitempty"`
	ProcessedAt             string                   `json:"data_processamento,omitempty"`
}

// ExtractionResponse is the envelope returned by the extraction gateway.
type ExtractionResponse struct {
	Data      *Report `json:"dados"`
	RawText   string  `json:"texto_bruto,omitempty"`
	Success   bool    `json:"sucesso"`
	Error     string  `json:"erro,omitempty"`
	SavedPath string  `json:"caminho_arquivo_salvo,omitempty"`
}

// ArchivedReport is a finished hand-off as kept in the report archive.
type ArchivedReport struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	NotesCount int       `json:"notes_count"`
	FilesCount int       `json:"files_count"`
	Report     *Report   `json:"report"`
	CreatedAt  time.Time `json:"created_at"`
}
