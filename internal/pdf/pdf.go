// Package pdf renders the prescription document. Layout is best-effort;
// the contract is that every field of the prescription view appears, with
// explicit placeholders where optional data is missing.
package pdf

import (
	"fmt"
	"strconv"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/diewo77/go-prescriptions/internal/models"
)

const (
	placeholderNone      = "-"
	placeholderSpecialty = "No especificada"
	placeholderBirthDate = "No registrada"
	timeLayout           = "2006-01-02 15:04"
	dateLayout           = "2006-01-02"
)

// Filename returns the suggested download name for a prescription document.
func Filename(code string) string {
	return "prescripcion-" + code + ".pdf"
}

// Render produces the PDF bytes for a fully loaded prescription (items,
// author+user, patient+user preloaded).
func Render(p *models.Prescription) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		Build()
	m := maroto.New(cfg)

	// Header: title, code, issue date, status
	m.AddRows(row.New(12).Add(
		text.NewCol(8, "Prescripción médica", props.Text{Size: 18, Style: fontstyle.Bold}),
		text.NewCol(4, "Código: "+p.Code, props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
	))
	status := "PENDIENTE"
	if p.Status == models.StatusConsumed {
		status = "CONSUMIDA"
	}
	m.AddRows(row.New(6).Add(
		text.NewCol(8, "Fecha de emisión: "+p.CreatedAt.Format(timeLayout), props.Text{Size: 9}),
		text.NewCol(4, "Estado: "+status, props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
	))
	if p.ConsumedAt != nil {
		m.AddRows(row.New(6).Add(
			text.NewCol(12, "Fecha de consumo: "+p.ConsumedAt.Format(timeLayout), props.Text{Size: 9}),
		))
	}
	m.AddRows(row.New(4).Add(line.NewCol(12)))

	// Doctor block
	doctorName, doctorEmail := placeholderNone, placeholderNone
	specialty := placeholderSpecialty
	if p.Author != nil {
		if p.Author.User != nil {
			doctorName = p.Author.User.Name
			doctorEmail = p.Author.User.Email
		}
		if p.Author.Specialty != "" {
			specialty = p.Author.Specialty
		}
	}
	m.AddRows(row.New(7).Add(text.NewCol(12, "Doctor", props.Text{Size: 11, Style: fontstyle.Bold})))
	m.AddRows(
		labelRow("Nombre", doctorName),
		labelRow("Especialidad", specialty),
		labelRow("Email", doctorEmail),
	)

	// Patient block
	patientName, patientEmail := placeholderNone, placeholderNone
	birth := placeholderBirthDate
	if p.Patient != nil {
		if p.Patient.User != nil {
			patientName = p.Patient.User.Name
			patientEmail = p.Patient.User.Email
		}
		if p.Patient.BirthDate != nil {
			birth = p.Patient.BirthDate.Format(dateLayout)
		}
	}
	m.AddRows(row.New(7).Add(text.NewCol(12, "Paciente", props.Text{Size: 11, Style: fontstyle.Bold})))
	m.AddRows(
		labelRow("Nombre", patientName),
		labelRow("Email", patientEmail),
		labelRow("Fecha de nacimiento", birth),
	)
	m.AddRows(row.New(4).Add(line.NewCol(12)))

	// Items table
	m.AddRows(row.New(8).Add(text.NewCol(12, "Medicamentos prescritos", props.Text{Size: 11, Style: fontstyle.Bold})))
	m.AddRows(row.New(6).Add(
		text.NewCol(4, "Medicamento", props.Text{Size: 9, Style: fontstyle.Bold}),
		text.NewCol(3, "Dosis", props.Text{Size: 9, Style: fontstyle.Bold}),
		text.NewCol(1, "Cant.", props.Text{Size: 9, Style: fontstyle.Bold}),
		text.NewCol(4, "Instrucciones", props.Text{Size: 9, Style: fontstyle.Bold}),
	))
	for _, it := range p.Items {
		dosage := it.Dosage
		if dosage == "" {
			dosage = placeholderNone
		}
		qty := placeholderNone
		if it.Quantity != nil {
			qty = strconv.Itoa(*it.Quantity)
		}
		instr := it.Instructions
		if instr == "" {
			instr = placeholderNone
		}
		m.AddRows(row.New(6).Add(
			text.NewCol(4, it.Name, props.Text{Size: 9}),
			text.NewCol(3, dosage, props.Text{Size: 9}),
			text.NewCol(1, qty, props.Text{Size: 9}),
			text.NewCol(4, instr, props.Text{Size: 9}),
		))
	}

	// Notes
	if p.Notes != "" {
		m.AddRows(row.New(4).Add(line.NewCol(12)))
		m.AddRows(row.New(8).Add(text.NewCol(12, "Notas / Diagnóstico", props.Text{Size: 11, Style: fontstyle.Bold})))
		m.AddRows(row.New(12).Add(text.NewCol(12, p.Notes, props.Text{Size: 9})))
	}

	m.AddRows(row.New(8).Add(text.NewCol(12,
		"Este documento es una prescripción médica. Consérvelo para el suministro de medicamentos.",
		props.Text{Size: 7, Align: align.Center})))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

func labelRow(label, value string) core.Row {
	return row.New(5).Add(
		text.NewCol(3, label+":", props.Text{Size: 9, Style: fontstyle.Bold}),
		text.NewCol(9, value, props.Text{Size: 9}),
	)
}
