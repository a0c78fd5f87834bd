// Package slip renders the printable OPD slip handed to the patient.
package slip

import (
	"bytes"
	"errors"
	"html/template"

	"opd-desk/internal/models"
)

// MsgNotFound is shown when the requested OPD id is not in the mirror.
const MsgNotFound = "Record not found for printing"

var ErrNotFound = errors.New(MsgNotFound)

// Letterhead is printed at the top of every slip.
type Letterhead struct {
	Name    string
	Address string
}

const page = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Visit.OPDID}}</title></head>
<body style="font-family:sans-serif; padding:20px; text-align:center;">
<h3>{{.Head.Name}}</h3>
<p>{{.Head.Address}}</p>
<hr>
<h2 style="margin:5px;">{{.Visit.OPDID}}</h2>
<p><strong>PID:</strong> {{.Visit.PID}}</p>
<p><strong>Name:</strong> {{.Visit.PatientName}}</p>
<p><strong>Age/Sex:</strong> {{.Visit.Age}} / {{.Visit.Gender}}</p>
<p><strong>Date:</strong> {{.Visit.Date}}</p>
<p><strong>Assigned Doc:</strong> {{.Visit.Doctor}}</p>
<p><strong>Fee:</strong> {{.Visit.Fee}}</p>
<hr>
<p style="font-size:12px">Please show this slip to the Optometrist.</p>
<script>window.print();</script>
</body>
</html>
`

var tmpl = template.Must(template.New("slip").Parse(page))

// VisitLookup finds a visit by its OPD id.
type VisitLookup interface {
	FindVisit(opdID string) (models.Visit, bool)
}

type Renderer struct {
	head   Letterhead
	visits VisitLookup
}

func NewRenderer(head Letterhead, visits VisitLookup) *Renderer {
	return &Renderer{head: head, visits: visits}
}

// Render returns the slip for opdID, or ErrNotFound.
func (r *Renderer) Render(opdID string) ([]byte, error) {
	v, ok := r.visits.FindVisit(opdID)
	if !ok {
		return nil, ErrNotFound
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct {
		Head  Letterhead
		Visit models.Visit
	}{r.head, v}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
