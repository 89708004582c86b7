package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title: "Applicants",
		Columns: []Column{
			{Key: "name", Title: "Name", Width: 2},
			{Key: "email", Title: "Email", Width: 3},
			{Key: "status", Title: "Status"},
		},
		Rows: []map[string]string{
			{"name": "Ada Lovelace", "email": "ada@example.com", "status": "new"},
			{"name": "Grace, Hopper", "email": "grace@example.com"},
		},
	}
}

func TestCSVRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV{}.Render(&buf, sampleDataset()))

	assert.Equal(t, "Name,Email,Status\nAda Lovelace,ada@example.com,new\n\"Grace, Hopper\",grace@example.com,\n", buf.String())
}

func TestPDFRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PDF{}.Render(&buf, sampleDataset()))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestRenderRequiresColumns(t *testing.T) {
	assert.ErrorIs(t, CSV{}.Render(&bytes.Buffer{}, Dataset{}), ErrNoColumns)
	assert.ErrorIs(t, PDF{}.Render(&bytes.Buffer{}, Dataset{}), ErrNoColumns)
}

func TestForFormat(t *testing.T) {
	r, ok := ForFormat(FormatPDF)
	require.True(t, ok)
	assert.Equal(t, "application/pdf", r.ContentType())

	_, ok = ForFormat("xlsx")
	assert.False(t, ok)
}
