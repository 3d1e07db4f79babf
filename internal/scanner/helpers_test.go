package scanner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/jobscan/internal/dom"
	"github.com/GriffinCanCode/jobscan/internal/types"
)

const testURL = "https://careers.example.com/jobs/42/apply?step=1"

func load(t *testing.T, body string) *dom.Document {
	t.Helper()
	doc, err := dom.LoadString("<html><head></head><body>"+body+"</body></html>", testURL)
	require.NoError(t, err)
	return doc
}

func loadPage(t *testing.T, page string) *dom.Document {
	t.Helper()
	doc, err := dom.LoadString(page, testURL)
	require.NoError(t, err)
	return doc
}

func fieldByName(t *testing.T, fields []types.FieldDescriptor, name string) types.FieldDescriptor {
	t.Helper()
	for _, f := range fields {
		if f.Name == name {
			return f
		}
	}
	require.Failf(t, "field not found", "no field named %q in %+v", name, fields)
	return types.FieldDescriptor{}
}
