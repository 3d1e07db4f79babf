package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/jobscan/internal/types"
)

func TestLabelResolution(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
		want  string
	}{
		{
			name:  "name fallback is titleized",
			body:  `<form><input name="first_name"></form>`,
			field: "first_name",
			want:  "First Name",
		},
		{
			name:  "label for",
			body:  `<label for="e">Email Address</label><input id="e">`,
			field: "e",
			want:  "Email Address",
		},
		{
			name:  "required markers stripped",
			body:  `<label for="n">Full name *:</label><input id="n" name="n">`,
			field: "n",
			want:  "Full name",
		},
		{
			name:  "wrapping label excludes control",
			body:  `<label>Phone <input name="phone" type="tel"></label>`,
			field: "phone",
			want:  "Phone",
		},
		{
			name:  "aria-labelledby",
			body:  `<span id="lbl">Desired salary</span><div><input aria-labelledby="lbl" name="pay"></div>`,
			field: "pay",
			want:  "Desired salary",
		},
		{
			name:  "aria-label wins over label element",
			body:  `<label for="x">Ignored</label><input id="x" name="x" aria-label="Preferred name">`,
			field: "x",
			want:  "Preferred name",
		},
		{
			name:  "preceding sibling",
			body:  `<div><span>City:</span><input name="c"></div>`,
			field: "c",
			want:  "City",
		},
		{
			name:  "placeholder before name",
			body:  `<form><input name="li" placeholder="LinkedIn profile"></form>`,
			field: "li",
			want:  "LinkedIn profile",
		},
		{
			name:  "camel case name",
			body:  `<form><input name="phoneNumber"></form>`,
			field: "phoneNumber",
			want:  "Phone Number",
		},
		{
			name:  "sibling label owned by earlier control",
			body:  `<form><input type="checkbox" id="agree"><label for="agree">I agree to the terms</label><input name="first_name"></form>`,
			field: "first_name",
			want:  "First Name",
		},
		{
			name:  "sibling label owned by later control",
			body:  `<form><label for="x">Phone</label><input name="first_name"><input id="x" name="x" type="tel"></form>`,
			field: "first_name",
			want:  "First Name",
		},
		{
			name:  "label owner keeps its label",
			body:  `<form><label for="x">Phone</label><input name="first_name"><input id="x" name="x" type="tel"></form>`,
			field: "x",
			want:  "Phone",
		},
		{
			name:  "ancestor label owned by another control",
			body:  `<form><div><label for="agree">Subscribe to updates</label><div><input name="email_address"></div></div><input type="checkbox" id="agree"></form>`,
			field: "email_address",
			want:  "Email Address",
		},
		{
			name:  "shadow root label",
			body:  `<x-field><template shadowrootmode="open"><label for="s">School</label><input id="s"></template></x-field>`,
			field: "s",
			want:  "School",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := extractFields(load(t, tt.body))
			assert.Equal(t, tt.want, fieldByName(t, fields, tt.field).Label)
		})
	}
}

func TestExtractFieldsSkipsButtonInputs(t *testing.T) {
	doc := load(t, `<form>
		<input type="hidden" name="token">
		<input type="submit" value="Send">
		<input type="button" value="Go">
		<input type="reset">
		<input type="image" src="x.png">
		<input type="email" name="email">
	</form>`)

	fields := extractFields(doc)
	require.Len(t, fields, 1)
	assert.Equal(t, types.FieldEmail, fields[0].Type)
}

func TestExtractFieldsTypes(t *testing.T) {
	doc := load(t, `<form>
		<input type="datetime-local" name="start">
		<input type="FILE" name="resume">
		<input type="color" name="fav">
		<select name="country"></select>
		<textarea name="cover"></textarea>
		<div contenteditable="true" aria-label="Notes"></div>
		<div role="textbox" aria-multiline="true" aria-label="Summary"></div>
	</form>`)

	fields := extractFields(doc)
	require.Len(t, fields, 7)
	assert.Equal(t, types.FieldDate, fields[0].Type)
	assert.Equal(t, types.FieldFile, fields[1].Type)
	assert.Equal(t, types.FieldText, fields[2].Type)
	assert.Equal(t, types.FieldSelect, fields[3].Type)
	assert.Equal(t, types.FieldTextarea, fields[4].Type)
	assert.Equal(t, types.FieldTextarea, fields[5].Type)
	assert.Equal(t, "Notes", fields[5].Label)
	assert.Equal(t, types.FieldTextarea, fields[6].Type)
}

func TestExtractFieldsSkipsAriaWrappers(t *testing.T) {
	doc := load(t, `<div role="combobox"><input name="loc"></div>`)

	fields := extractFields(doc)
	require.Len(t, fields, 1)
	assert.Equal(t, "loc", fields[0].Name)
}

func TestSynthesizedIDsAreStableAndUnique(t *testing.T) {
	body := `<form>
		<input name="a"><input name="a">
		<input id="dup" name="x"><input id="dup" name="y">
		<textarea></textarea>
	</form>`

	first := extractFields(load(t, body))
	second := extractFields(load(t, body))
	require.Equal(t, first, second)

	ids := make([]string, 0, len(first))
	for _, f := range first {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"input_a_0", "input_a_1", "dup", "dup_3", "textarea_field_0"}, ids)
}

func TestFieldOptions(t *testing.T) {
	doc := load(t, `<form>
		<select name="country">
			<option value="">Select...</option>
			<option value="us">United States</option>
			<option value="de" label="Germany">DE</option>
		</select>
		<input name="city" list="cities">
		<datalist id="cities"><option value="Berlin"><option value="Paris"></datalist>
		<select name="years">
			<option value="0" disabled>Choose one</option>
			<option>1-3</option>
		</select>
	</form>`)

	fields := extractFields(doc)
	assert.Equal(t, []types.Option{
		{Value: "us", Label: "United States"},
		{Value: "de", Label: "Germany"},
	}, fieldByName(t, fields, "country").Options)
	assert.Equal(t, []types.Option{
		{Value: "Berlin", Label: "Berlin"},
		{Value: "Paris", Label: "Paris"},
	}, fieldByName(t, fields, "city").Options)
	assert.Equal(t, []types.Option{{Value: "1-3", Label: "1-3"}}, fieldByName(t, fields, "years").Options)
}

func TestSectionContext(t *testing.T) {
	doc := load(t, `
		<h2>Personal Info</h2>
		<div><div><input name="first"></div></div>
		<fieldset><legend>Education</legend><div><input name="school"></div></fieldset>
		<div data-section="Voluntary disclosures"><input name="vet"></div>
	`)

	fields := extractFields(doc)
	assert.Equal(t, "Personal Info", fieldByName(t, fields, "first").SectionContext)
	assert.Equal(t, "Education", fieldByName(t, fields, "school").SectionContext)
	assert.Equal(t, "Voluntary disclosures", fieldByName(t, fields, "vet").SectionContext)
}

func TestRequiredFlag(t *testing.T) {
	doc := load(t, `<input name="a" required><input name="b" aria-required="true"><input name="c">`)

	fields := extractFields(doc)
	assert.True(t, fieldByName(t, fields, "a").Required)
	assert.True(t, fieldByName(t, fields, "b").Required)
	assert.False(t, fieldByName(t, fields, "c").Required)
}

func TestTitleize(t *testing.T) {
	tests := map[string]string{
		"first_name":    "First Name",
		"phoneNumber":   "Phone Number",
		"URLField":      "URL Field",
		"address-line2": "Address Line2",
		"":              "",
	}
	for in, want := range tests {
		assert.Equal(t, want, titleize(in), in)
	}
}
