package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/jobscan/internal/dom"
	"github.com/GriffinCanCode/jobscan/internal/types"
)

func TestClassifyText(t *testing.T) {
	tests := []struct {
		text string
		want types.ActionKind
		ok   bool
	}{
		{"Submit and Continue", types.ActionSubmit, true},
		{"Save & Next", types.ActionSubmit, true},
		{"Confirm", types.ActionSubmit, true},
		{"Back", types.ActionPrevious, true},
		{"Return to previous step", types.ActionPrevious, true},
		{"« Edit", types.ActionPrevious, true},
		{"Next", types.ActionNavigation, true},
		{"Apply now", types.ActionNavigation, true},
		{"Continue →", types.ActionNavigation, true},
		{"Learn more", types.ActionNavigation, true},
		{"Sign in", "", false},
		{"Backend roles", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			kind, ok := classifyText(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestClassifyActions(t *testing.T) {
	doc := load(t, `<form>
		<button id="prev" type="button">Back</button>
		<button type="submit">Submit application</button>
		<a href="#" class="btn">Next step</a>
		<button>Sign in</button>
		<input type="button" value="Continue">
	</form>`)

	actions, triggers := classifyActions(doc)
	require.Len(t, actions, 4)

	kinds := make(map[string]types.ActionKind)
	for _, a := range actions {
		kinds[a.Text] = a.Kind
	}
	assert.Equal(t, map[string]types.ActionKind{
		"Back":               types.ActionPrevious,
		"Submit application": types.ActionSubmit,
		"Next step":          types.ActionNavigation,
		"Continue":           types.ActionNavigation,
	}, kinds)
	assert.Equal(t, "prev", actions[0].ID)

	var triggerTexts []string
	for _, tr := range triggers {
		triggerTexts = append(triggerTexts, tr.Text)
	}
	assert.Equal(t, []string{"Next step", "Continue"}, triggerTexts)
}

func TestActionSelectorsResolve(t *testing.T) {
	doc := load(t, `<div id="wizard"><form>
		<button id="prev" type="button">Back</button>
		<button type="submit">Submit</button>
		<button name="go">Next</button>
	</form></div>`)

	actions, _ := classifyActions(doc)
	require.Len(t, actions, 3)
	assert.Equal(t, "#prev", actions[0].Selector)
	assert.Equal(t, "#wizard > form:nth-of-type(1) > button:nth-of-type(2)", actions[1].Selector)
	assert.Equal(t, `button[name="go"]`, actions[2].Selector)

	for _, a := range actions {
		matched := doc.Filter(dom.Selector(a.Selector))
		require.Len(t, matched, 1, a.Selector)
		assert.Equal(t, a.Text, dom.Text(matched[0]))
	}
}

func TestPlainLinksAreNotActions(t *testing.T) {
	doc := load(t, `<a href="/jobs/1">View role</a><a href="/apply/1">Apply now</a>`)

	actions, triggers := classifyActions(doc)
	assert.Empty(t, actions)
	require.Len(t, triggers, 1)
	assert.Equal(t, "Apply now", triggers[0].Text)
}

func TestDetectMultiPage(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		multi bool
		step  int
	}{
		{"previous control", `<button>Back</button><button>Submit</button>`, true, 1},
		{"step text", `<p>Step 2 of 4</p><button>Next</button>`, true, 2},
		{"step markup", `<ol class="progress-steps"><li aria-current="step">Info</li></ol>`, true, 1},
		{"single page", `<button>Submit</button>`, false, 1},
		{"next only", `<button>Next</button>`, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := load(t, tt.body)
			actions, _ := classifyActions(doc)
			multi, step := detectMultiPage(doc, actions, dom.ComposedText(doc))
			assert.Equal(t, tt.multi, multi)
			assert.Equal(t, tt.step, step)
		})
	}
}

func TestNavigationLinks(t *testing.T) {
	doc := load(t, `
		<nav><a href="/jobs">Jobs</a><a href="/jobs#top">Jobs again</a><a href="#">Skip</a></nav>
		<header><a href="https://other.example.org/about">About</a></header>
		<main><a href="/jobs/1">Role</a></main>`)

	assert.Equal(t, []string{
		"https://careers.example.com/jobs",
		"https://other.example.org/about",
	}, navigationLinks(doc))
}
