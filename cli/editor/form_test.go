package editor

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/QTuan97/HC-API-Plat/cli/client"
	"github.com/QTuan97/HC-API-Plat/cli/internal/fakeapi"
	"github.com/QTuan97/HC-API-Plat/cli/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weightedForm(weights ...int) *Form {
	f := NewForm()
	f.PathRegex = "^/pay$"
	f.Mode = types.ResponseWeighted
	for _, w := range weights {
		f.Entries = append(f.Entries, EntryForm{Weight: w, Headers: "{}"})
	}
	return f
}

func TestBuild_WeightSumMustBe100(t *testing.T) {
	payload, err := weightedForm(60, 40).Build()
	require.NoError(t, err)
	assert.Equal(t, types.ResponseWeighted, payload.ResponseType)
	require.Len(t, payload.BodyTemplate.Entries, 2)
	assert.Equal(t, 200, payload.BodyTemplate.Entries[1].StatusCode, "status defaults to 200")

	_, err = weightedForm(60, 30).Build()
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "Total weight must equal 100% (got 90%)", err.Error())
}

func TestBuild_WeightedPayloadShape(t *testing.T) {
	payload, err := weightedForm(100).Build()
	require.NoError(t, err)

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.IsType(t, []interface{}{}, raw["body_template"])
}

func TestAddEntry_RefusesFifth(t *testing.T) {
	f := weightedForm(25, 25, 25, 25)
	assert.ErrorIs(t, f.AddEntry(EntryForm{}), ErrTooManyEntries)
	assert.Len(t, f.Entries, MaxEntries)

	require.NoError(t, f.RemoveEntry(0))
	assert.Len(t, f.Entries, 3)
	assert.NoError(t, f.AddEntry(EntryForm{Weight: 25}))
	assert.Error(t, f.RemoveEntry(9))
}

func TestSetMode_WeightedSeedsOneEntry(t *testing.T) {
	f := NewForm()
	f.PathRegex = "/"
	require.NoError(t, f.SetMode(types.ResponseWeighted))
	require.Len(t, f.Entries, 1)
	assert.Equal(t, 100, f.Entries[0].Weight)

	_, err := f.Build()
	assert.NoError(t, err)
	assert.Error(t, f.SetMode("random"))
}

func TestSetMethod_GetClearsRequestBody(t *testing.T) {
	f := NewForm()
	f.PathRegex = "/users"
	f.SetMethod("post")
	f.RequestBody = `{"name":"a"}`

	payload, err := f.Build()
	require.NoError(t, err)
	require.NotNil(t, payload.RequestBody)
	assert.Equal(t, `{"name":"a"}`, *payload.RequestBody)

	f.SetMethod("GET")
	assert.Empty(t, f.RequestBody)
	payload, err = f.Build()
	require.NoError(t, err)
	assert.Nil(t, payload.RequestBody)

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "request_body")
}

func TestBuild_BlankRequestBodyOmitted(t *testing.T) {
	f := NewForm()
	f.PathRegex = "/"
	f.SetMethod("PUT")
	f.RequestBody = "   \n"

	payload, err := f.Build()
	require.NoError(t, err)
	assert.Nil(t, payload.RequestBody)
}

func TestBuild_HeaderParseError(t *testing.T) {
	f := NewForm()
	f.PathRegex = "/"
	f.Headers = "{not json"

	_, err := f.Build()
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "headers", parseErr.Field)
	assert.True(t, IsValidationError(err))

	w := weightedForm(100)
	w.Entries[0].Headers = `{"X-Count": 3}`
	_, err = w.Build()
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "entries[0].headers", parseErr.Field)
}

func TestBuild_SingleDefaults(t *testing.T) {
	f := NewForm()
	f.PathRegex = "^/health$"
	f.StatusCode = 0
	f.Headers = ""
	f.Template = "ok"

	payload, err := f.Build()
	require.NoError(t, err)
	assert.Equal(t, 200, payload.StatusCode)
	assert.Equal(t, map[string]string{}, payload.Headers)
	assert.Equal(t, "ok", payload.BodyTemplate.Template)
	assert.False(t, payload.BodyTemplate.Weighted)
}

func TestBuild_Rejections(t *testing.T) {
	f := NewForm()
	_, err := f.Build()
	assert.True(t, IsValidationError(err), "path required")

	f.PathRegex = "/"
	f.Method = "HEAD"
	_, err = f.Build()
	assert.True(t, IsValidationError(err))

	f.Method = "GET"
	f.Delay = -5
	_, err = f.Build()
	assert.True(t, IsValidationError(err))

	_, err = weightedForm().Build()
	assert.True(t, IsValidationError(err))
}

func TestFormFromRule_RoundTrip(t *testing.T) {
	rule := types.Rule{
		ID:           3,
		Method:       "GET",
		PathRegex:    "^/flaky$",
		ResponseType: types.ResponseWeighted,
		BodyTemplate: types.BodyTemplate{Weighted: true, Entries: []types.WeightedEntry{
			{Weight: 70, StatusCode: 200, Headers: map[string]string{"A": "1"}, Template: "ok"},
			{Weight: 30, StatusCode: 503, Delay: 1500, Template: "down"},
		}},
	}

	f := FormFromRule(rule)
	assert.Equal(t, types.ResponseWeighted, f.Mode)
	require.Len(t, f.Entries, 2)
	assert.JSONEq(t, `{"A":"1"}`, f.Entries[0].Headers)

	payload, err := f.Build()
	require.NoError(t, err)
	assert.Equal(t, rule.BodyTemplate.Entries[1].Delay, payload.BodyTemplate.Entries[1].Delay)
}

func TestEditor_ValidationBlocksNetwork(t *testing.T) {
	api := fakeapi.New()
	ed := New(Config{API: api, Scope: client.ProjectScope(1)})

	_, err := ed.Create(context.Background(), weightedForm(60, 30))
	require.Error(t, err)
	assert.Empty(t, api.CallLog())

	rule, err := ed.Create(context.Background(), weightedForm(60, 40))
	require.NoError(t, err)
	assert.Equal(t, []string{"CreateRule"}, api.CallLog())
	assert.Equal(t, int64(1), rule.ProjectID)

	_, err = ed.Update(context.Background(), rule.ID, weightedForm(50, 50))
	require.NoError(t, err)
	assert.Equal(t, 1, api.CallCount("UpdateRule"))
}

func TestEditor_SurfacesServerText(t *testing.T) {
	api := fakeapi.New()
	api.Errs["CreateRule"] = &client.APIError{StatusCode: 400, Message: "path_regex: invalid regular expression"}
	ed := New(Config{API: api, Scope: client.ProjectScope(1)})

	f := NewForm()
	f.PathRegex = "(["
	_, err := ed.Create(context.Background(), f)
	require.Error(t, err)
	assert.Equal(t, "path_regex: invalid regular expression", client.ErrorText(err))
	assert.Equal(t, 1, api.CallCount("CreateRule"), "no retry")
}
