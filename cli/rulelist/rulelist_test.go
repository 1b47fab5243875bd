package rulelist

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/QTuan97/HC-API-Plat/cli/client"
	"github.com/QTuan97/HC-API-Plat/cli/editor"
	"github.com/QTuan97/HC-API-Plat/cli/internal/fakeapi"
	"github.com/QTuan97/HC-API-Plat/cli/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notices struct{ messages []string }

func (n *notices) Notify(message string) { n.messages = append(n.messages, message) }

type answer bool

func (a answer) Confirm(string) bool { return bool(a) }

type fakeClipboard struct {
	text string
	err  error
}

func (c *fakeClipboard) WriteAll(text string) error {
	if c.err != nil {
		return c.err
	}
	c.text = text
	return nil
}

func seeded() *fakeapi.API {
	api := fakeapi.New()
	api.Rules = []types.Rule{
		{ID: 1, ProjectID: 7, Method: "GET", PathRegex: "/users", Enabled: true, ResponseType: types.ResponseSingle, StatusCode: 200, Delay: 50, BodyTemplate: types.BodyTemplate{Template: "[]"}},
		{ID: 2, ProjectID: 7, Method: "POST", PathRegex: "/pay", Enabled: true, ResponseType: types.ResponseWeighted, RequestBody: `{"amount":1}`,
			BodyTemplate: types.BodyTemplate{Weighted: true, Entries: []types.WeightedEntry{{Weight: 90, StatusCode: 200}, {Weight: 10, StatusCode: 500}}}},
		{ID: 3, ProjectID: 8, Method: "GET", PathRegex: "/other", Enabled: true},
	}
	return api
}

func newList(api *fakeapi.API, cfg Config) *List {
	cfg.API = api
	if cfg.Scope == (client.RuleScope{}) {
		cfg.Scope = client.ProjectScope(7)
	}
	return New(cfg)
}

func TestLoad_ScopedAndFlat(t *testing.T) {
	api := seeded()

	scoped := newList(api, Config{})
	require.NoError(t, scoped.Load(context.Background(), 0))
	assert.Len(t, scoped.Rules(), 2)

	flat := newList(api, Config{Scope: client.FlatScope(0)})
	require.NoError(t, flat.Load(context.Background(), 0))
	assert.Len(t, flat.Rules(), 3)
}

func TestToggle_AlwaysReloads(t *testing.T) {
	api := seeded()
	list := newList(api, Config{})
	require.NoError(t, list.Load(context.Background(), 0))

	require.NoError(t, list.Do(context.Background(), ActionToggle, 1))
	assert.Equal(t, []string{"ListRules", "ToggleRule", "ListRules"}, api.CallLog())
	assert.Equal(t, int64(1), list.Highlight())
	assert.False(t, list.Rules()[0].Enabled, "state comes from the reloaded list")
}

func TestToggle_ErrorSkipsReload(t *testing.T) {
	api := seeded()
	api.Errs["ToggleRule"] = &client.APIError{StatusCode: 500, Message: "boom"}
	list := newList(api, Config{})

	err := list.Do(context.Background(), ActionToggle, 1)
	assert.Equal(t, "boom", client.ErrorText(err))
	assert.Equal(t, 0, api.CallCount("ListRules"))
}

func TestDelete_ConfirmThenReload(t *testing.T) {
	api := seeded()

	declined := newList(api, Config{Confirmer: answer(false)})
	require.NoError(t, declined.Do(context.Background(), ActionDelete, 1))
	assert.Equal(t, 0, api.CallCount("DeleteRule"))

	list := newList(api, Config{Confirmer: answer(true)})
	require.NoError(t, list.Do(context.Background(), ActionDelete, 1))
	assert.Equal(t, 1, api.CallCount("DeleteRule"))
	require.Len(t, list.Rules(), 1)
	assert.Equal(t, int64(2), list.Rules()[0].ID)
}

func TestCopy_ComposesURLAndNeverFails(t *testing.T) {
	api := seeded()
	n := &notices{}
	cb := &fakeClipboard{}
	list := newList(api, Config{BaseURL: "https://mock.example.com/", Clipboard: cb, Notifier: n})
	require.NoError(t, list.Load(context.Background(), 0))

	require.NoError(t, list.Do(context.Background(), ActionCopy, 1))
	assert.Equal(t, "https://mock.example.com/users", cb.text)

	cb.err = errors.New("no display")
	require.NoError(t, list.Do(context.Background(), ActionCopy, 1))
	assert.Contains(t, n.messages[len(n.messages)-1], "Copy failed")

	assert.ErrorIs(t, list.Do(context.Background(), ActionCopy, 99), ErrRuleNotLoaded)
}

func TestEdit_UsesCacheAndReloads(t *testing.T) {
	api := seeded()
	var seen *editor.Form
	list := newList(api, Config{Edit: func(form *editor.Form) (*editor.Form, error) {
		seen = form
		form.Entries[0].Weight = 80
		form.Entries[1].Weight = 20
		return form, nil
	}})
	require.NoError(t, list.Load(context.Background(), 0))

	require.NoError(t, list.Do(context.Background(), ActionEdit, 2))
	require.NotNil(t, seen)
	assert.Equal(t, `{"amount":1}`, seen.RequestBody)

	assert.Equal(t, []string{"ListRules", "UpdateRule", "ListRules"}, api.CallLog(), "no single-rule fetch")
	require.NotNil(t, api.LastPayload)
	assert.Equal(t, 80, api.LastPayload.BodyTemplate.Entries[0].Weight)
	assert.Equal(t, int64(2), list.Highlight())
}

func TestSubmitEdit_ValidationBlocksNetwork(t *testing.T) {
	api := seeded()
	list := newList(api, Config{})
	require.NoError(t, list.Load(context.Background(), 0))

	form, err := list.EditForm(2)
	require.NoError(t, err)
	form.Entries[0].Weight = 50

	err = list.SubmitEdit(context.Background(), 2, form)
	assert.EqualError(t, err, "Total weight must equal 100% (got 60%)")
	assert.Equal(t, 0, api.CallCount("UpdateRule"))
}

func TestDo_UnknownAction(t *testing.T) {
	list := newList(seeded(), Config{})
	assert.Error(t, list.Do(context.Background(), Action("archive"), 1))
}

func TestRenderAndDetails(t *testing.T) {
	api := seeded()
	list := newList(api, Config{})
	require.NoError(t, list.Load(context.Background(), 2))

	var buf bytes.Buffer
	require.NoError(t, list.Render(&buf))
	out := buf.String()
	assert.Contains(t, out, "/users")
	assert.Contains(t, out, "50ms")
	assert.Contains(t, out, "weighted(2)")
	assert.Contains(t, out, "*2")

	buf.Reset()
	require.NoError(t, list.Details(&buf, 2))
	assert.Contains(t, buf.String(), `{"amount":1}`)
	assert.Contains(t, buf.String(), `"weight": 90`)

	empty := newList(fakeapi.New(), Config{})
	require.NoError(t, empty.Load(context.Background(), 0))
	buf.Reset()
	require.NoError(t, empty.Render(&buf))
	assert.Contains(t, buf.String(), "No rules found")
}
