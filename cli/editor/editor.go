package editor

import (
	"context"

	"github.com/QTuan97/HC-API-Plat/cli/client"
	"github.com/QTuan97/HC-API-Plat/cli/types"
)

// Config wires an Editor to the API.
type Config struct {
	API   client.IAPIClient
	Scope client.RuleScope
}

// Editor submits rule forms. A form that fails validation never reaches the
// network; server errors are returned as is, without retry.
type Editor struct {
	api   client.IAPIClient
	scope client.RuleScope
}

// New creates an Editor.
func New(cfg Config) *Editor {
	return &Editor{api: cfg.API, scope: cfg.Scope}
}

// Create builds the form and POSTs it to the scope's rule collection.
func (e *Editor) Create(ctx context.Context, form *Form) (*types.Rule, error) {
	payload, err := form.Build()
	if err != nil {
		return nil, err
	}
	return e.api.CreateRule(ctx, e.scope, payload)
}

// Update builds the form and PUTs it to rule id.
func (e *Editor) Update(ctx context.Context, id int64, form *Form) (*types.Rule, error) {
	payload, err := form.Build()
	if err != nil {
		return nil, err
	}
	return e.api.UpdateRule(ctx, e.scope, id, payload)
}
