package commands

import (
	"context"
	"errors"

	"github.com/momentics/hioload-jobs/control"
)

func withManager(ctx context.Context, m *control.Manager) context.Context {
	return context.WithValue(ctx, managerKey{}, m)
}

func managerFrom(ctx context.Context) (*control.Manager, error) {
	m, ok := ctx.Value(managerKey{}).(*control.Manager)
	if !ok {
		return nil, errors.New("configuration not loaded")
	}
	return m, nil
}
