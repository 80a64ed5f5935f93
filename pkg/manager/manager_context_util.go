package manager

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
)

type contextKey string

const ManagerKey contextKey = "manager"

var ErrNoManager = errors.New("manager not found in context")

func WithManager(ctx context.Context, m Manager) context.Context {
	return context.WithValue(ctx, ManagerKey, m)
}

func CurrentManager(ctx context.Context) (Manager, error) {
	m, ok := ctx.Value(ManagerKey).(Manager)
	if !ok {
		log.Trace("manager not found in context")
		return Manager{}, ErrNoManager
	}
	return m, nil
}

// CurrentUid retrieves the uid of the manager making the request. Returns ErrNoManager if none was resolved.
func CurrentUid(ctx context.Context) (string, error) {
	m, err := CurrentManager(ctx)
	if err != nil {
		return "", err
	}
	return m.Uid, nil
}
