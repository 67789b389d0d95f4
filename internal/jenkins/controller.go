package jenkins

import (
	"context"

	"github.com/sirupsen/logrus"
)

// NodeController changes the scheduling state of a CI node.
type NodeController interface {
	// TakeOffline marks the node temporarily offline with the given reason.
	// It returns false without error when the node is busy and was left
	// online.
	TakeOffline(ctx context.Context, reason string) (bool, error)

	// BringOnline clears the temporary offline mark.
	BringOnline(ctx context.Context) error
}

// Noop is a NodeController for hosts without a CI controller.
type Noop struct {
	Log logrus.FieldLogger
}

// TakeOffline always succeeds.
func (n Noop) TakeOffline(_ context.Context, _ string) (bool, error) {
	n.Log.Info("node is currently idle, trying to put it offline")
	n.Log.Info("node is now offline")
	return true, nil
}

// BringOnline always succeeds.
func (n Noop) BringOnline(_ context.Context) error {
	n.Log.Info("putting node back online")
	return nil
}
