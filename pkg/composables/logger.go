package composables

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/caseflow-hq/caseflow/pkg/constants"
)

func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

// UseLogger returns the logger from the context, falling back to the
// standard logger so callers never need a nil check.
func UseLogger(ctx context.Context) *logrus.Entry {
	if logger, ok := ctx.Value(constants.LoggerKey).(*logrus.Entry); ok {
		return logger
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
