package cache

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-service-handlers/uow"
)

// Invalidator defers generation bumps until a unit of work commits.
type Invalidator struct {
	store  GenerationStore
	logger logrus.FieldLogger
}

// NewInvalidator creates an Invalidator bumping generations in store.
func NewInvalidator(store GenerationStore, logger logrus.FieldLogger) *Invalidator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Invalidator{store: store, logger: logger.WithField("component", "cache.invalidator")}
}

// InvalidateOnCommit registers one bump per distinct key on u. Bumps run
// after a successful commit and never on rollback. Registering the same key
// twice on the same unit of work bumps it once.
func (i *Invalidator) InvalidateOnCommit(u *uow.UnitOfWork, keys ...string) {
	if i == nil || i.store == nil || u == nil {
		return
	}

	for _, key := range keys {
		if key == "" {
			continue
		}
		key := key
		u.OnCommitOnce(onCommitKey(key), func(ctx context.Context) {
			if err := i.store.Bump(ctx, key); err != nil {
				i.logger.WithError(err).WithField("generation_key", key).Warn("generation bump failed")
				return
			}
			i.logger.WithFields(logrus.Fields{
				"generation_key": key,
				"generation":     i.store.Generation(key),
			}).Debug("generation bumped")
		})
	}
}

func onCommitKey(key string) string {
	return "cache.generation" + KeySeparator + key
}
