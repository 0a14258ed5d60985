package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/charlesng35/clinic/internal/repository"
	apperrors "github.com/charlesng35/clinic/pkg/errors"
	"github.com/charlesng35/clinic/pkg/logger"
)

// cachedResource layers read-through caching and write invalidation over a repository.
// A nil cache disables caching.
type cachedResource[T any] struct {
	name             string
	repo             repository.CRUD[T]
	cache            *CacheService
	entityPrefix     string
	collectionPrefix string
	notFound         error
	log              *zap.Logger
}

func newCachedResource[T any](name string, repo repository.CRUD[T], cache *CacheService, entityPrefix, collectionPrefix string, notFound error) cachedResource[T] {
	return cachedResource[T]{
		name:             name,
		repo:             repo,
		cache:            cache,
		entityPrefix:     entityPrefix,
		collectionPrefix: collectionPrefix,
		notFound:         notFound,
		log:              logger.WithModule(name),
	}
}

func (r *cachedResource[T]) get(ctx context.Context, id int64) (*T, error) {
	ctx = ensureContext(ctx)

	if r.cache != nil {
		var cached T
		found, err := r.cache.LoadEntity(ctx, r.entityPrefix, id, &cached)
		if err != nil {
			r.log.Warn("cache read failed, falling back to database", zap.Int64("id", id), zap.Error(err))
		} else if found {
			return &cached, nil
		}
	}

	entity, err := r.repo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, r.notFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s service: get: %w", r.name, err)
	}

	if r.cache != nil {
		if err := r.cache.SaveEntity(ctx, r.entityPrefix, id, entity); err != nil {
			r.log.Warn("cache write failed", zap.Int64("id", id), zap.Error(err))
		}
	}
	return entity, nil
}

// list serves the unfiltered first page from the collection key and reads everything else from
// the repository. Writes drop the collection key, so the cached page never outlives a change.
func (r *cachedResource[T]) list(ctx context.Context, opts repository.ListOptions) (repository.Page[T], error) {
	ctx = ensureContext(ctx)
	opts = opts.Normalised()
	cacheable := r.cache != nil && opts.IsDefault()

	if cacheable {
		var cached repository.Page[T]
		found, err := r.cache.LoadCollection(ctx, r.collectionPrefix, &cached)
		if err != nil {
			r.log.Warn("collection cache read failed, falling back to database", zap.Error(err))
		} else if found {
			return cached, nil
		}
	}

	page, err := r.repo.List(ctx, opts)
	if errors.Is(err, repository.ErrInvalidFilter) {
		return page, apperrors.NewBadRequest(err.Error())
	}
	if err != nil {
		return page, fmt.Errorf("%s service: list: %w", r.name, err)
	}

	if cacheable {
		if err := r.cache.SaveCollection(ctx, r.collectionPrefix, page); err != nil {
			r.log.Warn("collection cache write failed", zap.String("prefix", r.collectionPrefix), zap.Error(err))
		}
	}
	return page, nil
}

func (r *cachedResource[T]) create(ctx context.Context, entity *T) error {
	ctx = ensureContext(ctx)
	if err := r.repo.Create(ctx, entity); err != nil {
		return r.translateWriteError("create", err)
	}
	r.dropCollection(ctx)
	return nil
}

func (r *cachedResource[T]) update(ctx context.Context, id int64, updates map[string]any) (*T, error) {
	ctx = ensureContext(ctx)
	entity, err := r.repo.Update(ctx, id, updates)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, r.notFound
	}
	if err != nil {
		return nil, r.translateWriteError("update", err)
	}
	r.invalidate(ctx, id)
	return entity, nil
}

func (r *cachedResource[T]) delete(ctx context.Context, id int64) error {
	ctx = ensureContext(ctx)
	err := r.repo.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return r.notFound
	}
	if err != nil {
		return fmt.Errorf("%s service: delete: %w", r.name, err)
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *cachedResource[T]) invalidate(ctx context.Context, id int64) {
	if r.cache != nil {
		r.cache.Invalidate(ctx, r.entityPrefix, id, r.collectionPrefix)
	}
}

func (r *cachedResource[T]) dropCollection(ctx context.Context) {
	if r.cache == nil {
		return
	}
	if _, err := r.cache.RemoveCollection(ctx, r.collectionPrefix); err != nil {
		r.log.Warn("cache invalidation failed", zap.String("prefix", r.collectionPrefix), zap.Error(err))
	}
}

func (r *cachedResource[T]) translateWriteError(op string, err error) error {
	switch {
	case isUniqueConstraintError(err):
		return apperrors.ErrConflict.WithMessage("email already registered").WithInternal(err)
	case isForeignKeyError(err):
		return apperrors.NewBadRequest("referenced record does not exist")
	default:
		return fmt.Errorf("%s service: %s: %w", r.name, op, err)
	}
}
