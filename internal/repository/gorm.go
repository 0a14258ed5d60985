package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Config tunes a GormRepository.
type Config struct {
	// Filterable lists the columns accepted in ListOptions.Filters.
	Filterable []string
	// Preloads names associations loaded with every read.
	Preloads []string
}

// GormRepository implements every repository role for a gorm model.
type GormRepository[T any] struct {
	db         *gorm.DB
	filterable map[string]struct{}
	preloads   []string
}

// NewGormRepository constructs a repository for model T.
func NewGormRepository[T any](db *gorm.DB, cfg Config) (*GormRepository[T], error) {
	if db == nil {
		return nil, errors.New("repository: db is required")
	}
	filterable := make(map[string]struct{}, len(cfg.Filterable))
	for _, field := range cfg.Filterable {
		filterable[field] = struct{}{}
	}
	return &GormRepository[T]{
		db:         db,
		filterable: filterable,
		preloads:   cfg.Preloads,
	}, nil
}

// DB exposes the handle for repository-specific queries.
func (r *GormRepository[T]) DB(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ensureContext(ctx))
}

// Create inserts the entity.
func (r *GormRepository[T]) Create(ctx context.Context, entity *T) error {
	if entity == nil {
		return errors.New("repository: entity is required")
	}
	return r.DB(ctx).Create(entity).Error
}

// FindByID loads a record by primary key.
func (r *GormRepository[T]) FindByID(ctx context.Context, id int64) (*T, error) {
	var entity T
	err := r.withPreloads(r.DB(ctx)).Where(clause.Eq{Column: clause.PrimaryColumn, Value: id}).Take(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// FindOne loads the first record matching a single column equality.
func (r *GormRepository[T]) FindOne(ctx context.Context, column string, value any) (*T, error) {
	var entity T
	err := r.withPreloads(r.DB(ctx)).Where(clause.Eq{Column: clause.Column{Name: column}, Value: value}).Take(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// Update applies the column map and reloads the record.
func (r *GormRepository[T]) Update(ctx context.Context, id int64, updates map[string]any) (*T, error) {
	if len(updates) > 0 {
		var model T
		result := r.DB(ctx).Model(&model).Where(clause.Eq{Column: clause.PrimaryColumn, Value: id}).Updates(updates)
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return r.FindByID(ctx, id)
}

// Delete soft deletes the record.
func (r *GormRepository[T]) Delete(ctx context.Context, id int64) error {
	var model T
	result := r.DB(ctx).Where(clause.Eq{Column: clause.PrimaryColumn, Value: id}).Delete(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns a page of records ordered by id.
func (r *GormRepository[T]) List(ctx context.Context, opts ListOptions) (Page[T], error) {
	opts = opts.Normalised()
	page := Page[T]{Page: opts.Page, PageSize: opts.PageSize}

	var model T
	query := r.DB(ctx).Model(&model)
	for _, filter := range opts.Filters {
		if _, ok := r.filterable[filter.Field]; !ok {
			return page, fmt.Errorf("%w: unsupported field %q", ErrInvalidFilter, filter.Field)
		}
		query = query.Where(clause.Eq{Column: clause.Column{Name: filter.Field}, Value: filter.Value})
	}

	if err := query.Count(&page.Total).Error; err != nil {
		return page, err
	}

	items := make([]T, 0, opts.PageSize)
	if err := r.withPreloads(query).
		Order(clause.OrderByColumn{Column: clause.PrimaryColumn}).
		Offset((opts.Page - 1) * opts.PageSize).
		Limit(opts.PageSize).
		Find(&items).Error; err != nil {
		return page, err
	}
	page.Items = items
	return page, nil
}

func (r *GormRepository[T]) withPreloads(query *gorm.DB) *gorm.DB {
	for _, preload := range r.preloads {
		query = query.Preload(preload)
	}
	return query
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
