package permission

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/frahmantamala/access-management/internal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Resolver reports whether an object with the given identity exists.
type Resolver func(ctx context.Context, id string) (bool, error)

// Registry maps target type labels to resolvers supplied by the application,
// so permission requests naming "invoice"/"42" can be checked before any
// grant is written.
type Registry struct {
	mu        sync.RWMutex
	resolvers map[string]Resolver
}

func NewRegistry() *Registry {
	return &Registry{resolvers: make(map[string]Resolver)}
}

func (r *Registry) Register(targetType string, resolver Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[targetType] = resolver
}

// Resolve returns the Target for (targetType, id) or ErrTargetNotFound when
// the type is unregistered or the object does not exist.
func (r *Registry) Resolve(ctx context.Context, targetType, id string) (Target, error) {
	r.mu.RLock()
	resolver, ok := r.resolvers[targetType]
	r.mu.RUnlock()
	if !ok {
		return Target{}, internal.ErrTargetNotFound.WithDetails(map[string]string{"content_type": targetType})
	}

	exists, err := resolver(ctx, id)
	if err != nil {
		return Target{}, fmt.Errorf("resolve %s %s: %w", targetType, id, err)
	}
	if !exists {
		return Target{}, internal.ErrTargetNotFound.WithDetails(map[string]string{"content_type": targetType, "object_id": id})
	}
	return Target{Type: targetType, ID: id}, nil
}

func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.resolvers))
	for t := range r.resolvers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// TableResolver resolves ids against the primary key of a table.
func TableResolver(db *gorm.DB, table, column string) Resolver {
	if column == "" {
		column = "id"
	}
	return func(ctx context.Context, id string) (bool, error) {
		var count int64
		err := db.WithContext(ctx).Table(table).Where(clause.Eq{Column: clause.Column{Name: column}, Value: id}).Count(&count).Error
		if err != nil {
			return false, err
		}
		return count > 0, nil
	}
}
