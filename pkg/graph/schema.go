package graph

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/adampassword/neorest/pkg/rest"
)

// ErrEmptySchemaArg rejects schema operations with an empty label or
// property key.
var ErrEmptySchemaArg = errors.New("label and property key must not be empty")

// Schema manages label indexes and uniqueness constraints.
type Schema struct {
	res *rest.Resource
}

func newSchema(res *rest.Resource) *Schema {
	return &Schema{res: res}
}

func (s *Schema) resolve(parts ...string) (*rest.Resource, error) {
	ref := ""
	for i, part := range parts {
		if i > 0 {
			ref += "/"
		}
		ref += url.PathEscape(part)
	}
	return s.res.Resolve("schema/" + ref)
}

// IndexedPropertyKeys returns the property keys indexed for a label. Labels
// with no indexes yield an empty list.
func (s *Schema) IndexedPropertyKeys(ctx context.Context, label string) ([]string, error) {
	if label == "" {
		return nil, ErrEmptySchemaArg
	}
	return s.propertyKeys(ctx, "index", label)
}

// UniqueConstraints returns the property keys under uniqueness constraints
// for a label.
func (s *Schema) UniqueConstraints(ctx context.Context, label string) ([]string, error) {
	if label == "" {
		return nil, ErrEmptySchemaArg
	}
	return s.propertyKeys(ctx, "constraint", label, "uniqueness")
}

func (s *Schema) propertyKeys(ctx context.Context, parts ...string) ([]string, error) {
	res, err := s.resolve(parts...)
	if err != nil {
		return nil, err
	}
	rs, err := res.Get(ctx)
	if err != nil {
		if rest.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	items, ok := rs.Content.([]any)
	if !ok {
		return nil, fmt.Errorf("schema %s: unexpected payload", res.URI())
	}
	keys := make([]string, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if propertyKeys, ok := entry["property_keys"].([]any); ok && len(propertyKeys) > 0 {
			if key, ok := propertyKeys[0].(string); ok {
				keys = append(keys, key)
			}
		}
	}
	return keys, nil
}

// CreateIndex indexes a property key for a label. Indexing a key already
// under a uniqueness constraint conflicts.
func (s *Schema) CreateIndex(ctx context.Context, label, propertyKey string) error {
	if label == "" || propertyKey == "" {
		return ErrEmptySchemaArg
	}
	res, err := s.resolve("index", label)
	if err != nil {
		return err
	}
	if _, err := res.Post(ctx, map[string]any{"property_keys": []string{propertyKey}}); err != nil {
		if rest.IsConflict(err) {
			if exc := rest.CauseException(err); exc != nil {
				return fmt.Errorf("create index :%s(%s): %s", label, propertyKey, exc.Message)
			}
		}
		return err
	}
	return nil
}

// DropIndex removes the index on a property key for a label.
func (s *Schema) DropIndex(ctx context.Context, label, propertyKey string) error {
	if label == "" || propertyKey == "" {
		return ErrEmptySchemaArg
	}
	res, err := s.resolve("index", label, propertyKey)
	if err != nil {
		return err
	}
	if _, err := res.Delete(ctx); err != nil {
		if rest.IsNotFound(err) {
			return fmt.Errorf("no index on :%s(%s): %w", label, propertyKey, rest.ErrNotFound)
		}
		return err
	}
	return nil
}

// AddUniqueConstraint constrains a property key to unique values per label.
func (s *Schema) AddUniqueConstraint(ctx context.Context, label, propertyKey string) error {
	if label == "" || propertyKey == "" {
		return ErrEmptySchemaArg
	}
	res, err := s.resolve("constraint", label, "uniqueness")
	if err != nil {
		return err
	}
	if _, err := res.Post(ctx, map[string]any{"property_keys": []string{propertyKey}}); err != nil {
		if rest.IsConflict(err) {
			if exc := rest.CauseException(err); exc != nil {
				return fmt.Errorf("add constraint :%s(%s): %s", label, propertyKey, exc.Message)
			}
		}
		return err
	}
	return nil
}

// RemoveUniqueConstraint removes the uniqueness constraint on a property
// key for a label.
func (s *Schema) RemoveUniqueConstraint(ctx context.Context, label, propertyKey string) error {
	if label == "" || propertyKey == "" {
		return ErrEmptySchemaArg
	}
	res, err := s.resolve("constraint", label, "uniqueness", propertyKey)
	if err != nil {
		return err
	}
	if _, err := res.Delete(ctx); err != nil {
		if rest.IsNotFound(err) {
			return fmt.Errorf("no constraint on :%s(%s): %w", label, propertyKey, rest.ErrNotFound)
		}
		return err
	}
	return nil
}
