package service

import (
	"context"
	"encoding/json"
	"strings"
)

// StorageService scopes controller database access to one namespace.
type StorageService struct {
	ctrl      Controller
	namespace string
}

func NewStorageService(ctrl Controller, namespace string) *StorageService {
	return &StorageService{ctrl: ctrl, namespace: namespace}
}

func (s *StorageService) GetItem(ctx context.Context, key string) (json.RawMessage, error) {
	if key = strings.TrimSpace(key); key == "" {
		return nil, ErrEmptyKey
	}
	return s.ctrl.DatabaseGet(ctx, s.namespace, key)
}

func (s *StorageService) PutItem(ctx context.Context, key string, value any) error {
	if key = strings.TrimSpace(key); key == "" {
		return ErrEmptyKey
	}
	return s.ctrl.DatabasePut(ctx, s.namespace, key, value)
}

func (s *StorageService) DeleteItem(ctx context.Context, key string) error {
	if key = strings.TrimSpace(key); key == "" {
		return ErrEmptyKey
	}
	return s.ctrl.DatabaseDelete(ctx, s.namespace, key)
}
