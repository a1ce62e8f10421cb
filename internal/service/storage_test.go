package service

import (
	"context"
	"errors"
	"testing"
)

func TestStorageService_RoundTripInNamespace(t *testing.T) {
	ctrl := newFakeController()
	svc := NewStorageService(ctrl, "printerbot")
	ctx := context.Background()

	if err := svc.PutItem(ctx, "last_file", "cube.gcode"); err != nil {
		t.Fatalf("PutItem() error = %v", err)
	}
	if _, ok := ctrl.db["printerbot/last_file"]; !ok {
		t.Fatalf("expected item stored under the namespace, got %v", ctrl.db)
	}

	raw, err := svc.GetItem(ctx, "last_file")
	if err != nil {
		t.Fatalf("GetItem() error = %v", err)
	}
	if string(raw) != `"cube.gcode"` {
		t.Fatalf("unexpected value %s", raw)
	}

	if err := svc.DeleteItem(ctx, "last_file"); err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}
	if _, err := svc.GetItem(ctx, "last_file"); err == nil {
		t.Fatalf("expected missing item error after delete")
	}
}

func TestStorageService_EmptyKey(t *testing.T) {
	svc := NewStorageService(newFakeController(), "printerbot")
	ctx := context.Background()

	if _, err := svc.GetItem(ctx, " "); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("GetItem: expected ErrEmptyKey, got %v", err)
	}
	if err := svc.PutItem(ctx, "", 1); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("PutItem: expected ErrEmptyKey, got %v", err)
	}
	if err := svc.DeleteItem(ctx, ""); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("DeleteItem: expected ErrEmptyKey, got %v", err)
	}
}
