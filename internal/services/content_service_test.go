package services

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestParseBoothsInfo(t *testing.T) {
	got := ParseBoothsInfo("Latte\r\nMs Jung\r\nSnacks\r\nand drinks\n---\nPhoto\n---\n\n---")
	want := []BoothSection{
		{Name: "Latte", Host: "Ms Jung", Description: "Snacks\nand drinks"},
		{Name: "Photo"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected sections: %#v", got)
	}
}

func TestBoothsInfoFallsBackToDefault(t *testing.T) {
	service := NewContentService(&stubContentStore{})
	info, err := service.BoothsInfo(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Raw != defaultBoothsInfo || len(info.Sections) != 2 {
		t.Fatalf("unexpected default: %#v", info)
	}
}

func TestBoothsInfoUsesStoredText(t *testing.T) {
	service := NewContentService(&stubContentStore{values: map[string]string{BoothsInfoKey: "Games\nMr Lee"}})
	info, err := service.BoothsInfo(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(info.Sections) != 1 || info.Sections[0].Host != "Mr Lee" {
		t.Fatalf("unexpected info: %#v", info)
	}
}

func TestBoothsInfoPropagatesStoreError(t *testing.T) {
	boom := errors.New("boom")
	service := NewContentService(&stubContentStore{err: boom})
	if _, err := service.BoothsInfo(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}
