package services

import (
	"context"
	"strings"
)

const BoothsInfoKey = "booths_info"

const defaultBoothsInfo = "Booth name 1\nHost 1\nDescribe the booth here. Admins can edit this text.\n---\nBooth name 2\nHost 2\nDescribe the booth here."

type ContentReader interface {
	Get(ctx context.Context, key string) (string, bool, error)
}

type BoothSection struct {
	Name        string `json:"name"`
	Host        string `json:"host"`
	Description string `json:"description"`
}

type BoothsInfo struct {
	Raw      string         `json:"raw"`
	Sections []BoothSection `json:"sections"`
}

type ContentService struct {
	contentStore ContentReader
}

func NewContentService(contentStore ContentReader) *ContentService {
	return &ContentService{contentStore: contentStore}
}

// BoothsInfo returns the stored booth descriptions, or a placeholder text when
// none have been saved.
func (s *ContentService) BoothsInfo(ctx context.Context) (BoothsInfo, error) {
	raw, ok, err := s.contentStore.Get(ctx, BoothsInfoKey)
	if err != nil {
		return BoothsInfo{}, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		raw = defaultBoothsInfo
	}
	return BoothsInfo{Raw: raw, Sections: ParseBoothsInfo(raw)}, nil
}

// ParseBoothsInfo splits the blob on "---". In each section the first line is
// the booth name, the second its host and the rest the description.
func ParseBoothsInfo(raw string) []BoothSection {
	sections := []BoothSection{}
	for _, block := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "---") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		section := BoothSection{Name: strings.TrimSpace(lines[0])}
		if len(lines) > 1 {
			section.Host = strings.TrimSpace(lines[1])
		}
		if len(lines) > 2 {
			section.Description = strings.TrimSpace(strings.Join(lines[2:], "\n"))
		}
		sections = append(sections, section)
	}
	return sections
}
