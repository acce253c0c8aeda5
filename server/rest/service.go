package rest

import (
	"context"

	"github.com/piratechad/media-grab/server/config"
	"github.com/piratechad/media-grab/server/internal/extractor"
	"github.com/piratechad/media-grab/server/internal/preset"
)

// ExtractResult is the curated answer to an extract request. Immutable after
// construction.
type ExtractResult struct {
	SourceURL string        `json:"sourceUrl"`
	Title     string        `json:"title"`
	Files     []preset.File `json:"files"`
}

type metadataFetcher interface {
	FetchMetadata(ctx context.Context, url string) (*extractor.Metadata, error)
}

type Service struct {
	tools   *extractor.Tools
	fetcher metadataFetcher
}

func NewService(cfg *config.Config, tools *extractor.Tools) *Service {
	return &Service{
		tools:   tools,
		fetcher: &extractor.Fetcher{Tools: tools, Timeout: cfg.RequestTimeout()},
	}
}

func (s *Service) Extract(ctx context.Context, url string) (*ExtractResult, error) {
	meta, err := s.fetcher.FetchMetadata(ctx, url)
	if err != nil {
		return nil, err
	}

	return &ExtractResult{
		SourceURL: meta.SourceURL,
		Title:     meta.Title,
		Files:     preset.Curate(meta.Formats, meta.Title, s.tools.HasFFmpeg),
	}, nil
}
