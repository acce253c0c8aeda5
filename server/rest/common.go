package rest

import (
	"github.com/piratechad/media-grab/server/config"
	"github.com/piratechad/media-grab/server/internal/extractor"
)

type ContainerArgs struct {
	Config *config.Config
	Tools  *extractor.Tools
}
