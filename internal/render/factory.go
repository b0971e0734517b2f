package render

import (
	"github.com/grovetools/tabd/config"
)

// NewFromConfig picks the loader named by render.engine.
func NewFromConfig(cfg config.RenderConfig) Loader {
	if cfg.Engine == config.EngineExternal {
		return NewCommandLoader(cfg.Dir, cfg.Command)
	}
	return NewHTMLLoader(cfg.Dir)
}
