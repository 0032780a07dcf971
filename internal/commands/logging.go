package commands

import (
	"strings"

	"github.com/goliatone/go-gfm/internal/logging"
	"github.com/goliatone/go-gfm/pkg/interfaces"
)

const commandModuleRoot = "gfm.commands"

// CommandLogger returns the logger for one command module, e.g.
// "gfm.commands.entities".
func CommandLogger(provider interfaces.LoggerProvider, module string) interfaces.Logger {
	name := strings.TrimSpace(module)
	if name == "" {
		name = "core"
	}
	logger := logging.ModuleLogger(provider, commandModuleRoot+"."+name)
	return logging.WithFields(logger, map[string]any{
		"component":      "command",
		"command_module": name,
	})
}
