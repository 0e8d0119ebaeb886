package mcp

import (
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/casetrack/internal/bus"
	"github.com/hpungsan/casetrack/internal/config"
)

// KnownTypes lists all valid type names: the prefix before "_" in a tool name.
var KnownTypes = []string{"case", "type", "lookup"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"case_capture": {
		def:     captureToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCapture },
	},
	"case_update_type": {
		def:     updateTypeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUpdateType },
	},
	"case_complete": {
		def:     completeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleComplete },
	},
	"case_remove": {
		def:     removeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRemove },
	},
	"case_remove_history": {
		def:     removeHistoryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRemoveHistory },
	},
	"type_add": {
		def:     typeAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTypeAdd },
	},
	"type_remove": {
		def:     typeRemoveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTypeRemove },
	},
	"type_rename": {
		def:     typeRenameToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTypeRename },
	},
	"type_reorder": {
		def:     typeReorderToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTypeReorder },
	},
	"case_restore": {
		def:     restoreToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRestore },
	},
	"case_backup": {
		def:     backupToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBackup },
	},
	"case_export": {
		def:     exportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
	"case_clear_queue": {
		def:     clearQueueToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleClearQueue },
	},
	"case_clear_history": {
		def:     clearHistoryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleClearHistory },
	},
	"case_reset": {
		def:     resetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReset },
	},
	"case_get_data": {
		def:     getDataToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetData },
	},
	"case_stats": {
		def:     statsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStats },
	},
	"lookup_url": {
		def:     lookupToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLookup },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns a list of unknown type names from the given list.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool extracts the type name from a tool name.
// Tool names follow the pattern "type_action" (e.g., "case_capture" → "case").
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	// Build set of types for O(1) lookup
	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	// Collect tools belonging to disabled types
	tools := make([]string, 0)
	for name := range toolRegistry {
		typ := GetTypeForTool(name)
		if typeSet[typ] {
			tools = append(tools, name)
		}
	}
	return tools
}

// NewServer creates a new MCP server with casetrack tools registered.
// Tools listed in cfg.DisabledTools or belonging to cfg.DisabledTypes
// are excluded from registration.
func NewServer(d *bus.Dispatcher, cfg *config.Config, exportsDir, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"casetrack",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(d, cfg, exportsDir)
	cfg = h.cfg

	// Build set of disabled tools: first expand types, then add individual tools
	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(d *bus.Dispatcher, cfg *config.Config, exportsDir, version string) error {
	return server.ServeStdio(NewServer(d, cfg, exportsDir, version))
}
