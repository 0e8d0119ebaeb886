package mcp

import "github.com/mark3labs/mcp-go/mcp"

var captureToolDef = mcp.NewTool("case_capture",
	mcp.WithDescription("Queue a case URL. Duplicates of a queued or completed URL are ignored (added=false)."),
	mcp.WithString("url", mcp.Required(), mcp.Description("Case URL")),
	mcp.WithString("opened_at", mcp.Description("ISO-8601 open time; defaults to now")),
)

var updateTypeToolDef = mcp.NewTool("case_update_type",
	mcp.WithDescription("Set the case type of a queued or completed case."),
	mcp.WithString("url", mcp.Required(), mcp.Description("Case URL")),
	mcp.WithString("case_type", mcp.Required(), mcp.Description("Case type label; empty clears it")),
	mcp.WithIdempotentHintAnnotation(true),
)

var completeToolDef = mcp.NewTool("case_complete",
	mcp.WithDescription("Move a queued case to history. The case must have a case type."),
	mcp.WithString("url", mcp.Required(), mcp.Description("Case URL")),
)

var removeToolDef = mcp.NewTool("case_remove",
	mcp.WithDescription("Delete a queued case."),
	mcp.WithString("url", mcp.Required(), mcp.Description("Case URL")),
	mcp.WithDestructiveHintAnnotation(true),
)

var removeHistoryToolDef = mcp.NewTool("case_remove_history",
	mcp.WithDescription("Delete a completed case identified by URL and open time."),
	mcp.WithString("url", mcp.Required(), mcp.Description("Case URL")),
	mcp.WithString("opened_at", mcp.Required(), mcp.Description("Exact openedAt of the history entry")),
	mcp.WithDestructiveHintAnnotation(true),
)

var typeAddToolDef = mcp.NewTool("type_add",
	mcp.WithDescription("Append a case type to the catalog."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Case type name")),
)

var typeRemoveToolDef = mcp.NewTool("type_remove",
	mcp.WithDescription("Remove a case type from the catalog. Cases keep their label."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Case type name")),
	mcp.WithDestructiveHintAnnotation(true),
)

var typeRenameToolDef = mcp.NewTool("type_rename",
	mcp.WithDescription("Rename a case type and relabel every case that carries it."),
	mcp.WithString("old_name", mcp.Required(), mcp.Description("Current name")),
	mcp.WithString("new_name", mcp.Required(), mcp.Description("New name; must not already exist")),
)

var typeReorderToolDef = mcp.NewTool("type_reorder",
	mcp.WithDescription("Replace the catalog order."),
	mcp.WithArray("order", mcp.Required(), mcp.WithStringItems(), mcp.Description("Case type names in the new order")),
	mcp.WithIdempotentHintAnnotation(true),
)

var restoreToolDef = mcp.NewTool("case_restore",
	mcp.WithDescription("Restore collections from backup data or a backup file. Collections absent from the backup are left untouched."),
	mcp.WithObject("data", mcp.Description("Backup data object with optional queue, history and caseTypes arrays")),
	mcp.WithString("path", mcp.Description("Backup file path (.json); used when data is not given")),
	mcp.WithDestructiveHintAnnotation(true),
)

var backupToolDef = mcp.NewTool("case_backup",
	mcp.WithDescription("Write a full JSON backup file."),
	mcp.WithString("path", mcp.Description("Destination (.json); defaults to the exports directory")),
)

var exportToolDef = mcp.NewTool("case_export",
	mcp.WithDescription("Write the queue or history as CSV, optionally limited to a time range."),
	mcp.WithString("kind", mcp.Required(), mcp.Enum("queue", "history"), mcp.Description("Which collection to export")),
	mcp.WithString("path", mcp.Description("Destination (.csv); defaults to the exports directory")),
	mcp.WithString("range", mcp.Enum("today", "yesterday", "week", "month", "all"), mcp.Description("Quick range; default all")),
	mcp.WithString("start", mcp.Description("Custom range start (RFC 3339); overrides range")),
	mcp.WithString("end", mcp.Description("Custom range end (RFC 3339)")),
)

var clearQueueToolDef = mcp.NewTool("case_clear_queue",
	mcp.WithDescription("Delete every queued case."),
	mcp.WithDestructiveHintAnnotation(true),
)

var clearHistoryToolDef = mcp.NewTool("case_clear_history",
	mcp.WithDescription("Delete every completed case."),
	mcp.WithDestructiveHintAnnotation(true),
)

var resetToolDef = mcp.NewTool("case_reset",
	mcp.WithDescription("Delete the queue, history and case-type catalog."),
	mcp.WithDestructiveHintAnnotation(true),
)

var getDataToolDef = mcp.NewTool("case_get_data",
	mcp.WithDescription("Return the queue, history and case-type catalog."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var statsToolDef = mcp.NewTool("case_stats",
	mcp.WithDescription("Performance report: queue load, completions, handle times, by-type breakdown, trend and hourly counts."),
	mcp.WithString("range", mcp.Enum("today", "yesterday", "week", "month", "all"), mcp.Description("Quick range; default all")),
	mcp.WithString("start", mcp.Description("Custom range start (RFC 3339); overrides range")),
	mcp.WithString("end", mcp.Description("Custom range end (RFC 3339)")),
	mcp.WithString("case_type", mcp.Description("Only count this case type (case-insensitive)")),
	mcp.WithString("format", mcp.Enum("json", "markdown"), mcp.Description("Output format; default json")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var lookupToolDef = mcp.NewTool("lookup_url",
	mcp.WithDescription("Build an order-check or parcel-tracking URL from a selected identifier."),
	mcp.WithString("target", mcp.Required(), mcp.Enum("order", "usps", "ups"), mcp.Description("Lookup destination")),
	mcp.WithString("text", mcp.Required(), mcp.Description("Selected text; spaces, hyphens and dots are stripped")),
	mcp.WithReadOnlyHintAnnotation(true),
)
