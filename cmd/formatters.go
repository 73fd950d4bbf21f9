package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"newsportal/bootstrap"
	"newsportal/storage"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderRoutes displays routes in a formatted table
func renderRoutes(w io.Writer, routes []bootstrap.Route) {
	if len(routes) == 0 {
		warningColor.Fprintln(w, "No routes registered")
		return
	}

	headerColor.Fprintln(w, "ROUTES")
	headerColor.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "%-12s %-30s %s\n", "Methods", "Path", "Name")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, r := range routes {
		fmt.Fprintf(w, "%s %s\n", r.String(), r.Name)
	}
	fmt.Fprintln(w, strings.Repeat("=", 60))
}

// renderMigrations displays applied migrations
func renderMigrations(w io.Writer, applied []storage.MigrationRecord) {
	headerColor.Fprintln(w, "MIGRATIONS")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, m := range applied {
		fmt.Fprintf(w, "%-4d %-30s %s\n", m.Version, m.Name, m.AppliedAt.Format(time.RFC3339))
	}
}

// renderBoots displays the boot history, newest first
func renderBoots(w io.Writer, boots []storage.BootRecord) {
	if len(boots) == 0 {
		warningColor.Fprintln(w, "No boots recorded")
		return
	}

	headerColor.Fprintln(w, "BOOT HISTORY")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, b := range boots {
		fmt.Fprintf(w, "%-20s %-12s %s\n", formatTimeSince(b.BootedAt), b.Environment, strings.Join(b.Modules, ", "))
	}
}

// formatTimeSince formats a time as relative duration
func formatTimeSince(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
