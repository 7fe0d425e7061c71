// Package cli provides the command-line interface for the extraction service.
package cli

import (
	"github.com/law-makers/hlsextract/internal/app"
)

// SetApp stores the Application for the running process. A single process
// runs one serve invocation, so a package global is sufficient here.
func SetApp(a *app.Application) {
	globalApp = a
}

// GetApp retrieves the Application set by SetApp, or nil before serve runs.
func GetApp() *app.Application {
	return globalApp
}

var globalApp *app.Application
