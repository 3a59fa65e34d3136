// Package main is the entry point for the Clinical Guideline Assistant.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/guideline-rag/cmd/assistant/app"
)

func main() {
	app.NewApp().Run()
}
