// Package main is the entry point for the contract assistant.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/contract-assistant/cmd/contract-assistant/app"
)

func main() {
	app.NewApp().Run()
}
