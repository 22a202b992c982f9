// Package main is the steno-caption entry point (HTTP + WebSocket).
package main

import (
	"log"

	"github.com/jeongyiya/steno-caption/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
