/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package main

import (
	"fmt"
	"os"

	"embervm/globals"
	"embervm/log"
)

func main() {
	log.Init()
	globals.InitGlobals("embervm")
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
