package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"log"

	"github.com/bandacv/belt.go/pkg/cli/sh"
)

func main() {
	flag.Parse()

	if err := sh.New().Run(flag.Args()); err != nil {
		log.Fatalln(err)
	}
}
