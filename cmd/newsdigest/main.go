package main

import (
	"fmt"

	"github.com/patric-chuzhbe/newsdigest/internal/app"
)

var (
	buildVersion = "N/A"
	buildDate    = "N/A"
	buildCommit  = "N/A"
)

func main() {
	fmt.Printf("Build version: %s\nBuild date: %s\nBuild commit: %s\n", buildVersion, buildDate, buildCommit)

	a, err := app.New()
	if err != nil {
		panic(err)
	}
	defer a.Close()

	if err := a.Run(); err != nil {
		panic(err)
	}
}
