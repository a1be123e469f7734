package main

import (
	"log"
	"os"
)

func exit() {
	os.Exit(2)
}

func main() {
	defer exit()

	if len(os.Args) > 3 {
		log.Fatalf("too many args: %d", len(os.Args)) // want "avoid calling log.Fatalf in main.main"
	}
	if len(os.Args) > 2 {
		log.Fatal("bad args") // want "avoid calling log.Fatal in main.main"
	}
	func() {
		os.Exit(1) // want "avoid calling os.Exit in main.main"
	}()
	log.Println("done")
}
