package main

import (
	"os"

	"horse.fit/presscheck/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
