package main

import "github.com/sermoncast/sermoncast/internal/bootstrap"

func main() {
	bootstrap.Run()
}
