package main

import "pairchat/internal/app"

func main() {
	app.Run()
}
