package main

import "github.com/forPelevin/stickercut/internal/cli"

func main() {
	cli.Main()
}
