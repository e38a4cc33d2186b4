package main

import "multimodal-rag/internal/cli"

func main() {
	cli.Execute()
}
