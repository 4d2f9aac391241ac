package main

import (
	"os"

	"auto_blog_publisher/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
