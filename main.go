package main

import "github.com/rowcache/tablecache/cmd"

func main() {
	cmd.Execute()
}
