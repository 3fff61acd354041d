// Package main provides the entry point for the newscrawl CLI.
//
// newscrawl crawls configured news and reference sites, extracts the
// articles it finds and appends them to a size-capped JSON store.
//
// Usage:
//
//	newscrawl https://www.idnes.cz/zpravy
//	newscrawl -c sites.yaml -o out/articles.json --max-size 1GiB
//	newscrawl init
//	newscrawl history
//
// See --help for all available options.
package main

func main() {
	Execute()
}
