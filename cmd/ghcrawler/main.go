// Package main provides the entry point for the ghcrawler CLI.
//
// ghcrawler searches GitHub through a proxy, extracts the result URLs and,
// for repository searches, optionally enriches each result with its owner
// and language breakdown.
//
// Usage:
//
//	ghcrawler search --type Repositories --proxies 127.0.0.1:8080 --keywords python httpx
//	ghcrawler history
//
// See --help for all available options.
package main

// main is the entry point for ghcrawler.
func main() {
	Execute()
}
