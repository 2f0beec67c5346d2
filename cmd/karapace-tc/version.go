package main

// Version and GitSHA are set at build time via ldflags.
// Example: -ldflags "-X main.Version=1.0.0 -X main.GitSHA=abc123"
var (
	Version = "dev"
	GitSHA  = ""
)
