// Command console runs the content admin console: the HTTP API with
// "console serve", or single operations against the content API.
//
// @title       Admin Console API
// @version     1.0
// @description Cached, invalidation-aware access to the content management API.
// @BasePath    /api/v1
package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/tbourn/go-admin-console/internal/cli"
)

var version = "dev"

func main() {
	// A missing .env is fine; the environment wins over the file.
	_ = godotenv.Load()
	os.Exit(cli.Execute(context.Background(), version))
}
