// Command dbpool loads a database connection configuration, creates the
// target database when asked, opens the connection pool and reports its
// health.
//
//	dbpool check --config dbpool.yaml
//	dbpool serve --config dbpool.yaml
//	dbpool check --minio-endpoint localhost:9000 --bucket settings --key dbpool.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
