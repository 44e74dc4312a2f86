package main

import (
	"log/slog"
	"os"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/osmpanel/internal/adapter/driven/osm"
)

func main() {
	osm.BoundTokenRequests(osm.TokenRequestTimeout)

	if err := newRootCmd().Execute(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}
