//go:build !windows

package main

import (
	"net/http"

	"github.com/justin-molloy/mediawatch/config"
	"github.com/justin-molloy/mediawatch/engine"
)

func runService(*config.ConfigData, *engine.Engine, *http.Server) (bool, error) {
	return false, nil
}
