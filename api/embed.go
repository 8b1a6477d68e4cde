// Package api carries the HTTP API description served by the server.
package api

import _ "embed"

// OpenAPI is the OpenAPI 3 document in YAML
//
//go:embed openapi.yaml
var OpenAPI []byte
