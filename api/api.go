// Package api carries the OpenAPI document of the breadcrumbs HTTP surface.
package api

import _ "embed"

// OpenAPI is the raw openapi.yaml, compiled into the binary so /docs works
// regardless of the working directory.
//
//go:embed openapi.yaml
var OpenAPI []byte
