//go:build tools

// Package tools pins oapi-codegen so client generation from api/openapi.yaml
// uses the same version everywhere. Excluded from normal builds.
package tools

import (
	_ "github.com/oapi-codegen/oapi-codegen/v2/cmd/oapi-codegen"
)
