package router

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/Payline/internal/pkg/constants"
)

var pathParam = regexp.MustCompile(`:([A-Za-z]+)`)

func loadOpenAPI(t *testing.T) *openapi3.T {
	t.Helper()
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(filepath.Join("..", "..", "..", constants.OpenAPIFile))
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))
	return doc
}

// Every API route must be documented, and every documented operation must
// exist.
func TestOpenAPIMatchesRoutes(t *testing.T) {
	doc := loadOpenAPI(t)
	h := newHarness(t)

	registered := map[string]bool{}
	for _, r := range h.app.GetRoutes(true) {
		if !strings.HasPrefix(r.Path, constants.APIPrefix+"/") || r.Method == "HEAD" {
			continue
		}
		p := strings.TrimPrefix(r.Path, constants.APIPrefix)
		if p == "/" {
			continue
		}
		p = pathParam.ReplaceAllString(p, "{$1}")
		registered[r.Method+" "+p] = true

		item := doc.Paths.Find(p)
		if assert.NotNil(t, item, "undocumented path %s", p) {
			assert.NotNil(t, item.GetOperation(r.Method), "undocumented operation %s %s", r.Method, p)
		}
	}

	for p, item := range doc.Paths.Map() {
		for method := range item.Operations() {
			assert.True(t, registered[method+" "+p], "documented operation %s %s has no route", method, p)
		}
	}
}
