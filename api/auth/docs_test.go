package auth_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"

	"github.com/aussiebroadwan/campus/api/auth"
)

func TestDocumentRegistered(t *testing.T) {
	raw, err := swag.ReadDoc(auth.SwaggerInfo.InstanceName())
	require.NoError(t, err)

	var doc struct {
		Info struct {
			Title   string `json:"title"`
			Version string `json:"version"`
		} `json:"info"`
		Schemes []string                  `json:"schemes"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	require.Equal(t, "Campus Session Service API", doc.Info.Title)
	require.Equal(t, []string{"http", "https"}, doc.Schemes)

	routes := map[string]string{
		"/v1/auth/login":         "post",
		"/v1/auth/refresh":       "post",
		"/v1/auth/logout":        "post",
		"/v1/me":                 "get",
		"/v1/admin/users":        "post",
		"/.well-known/jwks.json": "get",
		"/livez":                 "get",
		"/readyz":                "get",
	}
	require.Len(t, doc.Paths, len(routes))
	for path, method := range routes {
		require.Contains(t, doc.Paths[path], method, path)
	}
}
