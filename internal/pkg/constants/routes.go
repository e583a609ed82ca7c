package constants

// Route constants shared by the router and middleware
const (
	APIPrefix = "/api"

	IdentityWebhookRoute = APIPrefix + "/identity-webhook"
	StripeWebhookRoute   = APIPrefix + "/stripe-webhook"

	// Swagger UI is served at DocsBasePath + DocsVersion.
	DocsBasePath = "/docs/api/"
	DocsVersion  = "v1"
	OpenAPIFile  = "public/docs/v1/openapi.yml"
)

// IsWebhookRoute reports whether path is a signature-verified webhook
// endpoint, which is excluded from CORS.
func IsWebhookRoute(path string) bool {
	return path == IdentityWebhookRoute || path == StripeWebhookRoute
}
