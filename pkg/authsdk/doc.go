/*
Package authsdk is a Go client for the campus session service.

SDKClient covers the unauthenticated endpoints. Login returns a Session,
which carries the access token and swaps it for a fresh one shortly before
it expires:

	client := authsdk.NewSDKClient("https://auth.campus.example")

	session, err := client.Login(ctx, authsdk.LoginRequest{
		Collection: "student",
		Username:   "ada@campus.example",
		Password:   password,
	})

	me, err := session.Me(ctx)

	err = session.Logout(ctx)

Every failed call returns an *APIError carrying the HTTP status and the
error code from the response body. Use IsUnauthorized, IsForbidden and
IsUnavailable to branch on the category.

Refresh rotates the token: the old one is revoked on the server before the
new one is issued, so a Session must not be shared across processes.
*/
package authsdk
