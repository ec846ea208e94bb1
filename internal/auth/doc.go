// Package auth validates the JWT bearer tokens presented to the API.
//
// Tokens are minted by the dashboard web application, which shares the
// signing secret with this service; the engine only ever validates. Token
// generation lives here too so integration tests and provisioning scripts
// can mint tokens without reimplementing the claims layout.
package auth
