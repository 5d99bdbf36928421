package common

// AuthorizationHeaderName carries the bearer access token on inbound HTTP requests.
const AuthorizationHeaderName = "Authorization"

// BearerScheme is the token type returned by the token endpoint and expected
// in the Authorization header.
const BearerScheme = "bearer"

// Roles a user can hold.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
