package common

// AuthorizationHeader carries the bearer token on inbound requests.
const AuthorizationHeader = "Authorization"

// BearerScheme is the only accepted authorization scheme.
const BearerScheme = "Bearer"

// TokenType is returned to clients alongside the access token.
const TokenType = "bearer"
