package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the session
// token on outbound requests to the remote record service.
const AccessTokenHeaderName = "access_token"

// AccessTokenKey is the local key under which the current session token is kept.
const AccessTokenKey = "session-access-token"
