package resputil

type ErrorCode int

const (
	OK ErrorCode = 0

	// General
	InvalidRequest ErrorCode = 40001

	// Token
	TokenExpired ErrorCode = 40101
	TokenInvalid ErrorCode = 40102

	// Login: the identity is valid but /api/ensure-user was never called
	MustRegister ErrorCode = 40103

	// Webhook signature did not match
	SignatureInvalid ErrorCode = 40107

	// User is not allowed to access the resource
	UserNotAllowed ErrorCode = 40301

	NotFound ErrorCode = 40401

	// Someone else changed the resource first
	Conflict ErrorCode = 40901

	// Payment, SMS or email provider failed
	GatewayError ErrorCode = 50201

	// Indicates laziness of the developer
	// Frontend will directly print the message without any translation
	NotSpecified ErrorCode = 99999
)
