// Package auth holds the OpenAPI document served under /swagger/. It
// mirrors the handler annotations in internal/auth/http; regenerate with
//
//	swag init -g internal/auth/http/router.go -o api/auth --outputTypes go
package auth

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/.well-known/jwks.json": {
            "get": {
                "description": "Returns the JSON Web Key Set used to verify access tokens.",
                "produces": ["application/json"],
                "tags": ["well-known"],
                "summary": "Get JWKS",
                "responses": {
                    "200": {
                        "description": "The JSON Web Key Set",
                        "schema": {"$ref": "#/definitions/authsdk.JWKSResponse"}
                    }
                }
            }
        },
        "/livez": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Liveness check",
                "responses": {
                    "200": {
                        "description": "status, uptime, version",
                        "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}
                    }
                }
            }
        },
        "/readyz": {
            "get": {
                "description": "Checks the user directory, the revocation store and the signing key.",
                "produces": ["application/json"],
                "tags": ["Health"],
                "summary": "Readiness check",
                "responses": {
                    "200": {
                        "description": "All checks pass",
                        "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}
                    },
                    "503": {
                        "description": "One or more checks failed",
                        "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}
                    }
                }
            }
        },
        "/v1/admin/users": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Adds a user to a collection. When mfa is set the response carries the otpauth URL. Requires 'users:write' scope.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "Create a user",
                "parameters": [
                    {
                        "description": "User to create",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/authsdk.CreateUserRequest"}
                    }
                ],
                "responses": {
                    "201": {
                        "description": "id and optional otpauth_url",
                        "schema": {"$ref": "#/definitions/authsdk.CreateUserResponse"}
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}
                    },
                    "401": {
                        "description": "Invalid or missing access token",
                        "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}
                    },
                    "403": {
                        "description": "Missing users:write",
                        "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}
                    },
                    "409": {
                        "description": "User already exists",
                        "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}
                    }
                }
            }
        },
        "/v1/auth/login": {
            "post": {
                "description": "Authenticates a user within a collection and issues a signed access token.",
                "consumes": ["application/x-www-form-urlencoded"],
                "produces": ["application/json"],
                "tags": ["Session"],
                "summary": "Log in",
                "parameters": [
                    {
                        "enum": ["student", "teacher", "admin"],
                        "type": "string",
                        "description": "Collection to look the user up in",
                        "name": "collection",
                        "in": "formData",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "User id or email",
                        "name": "username",
                        "in": "formData",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Password",
                        "name": "password",
                        "in": "formData",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Space-delimited scopes to narrow the token to",
                        "name": "scope",
                        "in": "formData"
                    },
                    {
                        "type": "string",
                        "description": "TOTP code when the user has MFA enabled",
                        "name": "otp",
                        "in": "formData"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "access_token, token_type, expires_in, scope",
                        "schema": {"$ref": "#/definitions/authsdk.TokenResponse"},
                        "headers": {
                            "Cache-Control": {"type": "string", "description": "no-store"}
                        }
                    },
                    "400": {
                        "description": "Missing or malformed fields",
                        "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}
                    },
                    "401": {
                        "description": "Invalid credentials",
                        "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}
                    },
                    "403": {
                        "description": "None of the requested scopes are held",
                        "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}
                    },
                    "429": {
                        "description": "Rate limit exceeded",
                        "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}
                    },
                    "503": {
                        "description": "User directory unavailable",
                        "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}
                    }
                }
            }
        },
        "/v1/auth/logout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Revokes the presented token until it expires.",
                "tags": ["Session"],
                "summary": "Log out",
                "responses": {
                    "204": {"description": "Token revoked"},
                    "401": {
                        "description": "Invalid token",
                        "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}
                    },
                    "503": {
                        "description": "Revocation store unavailable",
                        "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}
                    }
                }
            }
        },
        "/v1/auth/refresh": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Revokes the presented token and issues its successor. Only one of several concurrent refreshes succeeds.",
                "produces": ["application/json"],
                "tags": ["Session"],
                "summary": "Refresh a token",
                "responses": {
                    "200": {
                        "description": "The successor token",
                        "schema": {"$ref": "#/definitions/authsdk.TokenResponse"}
                    },
                    "401": {
                        "description": "Invalid, expired or revoked token",
                        "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}
                    },
                    "503": {
                        "description": "Revocation store unavailable",
                        "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}
                    }
                }
            }
        },
        "/v1/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Returns the authenticated user's record. Requires 'profile:read' scope.",
                "produces": ["application/json"],
                "tags": ["Users"],
                "summary": "Current user",
                "responses": {
                    "200": {
                        "description": "The user record",
                        "schema": {"$ref": "#/definitions/authsdk.UserResponse"}
                    },
                    "401": {
                        "description": "Invalid or missing access token",
                        "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}
                    },
                    "403": {
                        "description": "Missing profile:read",
                        "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}
                    },
                    "503": {
                        "description": "A store is unavailable",
                        "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}
                    }
                }
            }
        }
    },
    "definitions": {
        "authsdk.CreateUserRequest": {
            "type": "object",
            "properties": {
                "collection": {"type": "string"},
                "display_name": {"type": "string"},
                "email": {"type": "string"},
                "mfa": {"type": "boolean"},
                "password": {"type": "string"},
                "scopes": {"type": "array", "items": {"type": "string"}}
            }
        },
        "authsdk.CreateUserResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "otpauth_url": {"type": "string"}
            }
        },
        "authsdk.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "error_description": {"type": "string"}
            }
        },
        "authsdk.HealthChecks": {
            "type": "object",
            "properties": {
                "cache": {"type": "string"},
                "database": {"type": "string"},
                "signer": {"type": "string"}
            }
        },
        "authsdk.HealthResponse": {
            "type": "object",
            "properties": {
                "checks": {"$ref": "#/definitions/authsdk.HealthChecks"},
                "status": {"type": "string"},
                "uptime": {"type": "string"},
                "version": {"type": "string"}
            }
        },
        "authsdk.JWKSResponse": {
            "type": "object",
            "properties": {
                "keys": {"type": "array", "items": {"$ref": "#/definitions/jwtx.JWK"}}
            }
        },
        "authsdk.TokenResponse": {
            "type": "object",
            "properties": {
                "access_token": {"type": "string"},
                "expires_in": {"type": "integer"},
                "scope": {"type": "string"},
                "token_type": {"type": "string"}
            }
        },
        "authsdk.UserResponse": {
            "type": "object",
            "properties": {
                "collection": {"type": "string"},
                "created_at": {"type": "string"},
                "display_name": {"type": "string"},
                "email": {"type": "string"},
                "id": {"type": "string"},
                "mfa_enabled": {"type": "boolean"},
                "scopes": {"type": "array", "items": {"type": "string"}}
            }
        },
        "jwtx.JWK": {
            "type": "object",
            "properties": {
                "alg": {"type": "string"},
                "e": {"type": "string"},
                "kid": {"type": "string"},
                "kty": {"type": "string"},
                "n": {"type": "string"},
                "use": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "JWT access token. Format: \"Bearer {token}\".",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Campus Session Service API",
	Description:      "Password login for students, teachers and admins, issuing RS256 access tokens.\n\nTokens can be refreshed once and revoked on logout. Verify them with the JWKS endpoint.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
