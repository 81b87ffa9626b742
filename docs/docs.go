// Package docs holds the OpenAPI document served under /swagger. It is
// maintained by hand alongside the handler annotations in internal/api/auth
// and registered with swag so http-swagger can serve it.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/auth/login": {
            "post": {
                "description": "Verifies a username and password and returns a signed access token.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Login",
                "parameters": [
                    {
                        "description": "Credentials",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/auth.LoginRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/auth.LoginResponse"}},
                    "400": {"description": "Missing field", "schema": {"$ref": "#/definitions/auth.Response"}},
                    "401": {"description": "Invalid username or password", "schema": {"$ref": "#/definitions/auth.Response"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/auth.Response"}}
                }
            }
        },
        "/auth/register": {
            "post": {
                "description": "Creates a user account. The password is stored only as a salted hash.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Register",
                "parameters": [
                    {
                        "description": "Credentials",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/auth.Credentials"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/auth.RegisterResponse"}},
                    "400": {"description": "Missing field", "schema": {"$ref": "#/definitions/auth.Response"}},
                    "409": {"description": "Username already exists", "schema": {"$ref": "#/definitions/auth.Response"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/auth.Response"}}
                }
            }
        },
        "/user/profile": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Returns the verified identity carried by the bearer token.",
                "produces": ["application/json"],
                "tags": ["User"],
                "summary": "Get Profile",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/auth.ProfileResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/auth.Response"}}
                }
            }
        }
    },
    "definitions": {
        "auth.Credentials": {
            "type": "object",
            "properties": {
                "email": {"type": "string", "example": "a@x.com"},
                "password": {"type": "string", "example": "s3cret!"},
                "username": {"type": "string", "example": "alice"}
            }
        },
        "auth.LoginRequest": {
            "type": "object",
            "properties": {
                "password": {"type": "string", "example": "s3cret!"},
                "username": {"type": "string", "example": "alice"}
            }
        },
        "auth.LoginResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string", "example": "User logged in"},
                "token": {"type": "string", "example": "eyJhbGciOiJI..."}
            }
        },
        "auth.UserView": {
            "type": "object",
            "properties": {
                "email": {"type": "string", "example": "a@x.com"},
                "id": {"type": "integer", "example": 1},
                "username": {"type": "string", "example": "alice"}
            }
        },
        "auth.RegisterResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string", "example": "User registered successfully"},
                "user": {"$ref": "#/definitions/auth.UserView"}
            }
        },
        "auth.Claims": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "exp": {"type": "integer"},
                "exp_ns": {"type": "integer"},
                "iat": {"type": "integer"},
                "id": {"type": "integer"},
                "sub": {"type": "string"},
                "username": {"type": "string"}
            }
        },
        "auth.ProfileResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string", "example": "Reached protected route"},
                "user": {"$ref": "#/definitions/auth.Claims"}
            }
        },
        "auth.Response": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "request_id": {"type": "string"},
                "success": {"type": "boolean"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Credential Auth API",
	Description:      "Registration, login and bearer-token protected routes.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
