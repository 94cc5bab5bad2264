// Package docs registers the OpenAPI specification served under
// /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "API Support",
            "url": "http://www.example.com/support",
            "email": "support@example.com"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/hooks/receivers/{receiver_id}/events/": {
            "post": {
                "consumes": ["application/json", "application/x-www-form-urlencoded"],
                "produces": ["application/json"],
                "tags": ["events"],
                "summary": "Receive a webhook event",
                "parameters": [
                    {
                        "type": "string",
                        "description": "Receiver ID",
                        "name": "receiver_id",
                        "in": "path",
                        "required": true
                    }
                ],
                "responses": {
                    "202": {"description": "Accepted"},
                    "404": {"description": "Receiver does not exists."},
                    "415": {"description": "Unsupported content type"},
                    "500": {"description": "Internal server error"}
                }
            }
        },
        "/hooks/receivers/{receiver_id}/events/{event_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["events"],
                "summary": "Get event status",
                "parameters": [
                    {"type": "string", "name": "receiver_id", "in": "path", "required": true},
                    {"type": "string", "name": "event_id", "in": "path", "required": true}
                ],
                "responses": {
                    "202": {"description": "Accepted"},
                    "401": {"description": "Unauthorized"},
                    "404": {"description": "Not found"},
                    "410": {"description": "Gone"}
                }
            },
            "put": {
                "produces": ["application/json"],
                "tags": ["events"],
                "summary": "Reprocess an event",
                "parameters": [
                    {"type": "string", "name": "receiver_id", "in": "path", "required": true},
                    {"type": "string", "name": "event_id", "in": "path", "required": true}
                ],
                "responses": {
                    "202": {"description": "Accepted"},
                    "403": {"description": "Forbidden"},
                    "410": {"description": "Gone"}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["events"],
                "summary": "Delete an event",
                "parameters": [
                    {"type": "string", "name": "receiver_id", "in": "path", "required": true},
                    {"type": "string", "name": "event_id", "in": "path", "required": true}
                ],
                "responses": {
                    "202": {"description": "Accepted"},
                    "403": {"description": "Forbidden"}
                }
            }
        }
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Hookd Webhook Service API",
	Description:      "REST API for receiving webhook events, tracking their processing and managing their lifecycle",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
