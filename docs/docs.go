// Package docs holds the swagger document served at /swagger.
// Regenerate with: swag init -g cmd/analyticsd/main.go -o docs
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
        "/healthz": {
            "get": {"tags": ["health"], "summary": "Health check", "responses": {"200": {"description": "OK"}}}
        },
        "/readyz": {
            "get": {"tags": ["health"], "summary": "Readiness check", "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}}
        },
        "/api/v1/jobs/status": {
            "get": {"tags": ["jobs"], "summary": "Job status", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/jobs/stream": {
            "get": {"tags": ["jobs"], "summary": "Job status stream", "description": "Websocket that pushes the job status whenever it changes.", "responses": {"101": {"description": "Switching Protocols"}}}
        },
        "/api/v1/jobs/{name}/run": {
            "post": {
                "tags": ["jobs"],
                "summary": "Run a job",
                "description": "Runs a job synchronously, or starts it in the background when async is set.",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "superadmin-analysis | admin-analysis | master-analysis | user-snapshots | combined", "name": "name", "in": "path", "required": true},
                    {"type": "boolean", "description": "return immediately", "name": "async", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "202": {"description": "Accepted"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}, "500": {"description": "Internal Server Error"}}
            }
        },
        "/api/v1/analysis/users/top-risk": {
            "get": {
                "tags": ["analysis"],
                "summary": "Users ranked by risk score",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "superadmin id", "name": "superadmin_id", "in": "query"},
                    {"type": "string", "description": "generated at or after, RFC3339 or YYYY-MM-DD", "name": "start", "in": "query"},
                    {"type": "string", "description": "generated before, RFC3339 or YYYY-MM-DD", "name": "end", "in": "query"},
                    {"type": "number", "description": "0-10", "name": "min_score", "in": "query"},
                    {"type": "integer", "description": "default 10, max 500", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        },
        "/api/v1/analysis/{scope}/{owner_id}": {
            "get": {
                "tags": ["analysis"],
                "summary": "Owner analysis document",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "superadmin | admin | master", "name": "scope", "in": "path", "required": true},
                    {"type": "string", "description": "owner id", "name": "owner_id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}}
            }
        },
        "/api/v1/analysis/{scope}/{owner_id}/anchor": {
            "put": {
                "tags": ["analysis"],
                "summary": "Move the window anchor of an owner",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "superadmin | admin | master", "name": "scope", "in": "path", "required": true},
                    {"type": "string", "description": "owner id", "name": "owner_id", "in": "path", "required": true},
                    {"description": "RFC3339 or YYYY-MM-DD", "name": "body", "in": "body", "required": true, "schema": {"type": "object", "properties": {"start_date": {"type": "string"}}}}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}}
            }
        },
        "/api/v1/settings/switches": {
            "get": {"tags": ["settings"], "summary": "Feature switches", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/settings/switches/{name}": {
            "get": {
                "tags": ["settings"],
                "summary": "Read a feature switch",
                "parameters": [{"type": "string", "name": "name", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            },
            "put": {
                "tags": ["settings"],
                "summary": "Turn a feature switch on or off",
                "parameters": [
                    {"type": "string", "name": "name", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"type": "object", "properties": {"enabled": {"type": "boolean"}}}}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}}
            }
        },
        "/api/v1/risk-limits/{superadmin_id}": {
            "get": {
                "tags": ["risk"],
                "summary": "Risk limit overrides of a superadmin",
                "parameters": [{"type": "string", "name": "superadmin_id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            },
            "put": {
                "tags": ["risk"],
                "summary": "Set risk limit overrides for a superadmin",
                "description": "Zero values keep the service defaults.",
                "parameters": [
                    {"type": "string", "name": "superadmin_id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"type": "object", "properties": {
                        "max_trades": {"type": "integer"},
                        "average_trading_volume": {"type": "string"},
                        "win_rate_percentage": {"type": "number"},
                        "negative_balance": {"type": "string"}
                    }}}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "Trade Analytics API",
	Description:      "Owner analysis documents, user risk snapshots and job controls.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
