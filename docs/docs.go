// Package docs registers the Veil OpenAPI document with swag so gin-swagger
// can serve it under /swagger/*any.
//
// Regenerate with: swag init -g cmd/server/main.go -o docs
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
        "/phase": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Cycle"],
                "summary": "Global cycle state",
                "operationId": "getPhase",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/cycle.State"}}
                }
            }
        },
        "/participants/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Participants"],
                "summary": "The caller's enrollment",
                "operationId": "me",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Participant"}},
                    "404": {"description": "not_enrolled", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Participants"],
                "summary": "Enroll in the daily pool",
                "operationId": "enroll",
                "parameters": [
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.EnrollRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Participant"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/matches/current": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Matches"],
                "summary": "The caller's match for the running cycle",
                "operationId": "currentMatch",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.CurrentView"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/matches/{id}/messages": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Messages"],
                "summary": "List messages",
                "operationId": "listMessages",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "page_size", "in": "query"},
                    {"type": "string", "name": "If-None-Match", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListMessagesResponse"}},
                    "304": {"description": "Not Modified"},
                    "403": {"description": "not_participant", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Messages"],
                "summary": "Send a message",
                "operationId": "postMessage",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"type": "string", "name": "Idempotency-Key", "in": "header"},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.PostMessageRequest"}}
                ],
                "responses": {
                    "200": {"description": "Replayed", "schema": {"$ref": "#/definitions/handlers.PostMessageResponse"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.PostMessageResponse"}},
                    "400": {"description": "content_invalid", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "403": {"description": "phase_locked or chat_expired", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "rate_limited", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/matches/{id}/votes": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["Votes"],
                "summary": "Vote status",
                "operationId": "voteStatus",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.VoteStatus"}},
                    "403": {"description": "not_participant", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Votes"],
                "summary": "Cast a reveal vote",
                "operationId": "castVote",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CastVoteRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/services.VoteResult"}},
                    "403": {"description": "too_early", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "duplicate_vote or already_resolved", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/admin/sweep": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Run the daily pairing",
                "operationId": "runSweep",
                "parameters": [
                    {"type": "string", "name": "X-Cron-Secret", "in": "header", "required": true},
                    {"name": "body", "in": "body", "schema": {"$ref": "#/definitions/handlers.SweepRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.SweepResult"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "sweep_in_progress", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/admin/reconcile": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "Apply lagging transitions",
                "operationId": "runReconcile",
                "parameters": [
                    {"type": "string", "name": "X-Cron-Secret", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.ReconcileResult"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "cycle.State": {
            "type": "object",
            "properties": {
                "date": {"type": "string"},
                "drop_time": {"type": "string"},
                "chat_expiry": {"type": "string"},
                "vote_expiry": {"type": "string"},
                "phase": {"type": "string", "enum": ["CHAT", "VOTE"]},
                "next_transition": {"type": "string"}
            }
        },
        "domain.Participant": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "display_name": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "handlers.EnrollRequest": {
            "type": "object",
            "properties": {"display_name": {"type": "string", "example": "Ada"}}
        },
        "handlers.PostMessageRequest": {
            "type": "object",
            "properties": {"content": {"type": "string", "example": "hi there"}}
        },
        "handlers.PostMessageResponse": {
            "type": "object",
            "properties": {"message": {"type": "object"}}
        },
        "handlers.ListMessagesResponse": {
            "type": "object",
            "properties": {
                "messages": {"type": "array", "items": {"type": "object"}},
                "pagination": {"type": "object"}
            }
        },
        "handlers.CastVoteRequest": {
            "type": "object",
            "required": ["vote"],
            "properties": {"vote": {"type": "boolean"}}
        },
        "handlers.SweepRequest": {
            "type": "object",
            "properties": {"date": {"type": "string", "example": "2024-01-01"}}
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "services.CurrentView": {
            "type": "object",
            "properties": {
                "global": {"$ref": "#/definitions/cycle.State"},
                "match": {"type": "object"}
            }
        },
        "services.VoteStatus": {
            "type": "object",
            "properties": {
                "phase": {"type": "string"},
                "my_vote": {"type": "boolean"},
                "partner_voted": {"type": "boolean"},
                "outcome": {"type": "string", "enum": ["REVEALED", "WIPED"]}
            }
        },
        "services.VoteResult": {
            "type": "object",
            "properties": {
                "resolved": {"type": "boolean"},
                "outcome": {"type": "string", "enum": ["REVEALED", "WIPED"]}
            }
        },
        "services.SweepResult": {
            "type": "object",
            "properties": {
                "date": {"type": "string"},
                "matches_created": {"type": "integer"},
                "unpaired_count": {"type": "integer"},
                "skipped": {"type": "integer"}
            }
        },
        "services.ReconcileResult": {
            "type": "object",
            "properties": {
                "moved_to_vote": {"type": "integer"},
                "resolved": {"type": "integer"},
                "messages_wiped": {"type": "integer"},
                "purged_idempotency_keys": {"type": "integer"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Veil API",
	Description:      "Daily anonymous pairing: chat, vote, then reveal or wipe.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
