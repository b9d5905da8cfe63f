// Package docs registers the OpenAPI document served by the Swagger UI.
//
// The route list mirrors the swag annotations on the handlers; regenerate with
// `swag init -g internal/http/router.go -o internal/http/docs` after changing them.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "MemberAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header",
            "description": "Bearer JWT carrying a memberid claim, or X-Member-ID when no secret is configured."
        }
    },
    "paths": {
        "/chats": {
            "get": {"operationId": "listChats", "tags": ["Chats"], "summary": "List chats", "security": [{"MemberAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListChatsResponse"}}, "304": {"description": "Not Modified"}}},
            "post": {"operationId": "createDirectChat", "tags": ["Chats"], "summary": "Create a direct chat", "security": [{"MemberAuth": []}],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateDirectChatRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.CreateChatResponse"}}, "400": {"$ref": "#/responses/Error"}, "404": {"$ref": "#/responses/Error"}, "409": {"$ref": "#/responses/Error"}}}
        },
        "/chats/group": {
            "post": {"operationId": "createGroupChat", "tags": ["Chats"], "summary": "Create a group chat", "security": [{"MemberAuth": []}],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateGroupChatRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.CreateChatResponse"}}, "400": {"$ref": "#/responses/Error"}, "404": {"$ref": "#/responses/Error"}}}
        },
        "/chats/{id}": {
            "get": {"operationId": "listMembers", "tags": ["Chats"], "summary": "List chat members", "security": [{"MemberAuth": []}],
                "parameters": [{"$ref": "#/parameters/ChatID"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ChatMembersResponse"}}, "404": {"$ref": "#/responses/Error"}}},
            "put": {"operationId": "joinChat", "tags": ["Chats"], "summary": "Join a chat", "security": [{"MemberAuth": []}],
                "parameters": [{"$ref": "#/parameters/ChatID"}],
                "responses": {"204": {"description": "No Content"}, "404": {"$ref": "#/responses/Error"}, "409": {"$ref": "#/responses/Error"}}},
            "delete": {"operationId": "deleteChat", "tags": ["Chats"], "summary": "Delete a chat", "security": [{"MemberAuth": []}],
                "parameters": [{"$ref": "#/parameters/ChatID"}],
                "responses": {"204": {"description": "No Content"}, "404": {"$ref": "#/responses/Error"}}}
        },
        "/chats/{id}/name": {
            "put": {"operationId": "renameChat", "tags": ["Chats"], "summary": "Rename a chat", "security": [{"MemberAuth": []}],
                "parameters": [{"$ref": "#/parameters/ChatID"}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.RenameChatRequest"}}],
                "responses": {"204": {"description": "No Content"}, "400": {"$ref": "#/responses/Error"}, "404": {"$ref": "#/responses/Error"}}}
        },
        "/chats/{id}/members/{email}": {
            "delete": {"operationId": "removeMember", "tags": ["Chats"], "summary": "Leave or remove a member", "security": [{"MemberAuth": []}],
                "parameters": [{"$ref": "#/parameters/ChatID"}, {"in": "path", "name": "email", "type": "string", "required": true}],
                "responses": {"204": {"description": "No Content"}, "400": {"$ref": "#/responses/Error"}, "404": {"$ref": "#/responses/Error"}}}
        },
        "/chats/{id}/messages": {
            "get": {"operationId": "listMessages", "tags": ["Messages"], "summary": "List messages in a chat", "security": [{"MemberAuth": []}],
                "parameters": [{"$ref": "#/parameters/ChatID"}, {"in": "query", "name": "page", "type": "integer"}, {"in": "query", "name": "page_size", "type": "integer"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListMessagesResponse"}}, "304": {"description": "Not Modified"}, "404": {"$ref": "#/responses/Error"}}},
            "post": {"operationId": "postMessage", "tags": ["Messages"], "summary": "Send a message", "security": [{"MemberAuth": []}],
                "parameters": [{"$ref": "#/parameters/ChatID"}, {"in": "header", "name": "Idempotency-Key", "type": "string"}, {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.PostMessageRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.PostMessageResponse"}}, "400": {"$ref": "#/responses/Error"}, "404": {"$ref": "#/responses/Error"}}},
            "delete": {"operationId": "clearMessages", "tags": ["Messages"], "summary": "Clear chat history", "security": [{"MemberAuth": []}],
                "parameters": [{"$ref": "#/parameters/ChatID"}],
                "responses": {"204": {"description": "No Content"}, "404": {"$ref": "#/responses/Error"}}}
        },
        "/friends": {
            "get": {"operationId": "listFriends", "tags": ["Friends"], "summary": "List friends", "security": [{"MemberAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.FriendsResponse"}}}},
            "post": {"operationId": "addFriend", "tags": ["Friends"], "summary": "Add a friend", "security": [{"MemberAuth": []}],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.AddFriendRequest"}}],
                "responses": {"201": {"description": "Created"}, "400": {"$ref": "#/responses/Error"}, "404": {"$ref": "#/responses/Error"}, "409": {"$ref": "#/responses/Error"}}}
        },
        "/previews": {
            "get": {"operationId": "getPreviews", "tags": ["Previews"], "summary": "Chat previews", "security": [{"MemberAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.PreviewsResponse"}}, "404": {"$ref": "#/responses/Error"}}}
        }
    },
    "parameters": {
        "ChatID": {"in": "path", "name": "id", "type": "integer", "required": true, "description": "Chat ID"}
    },
    "responses": {
        "Error": {"description": "Error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
    },
    "definitions": {
        "handlers.ErrorResponse": {"type": "object", "properties": {"request_id": {"type": "string"}, "code": {"type": "string"}, "message": {"type": "string"}}},
        "handlers.CreateDirectChatRequest": {"type": "object", "required": ["email"], "properties": {"email": {"type": "string"}, "name": {"type": "string"}}},
        "handlers.CreateGroupChatRequest": {"type": "object", "properties": {"emails": {"type": "array", "items": {"type": "string"}}}},
        "handlers.CreateChatResponse": {"type": "object", "properties": {"chat_id": {"type": "integer"}}},
        "handlers.RenameChatRequest": {"type": "object", "required": ["name"], "properties": {"name": {"type": "string"}}},
        "handlers.ChatMembersResponse": {"type": "object", "properties": {"chat_id": {"type": "integer"}, "members": {"type": "array", "items": {"type": "string"}}}},
        "handlers.Pagination": {"type": "object", "properties": {"page": {"type": "integer"}, "page_size": {"type": "integer"}, "total": {"type": "integer"}, "total_pages": {"type": "integer"}, "has_next": {"type": "boolean"}}},
        "handlers.ListChatsResponse": {"type": "object", "properties": {"chats": {"type": "array", "items": {"$ref": "#/definitions/domain.Chat"}}, "pagination": {"$ref": "#/definitions/handlers.Pagination"}}},
        "handlers.PostMessageRequest": {"type": "object", "required": ["body"], "properties": {"body": {"type": "string"}}},
        "handlers.PostMessageResponse": {"type": "object", "properties": {"message": {"$ref": "#/definitions/domain.Message"}}},
        "handlers.ListMessagesResponse": {"type": "object", "properties": {"messages": {"type": "array", "items": {"$ref": "#/definitions/domain.Message"}}, "pagination": {"$ref": "#/definitions/handlers.Pagination"}}},
        "handlers.AddFriendRequest": {"type": "object", "required": ["username"], "properties": {"username": {"type": "string"}}},
        "handlers.FriendsResponse": {"type": "object", "properties": {"friends": {"type": "array", "items": {"$ref": "#/definitions/domain.Friend"}}}},
        "handlers.PreviewsResponse": {"type": "object", "properties": {"previews": {"type": "array", "items": {"$ref": "#/definitions/domain.Preview"}}}},
        "domain.Chat": {"type": "object", "properties": {"id": {"type": "integer"}, "name": {"type": "string"}, "kind": {"type": "string"}, "created_at": {"type": "string"}, "updated_at": {"type": "string"}}},
        "domain.Message": {"type": "object", "properties": {"id": {"type": "integer"}, "chat_id": {"type": "integer"}, "member_id": {"type": "integer"}, "body": {"type": "string"}, "timestamp": {"type": "string"}}},
        "domain.Friend": {"type": "object", "properties": {"username": {"type": "string"}, "email": {"type": "string"}}},
        "domain.Preview": {"type": "object", "properties": {"chat_id": {"type": "integer"}, "chat_name": {"type": "string"}, "message_id": {"type": "integer"}, "body": {"type": "string"}, "timestamp": {"type": "string"}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Chat Core API",
	Description:      "Chats, memberships, messages, friends and previews for registered members.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
